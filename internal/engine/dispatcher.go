// Package engine implements the batch scoring pipeline: dispatching records
// to the scoring service with bounded concurrency, classifying verdicts
// against the history store, and assembling ordered results.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fraudguard-ai/fraudguard/internal/common"
	"github.com/fraudguard-ai/fraudguard/internal/model"
	"github.com/fraudguard-ai/fraudguard/internal/scoring"
	"github.com/fraudguard-ai/fraudguard/internal/service"
)

// Config holds configuration options for the pipeline.
type Config struct {
	// Progress, if set, is called after each record completes scoring.
	Progress func(completed, total int)
	// Mode is stamped onto every parsed record.
	Mode model.Mode
	// Retry governs per-record retries. Only transient scoring failures
	// (timeout, service unavailable) are retried; a malformed rejection
	// fails immediately.
	Retry service.RetryOptions
	// BatchSize is the number of records per dispatch batch.
	BatchSize int
	// Workers bounds how many batches are in flight at once.
	Workers int
	// CallTimeout bounds each individual scoring call.
	CallTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Mode:        model.ModeFast,
		BatchSize:   10,
		Workers:     4,
		CallTimeout: 30 * time.Second,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = def.Retry
	}
	return c
}

// Outcome is one record's dispatch result, tagged with its original row
// index. Exactly one of Verdict and Err is set.
type Outcome struct {
	Err      error
	Verdict  *model.FraudVerdict
	Record   model.TransactionRecord
	RowIndex int
}

// Dispatcher partitions records into fixed-size batches and scores them
// with a bounded worker pool. Completion order is arbitrary; the returned
// outcomes are always in input row order.
type Dispatcher struct {
	scorer service.Scorer
	cfg    Config
}

// NewDispatcher creates a dispatcher with the given scorer and config.
func NewDispatcher(scorer service.Scorer, cfg Config) *Dispatcher {
	return &Dispatcher{scorer: scorer, cfg: cfg.withDefaults()}
}

// Dispatch scores all records and returns one outcome per record, sorted by
// row index. A single record's failure never affects its siblings. On
// cancellation, workers stop at the next batch boundary and ctx.Err() is
// returned instead of a partial result.
func (d *Dispatcher) Dispatch(ctx context.Context, records []model.TransactionRecord) ([]Outcome, error) {
	if len(records) == 0 {
		return nil, nil
	}

	batches := partition(records, d.cfg.BatchSize)

	workChan := make(chan []model.TransactionRecord, len(batches))
	for _, batch := range batches {
		workChan <- batch
	}
	close(workChan)

	resultsChan := make(chan Outcome, len(records))

	var completed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(d.cfg.Workers)

	for i := 0; i < d.cfg.Workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			d.batchWorker(ctx, workerID, workChan, resultsChan, &completed, len(records))
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	outcomes := make([]Outcome, 0, len(records))
	for outcome := range resultsChan {
		outcomes = append(outcomes, outcome)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Concurrency affects completion order, never result order.
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].RowIndex < outcomes[j].RowIndex
	})

	return outcomes, nil
}

// batchWorker scores batches from the work channel. Cancellation is honored
// between batches; records within an abandoned batch are simply not
// reported, which Dispatch turns into ctx.Err().
func (d *Dispatcher) batchWorker(
	ctx context.Context,
	workerID int,
	workChan <-chan []model.TransactionRecord,
	resultsChan chan<- Outcome,
	completed *atomic.Int64,
	total int,
) {
	for batch := range workChan {
		select {
		case <-ctx.Done():
			return
		default:
		}

		slog.Debug("worker scoring batch",
			"worker_id", workerID,
			"batch_size", len(batch),
			"first_row", batch[0].RowIndex)

		for _, record := range batch {
			resultsChan <- d.scoreRecord(ctx, record)

			done := completed.Add(1)
			if d.cfg.Progress != nil {
				d.cfg.Progress(int(done), total)
			}
		}
	}
}

// scoreRecord runs one record through the scorer with retries for transient
// failures.
func (d *Dispatcher) scoreRecord(ctx context.Context, record model.TransactionRecord) Outcome {
	var verdict model.FraudVerdict

	retryErr := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
		defer cancel()

		var scoreErr error
		verdict, scoreErr = d.scorer.Score(callCtx, record)
		if scoreErr != nil {
			// Don't burn retries once the whole run is being torn down.
			retryable := scoring.IsTransient(scoreErr) && ctx.Err() == nil
			return &common.RetryableError{Err: scoreErr, Retryable: retryable}
		}
		return nil
	}, d.cfg.Retry)

	if retryErr != nil {
		slog.Warn("Record scoring failed",
			"row_index", record.RowIndex,
			"identity", record.Identity,
			"error", retryErr)
		return Outcome{RowIndex: record.RowIndex, Record: record, Err: retryErr}
	}

	return Outcome{RowIndex: record.RowIndex, Record: record, Verdict: &verdict}
}

// partition splits records into consecutive batches of at most size.
func partition(records []model.TransactionRecord, size int) [][]model.TransactionRecord {
	batches := make([][]model.TransactionRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
