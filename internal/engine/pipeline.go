package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fraudguard-ai/fraudguard/internal/ingest"
	"github.com/fraudguard-ai/fraudguard/internal/model"
	"github.com/fraudguard-ai/fraudguard/internal/service"
)

// Pipeline orchestrates one scoring run: parse, dispatch, classify,
// aggregate. The run exclusively owns every record and result it produces;
// only the history store is shared state.
type Pipeline struct {
	store  service.HistoryStore
	scorer service.Scorer
	cfg    Config
}

// RunResult is the externally visible product of a run.
type RunResult struct {
	Results []model.ResultRecord
	Summary model.RunSummary
}

// New creates a pipeline with the default configuration.
func New(store service.HistoryStore, scorer service.Scorer) *Pipeline {
	return NewWithConfig(store, scorer, DefaultConfig())
}

// NewWithConfig creates a pipeline with custom configuration.
func NewWithConfig(store service.HistoryStore, scorer service.Scorer, cfg Config) *Pipeline {
	return &Pipeline{store: store, scorer: scorer, cfg: cfg.withDefaults()}
}

// Run processes one batch input end to end. Schema errors and history
// persistence failures abort the run; row-level errors never do. Every data
// row of the input appears exactly once in the result set, in input order.
func (p *Pipeline) Run(ctx context.Context, input io.Reader) (*RunResult, error) {
	start := time.Now()

	records, parseErrs, err := ingest.NewParser(p.cfg.Mode).Parse(input)
	if err != nil {
		return nil, err
	}

	slog.Info("Parsed input",
		"valid_rows", len(records),
		"parse_errors", len(parseErrs),
		"mode", p.cfg.Mode)

	outcomes, err := NewDispatcher(p.scorer, p.cfg).Dispatch(ctx, records)
	if err != nil {
		return nil, err
	}

	classified, err := NewClassifier(p.store).Classify(ctx, outcomes)
	if err != nil {
		return nil, err
	}

	results, summary := Aggregate(parseErrs, classified, time.Since(start))

	slog.Info("Scoring run complete",
		"total_rows", summary.TotalRows,
		"succeeded", summary.Succeeded,
		"parse_errors", summary.ParseErrors,
		"dispatch_errors", summary.DispatchErrors,
		"fraud_verdicts", summary.FraudVerdicts,
		"newly_recurring", summary.NewlyRecurring,
		"duration", summary.Duration)

	return &RunResult{Results: results, Summary: summary}, nil
}
