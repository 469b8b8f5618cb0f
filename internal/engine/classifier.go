package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fraudguard-ai/fraudguard/internal/service"
)

// Classified is a dispatch outcome combined with the history store's view
// of the record's identity.
type Classified struct {
	Outcome
	// RecurringFraud is true when the identity's cumulative fraud count
	// has reached the threshold.
	RecurringFraud bool
	// NewlyRecurring is true for the verdict that pushed the identity
	// over the threshold in this run.
	NewlyRecurring bool
}

// Classifier merges fresh verdicts with durable history. The local store is
// authoritative for the recurring-fraud flag; the scoring service's own
// view is logged when it disagrees, never silently discarded.
type Classifier struct {
	store service.HistoryStore
}

// NewClassifier creates a classifier backed by the given history store.
func NewClassifier(store service.HistoryStore) *Classifier {
	return &Classifier{store: store}
}

// Classify records every successfully scored verdict in the history store
// and derives the recurring-fraud flag from the updated count. Errored rows
// never touch history: a row whose classification is unknown is not
// evidence of fraud. A history persistence failure is fatal for the run.
func (c *Classifier) Classify(ctx context.Context, outcomes []Outcome) ([]Classified, error) {
	classified := make([]Classified, 0, len(outcomes))

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			classified = append(classified, Classified{Outcome: outcome})
			continue
		}

		count, err := c.store.RecordVerdict(ctx, outcome.Record.Identity, outcome.Verdict.IsFraud)
		if err != nil {
			return nil, fmt.Errorf("failed to record verdict for %q (row %d): %w",
				outcome.Record.Identity, outcome.RowIndex, err)
		}

		recurring := count >= service.RecurringFraudThreshold

		if outcome.Verdict.RemoteRecurring != recurring {
			slog.Warn("Scoring service disagrees with local history on recurring fraud; local store is authoritative",
				"identity", outcome.Record.Identity,
				"row_index", outcome.RowIndex,
				"local_count", count,
				"local_recurring", recurring,
				"remote_count", outcome.Verdict.RemoteFraudCount,
				"remote_recurring", outcome.Verdict.RemoteRecurring)
		} else if outcome.Verdict.RemoteFraudCount != count {
			slog.Debug("Scoring service fraud count differs from local history",
				"identity", outcome.Record.Identity,
				"local_count", count,
				"remote_count", outcome.Verdict.RemoteFraudCount)
		}

		classified = append(classified, Classified{
			Outcome:        outcome,
			RecurringFraud: recurring,
			NewlyRecurring: outcome.Verdict.IsFraud && count == service.RecurringFraudThreshold,
		})
	}

	return classified, nil
}
