// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/fraudguard-ai/fraudguard/internal/model"
)

// RecurringFraudThreshold is the cumulative fraud-verdict count at which an
// identity is considered a recurring offender.
const RecurringFraudThreshold = 3

// HistoryStore is the durable identity -> fraud-count mapping shared across
// runs. It is the single source of truth for recurring-fraud detection and
// the only writer of its backing file.
type HistoryStore interface {
	// Get returns the current fraud count for an identity, 0 if unknown.
	Get(ctx context.Context, identity string) (int, error)

	// RecordVerdict applies one verdict. A fraud verdict atomically
	// increments the identity's count and persists it before returning;
	// a non-fraud verdict performs no write. Returns the count after the
	// call. Concurrent calls for the same identity serialize, so no
	// increment is ever lost or doubled.
	RecordVerdict(ctx context.Context, identity string, isFraud bool) (int, error)

	// Entries returns all known identities, sorted by identity.
	Entries(ctx context.Context) ([]model.HistoryEntry, error)

	Close() error
}

// Scorer is the external fraud-scoring collaborator. Implementations may be
// slow and may fail; callers must treat every call as fallible.
type Scorer interface {
	Score(ctx context.Context, record model.TransactionRecord) (model.FraudVerdict, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
