package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fraudguard-ai/fraudguard/internal/history"
	"github.com/fraudguard-ai/fraudguard/internal/model"
	"github.com/fraudguard-ai/fraudguard/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) service.HistoryStore {
	t.Helper()
	store, err := history.NewJSONStore(filepath.Join(t.TempDir(), "fraud_history.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fraudOutcome(rowIndex int, identity string) Outcome {
	return Outcome{
		RowIndex: rowIndex,
		Record:   model.TransactionRecord{RowIndex: rowIndex, Identity: identity, Mode: model.ModeFast},
		Verdict:  &model.FraudVerdict{IsFraud: true, RiskScore: 0.95, ModelUsed: "fast", RemoteRecurring: rowIndex >= 2, RemoteFraudCount: rowIndex + 1},
	}
}

func TestClassify_ThresholdCrossing(t *testing.T) {
	store := newTestStore(t)
	classifier := NewClassifier(store)

	outcomes := []Outcome{
		fraudOutcome(0, "scammer01@upi"),
		fraudOutcome(1, "scammer01@upi"),
		fraudOutcome(2, "scammer01@upi"),
		fraudOutcome(3, "scammer01@upi"),
	}

	classified, err := classifier.Classify(context.Background(), outcomes)
	require.NoError(t, err)
	require.Len(t, classified, 4)

	wantRecurring := []bool{false, false, true, true}
	wantNewly := []bool{false, false, true, false}
	for i, c := range classified {
		assert.Equal(t, wantRecurring[i], c.RecurringFraud, "verdict %d", i+1)
		assert.Equal(t, wantNewly[i], c.NewlyRecurring, "verdict %d", i+1)
	}

	count, err := store.Get(context.Background(), "scammer01@upi")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestClassify_NonFraudDoesNotIncrement(t *testing.T) {
	store := newTestStore(t)
	classifier := NewClassifier(store)

	outcome := Outcome{
		RowIndex: 0,
		Record:   model.TransactionRecord{RowIndex: 0, Identity: "honest@upi"},
		Verdict:  &model.FraudVerdict{IsFraud: false, RiskScore: 0.1},
	}

	classified, err := classifier.Classify(context.Background(), []Outcome{outcome})
	require.NoError(t, err)
	assert.False(t, classified[0].RecurringFraud)

	count, err := store.Get(context.Background(), "honest@upi")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestClassify_ErroredRowsNeverTouchHistory(t *testing.T) {
	store := newTestStore(t)
	classifier := NewClassifier(store)

	outcomes := []Outcome{
		{
			RowIndex: 0,
			Record:   model.TransactionRecord{RowIndex: 0, Identity: "maybe@upi"},
			Err:      assert.AnError,
		},
	}

	classified, err := classifier.Classify(context.Background(), outcomes)
	require.NoError(t, err)
	assert.False(t, classified[0].RecurringFraud)
	assert.False(t, classified[0].NewlyRecurring)

	count, err := store.Get(context.Background(), "maybe@upi")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "an unknown classification is not evidence of fraud")
}

// failingStore simulates a store whose durable writes fail.
type failingStore struct{}

func (failingStore) Get(_ context.Context, _ string) (int, error) { return 0, nil }
func (failingStore) RecordVerdict(_ context.Context, _ string, _ bool) (int, error) {
	return 0, history.ErrPersistence
}
func (failingStore) Entries(_ context.Context) ([]model.HistoryEntry, error) { return nil, nil }
func (failingStore) Close() error                                            { return nil }

func TestClassify_PersistenceFailureIsFatal(t *testing.T) {
	classifier := NewClassifier(failingStore{})

	_, err := classifier.Classify(context.Background(), []Outcome{fraudOutcome(0, "x@upi")})
	require.Error(t, err)
	assert.ErrorIs(t, err, history.ErrPersistence)
}

func TestAggregate_MergesAndOrders(t *testing.T) {
	parseErrs := []model.ParseError{
		{RowIndex: 1, Reason: "identity is empty"},
		{RowIndex: 3, Reason: "bad number"},
	}
	classified := []Classified{
		{
			Outcome: Outcome{
				RowIndex: 0,
				Record:   model.TransactionRecord{RowIndex: 0, Identity: "a@upi"},
				Verdict:  &model.FraudVerdict{IsFraud: true, RiskScore: 0.9},
			},
			RecurringFraud: true,
			NewlyRecurring: true,
		},
		{
			Outcome: Outcome{
				RowIndex: 2,
				Record:   model.TransactionRecord{RowIndex: 2, Identity: "b@upi"},
				Err:      assert.AnError,
			},
		},
		{
			Outcome: Outcome{
				RowIndex: 4,
				Record:   model.TransactionRecord{RowIndex: 4, Identity: "c@upi"},
				Verdict:  &model.FraudVerdict{IsFraud: false, RiskScore: 0.1},
			},
		},
	}

	results, summary := Aggregate(parseErrs, classified, time.Second)

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.RowIndex)
	}
	assert.Equal(t, model.StatusOK, results[0].Status)
	assert.True(t, results[0].RecurringFraud)
	assert.Equal(t, model.StatusParseError, results[1].Status)
	assert.Equal(t, model.StatusDispatchError, results[2].Status)
	assert.Equal(t, model.StatusParseError, results[3].Status)
	assert.Equal(t, model.StatusOK, results[4].Status)

	assert.Equal(t, model.RunSummary{
		TotalRows:      5,
		Succeeded:      2,
		ParseErrors:    2,
		DispatchErrors: 1,
		FraudVerdicts:  1,
		NewlyRecurring: 1,
		Duration:       time.Second,
	}, summary)
}
