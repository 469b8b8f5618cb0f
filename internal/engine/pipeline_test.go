package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fraudguard-ai/fraudguard/internal/ingest"
	"github.com/fraudguard-ai/fraudguard/internal/model"
	"github.com/fraudguard-ai/fraudguard/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvHeader = "identity,transactionAmount,transactionAmountDeviation,timeAnomaly,locationDistance,merchantNovelty,transactionFrequency\n"

func csvRows(identities ...string) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	for i, id := range identities {
		fmt.Fprintf(&b, "%s,%d,0.2,0.1,5.0,0.4,%d\n", id, 100+i, i+1)
	}
	return b.String()
}

func TestPipeline_TwentyFiveRowsWithOneTimeout(t *testing.T) {
	identities := make([]string, 25)
	for i := range identities {
		identities[i] = fmt.Sprintf("user%02d@upi", i)
	}

	scorer := scoring.NewMockScorer()
	scorer.Respond(14, scoring.MockResponse{Err: scoring.ErrTimeout})

	pipeline := NewWithConfig(newTestStore(t), scorer, testConfig())
	result, err := pipeline.Run(context.Background(), strings.NewReader(csvRows(identities...)))
	require.NoError(t, err)

	require.Len(t, result.Results, 25)
	for i, r := range result.Results {
		assert.Equal(t, i, r.RowIndex, "results must be in input order")
		if i == 14 {
			assert.Equal(t, model.StatusDispatchError, r.Status)
			assert.Nil(t, r.Verdict)
		} else {
			assert.Equal(t, model.StatusOK, r.Status)
			require.NotNil(t, r.Verdict)
		}
	}

	assert.Equal(t, 3, scorer.Calls(14), "timeout retried twice before giving up")
	assert.Equal(t, 25, result.Summary.TotalRows)
	assert.Equal(t, 24, result.Summary.Succeeded)
	assert.Equal(t, 1, result.Summary.DispatchErrors)
	assert.Equal(t, 0, result.Summary.ParseErrors)
}

func TestPipeline_RecurringFraudAcrossRuns(t *testing.T) {
	store := newTestStore(t)

	for run := 1; run <= 4; run++ {
		scorer := scoring.NewMockScorer()
		scorer.FraudFor(0, 0.97)

		pipeline := NewWithConfig(store, scorer, testConfig())
		result, err := pipeline.Run(context.Background(), strings.NewReader(csvRows("scammer01@upi")))
		require.NoError(t, err)
		require.Len(t, result.Results, 1)

		wantRecurring := run >= 3
		assert.Equal(t, wantRecurring, result.Results[0].RecurringFraud,
			"run %d: recurring flag must flip at the third fraud verdict and never reset", run)

		if run == 3 {
			assert.Equal(t, 1, result.Summary.NewlyRecurring)
		} else {
			assert.Equal(t, 0, result.Summary.NewlyRecurring)
		}
	}
}

func TestPipeline_MalformedRowsNeverReachScorer(t *testing.T) {
	input := csvHeader +
		"good1@upi,100,0.2,0.1,5.0,0.4,1\n" +
		"bad@upi,amt,0.2,0.1,5.0,0.4,1\n" +
		"good2@upi,100,0.2,0.1,5.0,0.4,1\n"

	scorer := scoring.NewMockScorer()
	pipeline := NewWithConfig(newTestStore(t), scorer, testConfig())

	result, err := pipeline.Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, result.Results, 3)
	assert.Equal(t, model.StatusOK, result.Results[0].Status)
	assert.Equal(t, model.StatusParseError, result.Results[1].Status)
	assert.Contains(t, result.Results[1].Error, "not a number")
	assert.Equal(t, model.StatusOK, result.Results[2].Status)

	assert.Equal(t, 2, scorer.TotalCalls(), "only valid rows are scored")
	assert.Equal(t, 1, result.Summary.ParseErrors)
	assert.Equal(t, 2, result.Summary.Succeeded)
}

func TestPipeline_SchemaErrorAbortsRun(t *testing.T) {
	scorer := scoring.NewMockScorer()
	pipeline := NewWithConfig(newTestStore(t), scorer, testConfig())

	_, err := pipeline.Run(context.Background(), strings.NewReader("identity,amount\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ingest.ErrSchema))
	assert.Equal(t, 0, scorer.TotalCalls())
}

func TestPipeline_HeaderOnlyInput(t *testing.T) {
	pipeline := NewWithConfig(newTestStore(t), scoring.NewMockScorer(), testConfig())

	result, err := pipeline.Run(context.Background(), strings.NewReader(csvHeader))
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Equal(t, 0, result.Summary.TotalRows)
}

func TestPipeline_PersistenceFailureAbortsRun(t *testing.T) {
	scorer := scoring.NewMockScorer()
	scorer.FraudFor(0, 0.9)

	pipeline := NewWithConfig(failingStore{}, scorer, testConfig())
	_, err := pipeline.Run(context.Background(), strings.NewReader(csvRows("x@upi")))
	require.Error(t, err)
}

func TestPipeline_SameIdentityInMultipleBatches(t *testing.T) {
	// 20 rows for one identity span two batches that may be scored by
	// different workers; the history count must still be exact.
	identities := make([]string, 20)
	for i := range identities {
		identities[i] = "repeat@upi"
	}

	scorer := scoring.NewMockScorer()
	for i := range identities {
		scorer.FraudFor(i, 0.9)
	}

	store := newTestStore(t)
	pipeline := NewWithConfig(store, scorer, testConfig())

	result, err := pipeline.Run(context.Background(), strings.NewReader(csvRows(identities...)))
	require.NoError(t, err)

	count, err := store.Get(context.Background(), "repeat@upi")
	require.NoError(t, err)
	assert.Equal(t, 20, count, "every fraud verdict counted exactly once")
	assert.Equal(t, 20, result.Summary.FraudVerdicts)
	assert.Equal(t, 1, result.Summary.NewlyRecurring, "one identity crossed the threshold")
}
