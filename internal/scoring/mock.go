package scoring

import (
	"context"
	"sync"

	"github.com/fraudguard-ai/fraudguard/internal/model"
	"github.com/fraudguard-ai/fraudguard/internal/service"
)

// MockScorer is a test implementation of the Scorer interface. Responses
// are scripted per row index; unscripted rows get a deterministic non-fraud
// verdict. Safe for concurrent use.
type MockScorer struct {
	responses map[int]MockResponse
	calls     map[int]int
	mu        sync.Mutex
}

// MockResponse scripts the outcome for one row index.
type MockResponse struct {
	Err error
	// FailuresBeforeSuccess makes the first N calls for this row fail
	// with Err, then succeed with Verdict. With N == 0 and a non-nil
	// Err, every call fails.
	FailuresBeforeSuccess int
	Verdict               model.FraudVerdict
}

var _ service.Scorer = (*MockScorer)(nil)

// NewMockScorer creates a new mock scorer.
func NewMockScorer() *MockScorer {
	return &MockScorer{
		responses: make(map[int]MockResponse),
		calls:     make(map[int]int),
	}
}

// Respond scripts the response for a row index.
func (m *MockScorer) Respond(rowIndex int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[rowIndex] = resp
}

// FraudFor scripts a plain fraud verdict for a row index.
func (m *MockScorer) FraudFor(rowIndex int, riskScore float64) {
	m.Respond(rowIndex, MockResponse{
		Verdict: model.FraudVerdict{IsFraud: true, RiskScore: riskScore, ModelUsed: "fast"},
	})
}

// Score returns the scripted response for the record's row index.
func (m *MockScorer) Score(ctx context.Context, record model.TransactionRecord) (model.FraudVerdict, error) {
	if err := ctx.Err(); err != nil {
		return model.FraudVerdict{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[record.RowIndex]++
	resp, ok := m.responses[record.RowIndex]
	if !ok {
		return model.FraudVerdict{IsFraud: false, RiskScore: 0.05, ModelUsed: string(record.Mode)}, nil
	}

	if resp.Err != nil {
		if resp.FailuresBeforeSuccess == 0 || m.calls[record.RowIndex] <= resp.FailuresBeforeSuccess {
			return model.FraudVerdict{}, resp.Err
		}
	}

	return resp.Verdict, nil
}

// Calls reports how many times a row index was scored.
func (m *MockScorer) Calls(rowIndex int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[rowIndex]
}

// TotalCalls reports the total number of Score invocations.
func (m *MockScorer) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}
