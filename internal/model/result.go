package model

import "time"

// RowStatus indicates how a row fared in the pipeline.
type RowStatus string

// Row status constants.
const (
	StatusOK            RowStatus = "ok"
	StatusParseError    RowStatus = "parse-error"
	StatusDispatchError RowStatus = "dispatch-error"
)

// ResultRecord is the final, externally visible outcome for one input row.
// Exactly one ResultRecord exists per data row in the input, in input order.
type ResultRecord struct {
	Record         *TransactionRecord `json:"record,omitempty"`
	Verdict        *FraudVerdict      `json:"verdict,omitempty"`
	Status         RowStatus          `json:"status"`
	Error          string             `json:"error,omitempty"`
	RowIndex       int                `json:"row_index"`
	RecurringFraud bool               `json:"recurring_fraud"`
}

// RunSummary aggregates run-level counters. It is built once per run and
// reported, never persisted.
type RunSummary struct {
	TotalRows      int           `json:"total_rows"`
	Succeeded      int           `json:"succeeded"`
	ParseErrors    int           `json:"parse_errors"`
	DispatchErrors int           `json:"dispatch_errors"`
	FraudVerdicts  int           `json:"fraud_verdicts"`
	NewlyRecurring int           `json:"newly_recurring"`
	Duration       time.Duration `json:"duration"`
}

// HistoryEntry is one identity's durable fraud tally.
type HistoryEntry struct {
	LastSeen   time.Time `json:"last_seen"`
	Identity   string    `json:"identity"`
	FraudCount int       `json:"fraud_count"`
}
