// Package model defines the core domain models used throughout the application.
package model

import "fmt"

// Mode selects which scoring model the service applies to a record.
type Mode string

// Scoring modes understood by the scoring service.
const (
	ModeFast     Mode = "fast"
	ModeAccurate Mode = "accurate"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFast, ModeAccurate:
		return Mode(s), nil
	case "":
		return ModeFast, nil
	default:
		return "", fmt.Errorf("invalid scoring mode %q (want %q or %q)", s, ModeFast, ModeAccurate)
	}
}

// TransactionRecord is a single validated input row. It is created by the
// parser and immutable afterwards; RowIndex is the 0-based position of the
// row within the input's data rows and never changes.
type TransactionRecord struct {
	Identity         string
	Mode             Mode
	RowIndex         int
	Amount           float64
	AmountDeviation  float64
	TimeAnomaly      float64
	LocationDistance float64
	MerchantNovelty  float64
	TransactionFreq  float64
}

// ParseError records why a single input row was rejected. Bad rows never
// abort a run; they surface in the final result set with this reason.
type ParseError struct {
	Reason   string
	RowIndex int
}

func (e ParseError) Error() string {
	return fmt.Sprintf("row %d: %s", e.RowIndex, e.Reason)
}
