package engine

import (
	"sort"
	"time"

	"github.com/fraudguard-ai/fraudguard/internal/model"
)

// Aggregate merges parse errors and classified dispatch outcomes into one
// row-index-ordered result set spanning every input data row exactly once,
// plus the run summary. Row count in equals row count out.
func Aggregate(parseErrs []model.ParseError, classified []Classified, duration time.Duration) ([]model.ResultRecord, model.RunSummary) {
	results := make([]model.ResultRecord, 0, len(parseErrs)+len(classified))
	summary := model.RunSummary{
		TotalRows: len(parseErrs) + len(classified),
		Duration:  duration,
	}

	for _, pe := range parseErrs {
		summary.ParseErrors++
		results = append(results, model.ResultRecord{
			RowIndex: pe.RowIndex,
			Status:   model.StatusParseError,
			Error:    pe.Reason,
		})
	}

	for _, c := range classified {
		record := c.Record

		if c.Err != nil {
			summary.DispatchErrors++
			results = append(results, model.ResultRecord{
				RowIndex: c.RowIndex,
				Record:   &record,
				Status:   model.StatusDispatchError,
				Error:    c.Err.Error(),
			})
			continue
		}

		summary.Succeeded++
		if c.Verdict.IsFraud {
			summary.FraudVerdicts++
		}
		if c.NewlyRecurring {
			summary.NewlyRecurring++
		}
		results = append(results, model.ResultRecord{
			RowIndex:       c.RowIndex,
			Record:         &record,
			Verdict:        c.Verdict,
			RecurringFraud: c.RecurringFraud,
			Status:         model.StatusOK,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].RowIndex < results[j].RowIndex
	})

	return results, summary
}
