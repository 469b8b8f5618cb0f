// Package ingest decodes tabular transaction input into validated records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fraudguard-ai/fraudguard/internal/model"
)

// ErrSchema indicates the input header is missing or malformed. Without a
// trustworthy header no row can be trusted, so this aborts the whole run.
var ErrSchema = errors.New("input schema invalid")

// ExpectedColumns is the required column count: identity plus six numeric
// feature fields.
const ExpectedColumns = 7

// Header is the expected column order. Only the count is enforced; a
// mismatch in names is logged by callers that care.
var Header = []string{
	"identity",
	"transactionAmount",
	"transactionAmountDeviation",
	"timeAnomaly",
	"locationDistance",
	"merchantNovelty",
	"transactionFrequency",
}

// Parser decodes CSV transaction input.
type Parser struct {
	mode model.Mode
}

// NewParser creates a parser that stamps every record with the given
// scoring mode.
func NewParser(mode model.Mode) *Parser {
	if mode == "" {
		mode = model.ModeFast
	}
	return &Parser{mode: mode}
}

// Parse reads CSV input and returns, in input order, the valid records and
// the per-row errors. Row indexes are 0-based ordinals over data rows; a
// given index appears in exactly one of the two slices. One bad row never
// blocks subsequent rows.
func (p *Parser) Parse(r io.Reader) ([]model.TransactionRecord, []model.ParseError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // column counts validated per row below
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: input is empty, header row required", ErrSchema)
		}
		return nil, nil, fmt.Errorf("%w: failed to read header: %v", ErrSchema, err)
	}
	if len(header) != ExpectedColumns {
		return nil, nil, fmt.Errorf("%w: header has %d columns, want %d", ErrSchema, len(header), ExpectedColumns)
	}

	var records []model.TransactionRecord
	var parseErrs []model.ParseError

	rowIndex := 0
	for {
		row, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			// Malformed CSV line (e.g. bare quote). Skip just this row;
			// the reader resumes on the next line.
			parseErrs = append(parseErrs, model.ParseError{
				RowIndex: rowIndex,
				Reason:   fmt.Sprintf("malformed row: %v", readErr),
			})
			rowIndex++
			continue
		}

		record, rowErr := p.parseRow(rowIndex, row)
		if rowErr != nil {
			parseErrs = append(parseErrs, *rowErr)
		} else {
			records = append(records, record)
		}
		rowIndex++
	}

	return records, parseErrs, nil
}

// parseRow validates a single data row.
func (p *Parser) parseRow(rowIndex int, row []string) (model.TransactionRecord, *model.ParseError) {
	fail := func(reason string) (model.TransactionRecord, *model.ParseError) {
		return model.TransactionRecord{}, &model.ParseError{RowIndex: rowIndex, Reason: reason}
	}

	if len(row) != ExpectedColumns {
		return fail(fmt.Sprintf("expected %d columns, got %d", ExpectedColumns, len(row)))
	}

	identity := strings.TrimSpace(row[0])
	if identity == "" {
		return fail("identity is empty")
	}

	features := make([]float64, ExpectedColumns-1)
	for i := 1; i < ExpectedColumns; i++ {
		value, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			return fail(fmt.Sprintf("column %q: %q is not a number", Header[i], row[i]))
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fail(fmt.Sprintf("column %q: %q is not finite", Header[i], row[i]))
		}
		features[i-1] = value
	}

	return model.TransactionRecord{
		RowIndex:         rowIndex,
		Identity:         identity,
		Mode:             p.mode,
		Amount:           features[0],
		AmountDeviation:  features[1],
		TimeAnomaly:      features[2],
		LocationDistance: features[3],
		MerchantNovelty:  features[4],
		TransactionFreq:  features[5],
	}, nil
}
