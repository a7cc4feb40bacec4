// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/username/foliotracker/backend/src/models"
)

// Define common service errors
var (
	ErrExtractionFailed = errors.New("source extraction failed")
	ErrSessionNotFound  = errors.New("review session not found")
	ErrSessionClosed    = errors.New("review session already confirmed or cancelled")
	ErrRecordNotFound   = errors.New("draft record not found in session")
	ErrHoldingNotFound  = errors.New("holding not found")
)

// BlockingFieldsError is returned when a session is confirmed while records
// with unresolved required fields remain. Rows are source row indexes so the
// caller can point the user at the offending lines.
type BlockingFieldsError struct {
	Rows []int
}

func (e *BlockingFieldsError) Error() string {
	parts := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return fmt.Sprintf("cannot confirm: blocking fields remain on row(s) %s", strings.Join(parts, ", "))
}

// UnknownCurrencyError rejects a whole merge batch: one of its records
// references a currency missing from the exchange rate table.
type UnknownCurrencyError struct {
	Currency string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency %q: not present in the exchange rate table", e.Currency)
}

// MergeSummary reports what a committed batch did to the portfolio.
type MergeSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// ImportService runs the extraction half of the pipeline: source adapter,
// column mapper, row normalizer, and review session creation.
type ImportService interface {
	StartImport(ctx context.Context, source string, file io.Reader) (*ImportResult, error)
	Session(id string) (*ReviewSession, error)
	EditField(id string, recordIdx int, field models.CanonicalField, raw string) (*models.DraftRecord, error)
	RemoveRecord(id string, recordIdx int) error
	Confirm(id string) (*MergeSummary, error)
	Cancel(id string) error
}

// ImportResult is what the caller gets back after extraction: a live review
// session plus the column mapping so the UI can show match confidences.
type ImportResult struct {
	SessionID string               `json:"session_id"`
	Records   []models.DraftRecord `json:"records"`
	Columns   map[int]ColumnReport `json:"columns"`
}

// ColumnReport mirrors the mapper's verdict for one source column.
type ColumnReport struct {
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
}

// MergeService reconciles a confirmed batch against the portfolio.
type MergeService interface {
	MergeBatch(records []models.DraftRecord) (*MergeSummary, error)
}

// ValuationService builds the report consumed by the presentation layer.
type ValuationService interface {
	Report() (*models.ValuationReport, error)
	InvalidateCache()
}

// RatesService manages the exchange rate table and its external refresh.
type RatesService interface {
	List() map[string]float64
	SetRate(currency string, rate float64) error
	AddCurrency(currency string, rate float64) error
	RemoveCurrency(currency string) error
	Refresh(ctx context.Context) (map[string]float64, error)
}
