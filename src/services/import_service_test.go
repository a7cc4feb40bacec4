// backend/src/services/import_service_test.go
package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/foliotracker/backend/src/models"
	"github.com/username/foliotracker/backend/src/processors"
)

func newTestImportService(t *testing.T, store *PortfolioStore) ImportService {
	t.Helper()
	mapper := processors.NewColumnMapper(0.72)
	normalizer := processors.NewRowNormalizer(0.90, "EUR")
	merger := NewMergeService(store, "EUR", true)
	return NewImportService(mapper, normalizer, store, merger)
}

const sampleCSV = `Ticker,Qty,Last,Market Value
AAPL,10,150.00,1500.00
VWCE,12,110.52,1326.24
`

func TestImportPipeline_UploadReviewConfirm(t *testing.T) {
	store := newTestStore(t, nil)
	svc := newTestImportService(t, store)

	result, err := svc.StartImport(context.Background(), "csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.NotEmpty(t, result.SessionID)
	assert.Len(t, result.Columns, 4)

	// Nothing committed yet.
	assert.Empty(t, store.PortfolioView().Holdings)

	summary, err := svc.Confirm(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)

	p := store.PortfolioView()
	require.Len(t, p.Holdings, 2)
	assert.Equal(t, 1500.0, p.Holdings["AAPL"].MarketValue)

	// The session is gone once confirmed.
	_, err = svc.Session(result.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestImportPipeline_BlockingRecordPreventsConfirm(t *testing.T) {
	store := newTestStore(t, nil)
	svc := newTestImportService(t, store)

	csv := "Ticker,Qty,Last\nAAPL,N/A,150.00\n"
	result, err := svc.StartImport(context.Background(), "csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.True(t, result.Records[0].Blocking)

	_, err = svc.Confirm(result.SessionID)
	var blockingErr *BlockingFieldsError
	require.ErrorAs(t, err, &blockingErr)
	assert.Equal(t, []int{result.Records[0].Row}, blockingErr.Rows)
	assert.Empty(t, store.PortfolioView().Holdings)

	// Fixing the field unblocks the record and the confirm goes through.
	record, err := svc.EditField(result.SessionID, 0, models.FieldPosition, "10")
	require.NoError(t, err)
	assert.False(t, record.Blocking)

	summary, err := svc.Confirm(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 10.0, store.PortfolioView().Holdings["AAPL"].Position)
}

func TestImportPipeline_RemoveBlockingRecordThenConfirm(t *testing.T) {
	store := newTestStore(t, nil)
	svc := newTestImportService(t, store)

	csv := "Ticker,Qty,Last\nAAPL,10,150.00\nBROKEN,N/A,1.00\n"
	result, err := svc.StartImport(context.Background(), "csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	require.NoError(t, svc.RemoveRecord(result.SessionID, 1))

	summary, err := svc.Confirm(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
}

func TestImportPipeline_CancelDiscardsEverything(t *testing.T) {
	store := newTestStore(t, nil)
	svc := newTestImportService(t, store)

	result, err := svc.StartImport(context.Background(), "csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(result.SessionID))
	assert.Empty(t, store.PortfolioView().Holdings)

	_, err = svc.Session(result.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Confirm(result.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestImportPipeline_UnknownCurrencyKeepsSessionOpen(t *testing.T) {
	store := newTestStore(t, nil)
	svc := newTestImportService(t, store)

	target := 10.0
	require.NoError(t, store.update(func(_ *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping) (dirtySet, error) {
		mappings["AAPL"] = &models.InstrumentMapping{InstrumentID: "AAPL", Currency: "JPY", TargetPercent: &target}
		return dirtySet{}, nil
	}))

	result, err := svc.StartImport(context.Background(), "csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// AAPL pre-filled with a currency missing from the rate table; the whole
	// batch is rejected and the session survives for another attempt.
	_, err = svc.Confirm(result.SessionID)
	var currencyErr *UnknownCurrencyError
	require.ErrorAs(t, err, &currencyErr)
	assert.Equal(t, "JPY", currencyErr.Currency)

	_, err = svc.Session(result.SessionID)
	require.NoError(t, err)
	assert.Empty(t, store.PortfolioView().Holdings)
}

func TestImportPipeline_UnmappableSchema(t *testing.T) {
	store := newTestStore(t, nil)
	svc := newTestImportService(t, store)

	csv := "alpha,beta,gamma\n1,2,3\n"
	_, err := svc.StartImport(context.Background(), "csv", strings.NewReader(csv))
	var schemaErr *processors.SchemaMappingError
	require.ErrorAs(t, err, &schemaErr)
}

func TestImportPipeline_ContextCancellation(t *testing.T) {
	store := newTestStore(t, nil)
	svc := newTestImportService(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.StartImport(ctx, "csv", strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportPipeline_UnknownSource(t *testing.T) {
	store := newTestStore(t, nil)
	svc := newTestImportService(t, store)

	_, err := svc.StartImport(context.Background(), "pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrExtractionFailed)
}
