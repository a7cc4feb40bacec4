// backend/src/services/merge_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/foliotracker/backend/src/models"
)

func TestMergeBatch_InsertDerivesMarketValue(t *testing.T) {
	store := newTestStore(t, map[string]float64{"USD": 1.09})
	merger := NewMergeService(store, "EUR", true)

	summary, err := merger.MergeBatch([]models.DraftRecord{
		draftRecord("AAPL", 10, 150, "USD"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)

	p := store.PortfolioView()
	h := p.Holdings["AAPL"]
	require.NotNil(t, h)
	assert.Equal(t, 10.0, h.Position)
	assert.Equal(t, 150.0, h.LastPrice)
	// No market_value column in the record: derived from position * price.
	assert.Equal(t, 1500.0, h.MarketValue)
	assert.Equal(t, "USD", h.Currency)
}

func TestMergeBatch_ExplicitMarketValueWins(t *testing.T) {
	store := newTestStore(t, nil)
	merger := NewMergeService(store, "EUR", true)

	record := draftRecord("VWCE", 12, 110, "EUR")
	record.Fields[models.FieldMarketValue] = models.FieldValue{Value: 1326.24, Parsed: true, Confidence: 1.0}

	_, err := merger.MergeBatch([]models.DraftRecord{record})
	require.NoError(t, err)

	h := store.PortfolioView().Holdings["VWCE"]
	require.NotNil(t, h)
	assert.Equal(t, 1326.24, h.MarketValue)
}

func TestMergeBatch_Idempotent(t *testing.T) {
	store := newTestStore(t, nil)
	merger := NewMergeService(store, "EUR", true)
	batch := []models.DraftRecord{
		draftRecord("AAPL", 10, 150, "EUR"),
		draftRecord("MSFT", 5, 300, "EUR"),
	}

	first, err := merger.MergeBatch(batch)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := merger.MergeBatch(batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Updated)

	p := store.PortfolioView()
	assert.Len(t, p.Holdings, 2)
	assert.Equal(t, 10.0, p.Holdings["AAPL"].Position)
}

func TestMergeBatch_UnknownCurrencyRejectsWholeBatch(t *testing.T) {
	store := newTestStore(t, nil)
	merger := NewMergeService(store, "EUR", true)

	_, err := merger.MergeBatch([]models.DraftRecord{
		draftRecord("AAPL", 10, 150, "EUR"),
		draftRecord("NINTENDO", 3, 8000, "JPY"),
	})
	var currencyErr *UnknownCurrencyError
	require.ErrorAs(t, err, &currencyErr)
	assert.Equal(t, "JPY", currencyErr.Currency)

	// Nothing was applied, including the valid record.
	assert.Empty(t, store.PortfolioView().Holdings)
}

func TestMergeBatch_UpdateRefreshesNumbersKeepsClassification(t *testing.T) {
	store := newTestStore(t, map[string]float64{"USD": 1.09})
	merger := NewMergeService(store, "EUR", true)

	_, err := merger.MergeBatch([]models.DraftRecord{draftRecord("AAPL", 10, 150, "USD")})
	require.NoError(t, err)

	target := 25.0
	equity := models.AssetEquity
	us := models.RegionUS
	require.NoError(t, store.EditHolding("AAPL", HoldingEdit{
		AssetType:     &equity,
		Region:        &us,
		TargetPercent: &target,
	}))

	// Re-import with fresher numbers and no classification.
	_, err = merger.MergeBatch([]models.DraftRecord{draftRecord("AAPL", 12, 155, "USD")})
	require.NoError(t, err)

	h := store.PortfolioView().Holdings["AAPL"]
	assert.Equal(t, 12.0, h.Position)
	assert.Equal(t, 155.0, h.LastPrice)
	assert.Equal(t, models.AssetEquity, h.AssetType)
	assert.Equal(t, models.RegionUS, h.Region)
	require.NotNil(t, h.TargetPercent)
	assert.Equal(t, 25.0, *h.TargetPercent)
}

func TestMergeBatch_FillsUnassignedClassification(t *testing.T) {
	store := newTestStore(t, nil)
	merger := NewMergeService(store, "EUR", true)

	_, err := merger.MergeBatch([]models.DraftRecord{draftRecord("VWCE", 12, 110, "EUR")})
	require.NoError(t, err)

	record := draftRecord("VWCE", 13, 111, "EUR")
	record.AssetType = models.AssetEquity
	record.Region = models.RegionGlobal

	_, err = merger.MergeBatch([]models.DraftRecord{record})
	require.NoError(t, err)

	h := store.PortfolioView().Holdings["VWCE"]
	assert.Equal(t, models.AssetEquity, h.AssetType)
	assert.Equal(t, models.RegionGlobal, h.Region)
}

func TestMergeBatch_NewHoldingTakesMappingDefaults(t *testing.T) {
	store := newTestStore(t, nil)
	merger := NewMergeService(store, "EUR", true)

	target := 40.0
	require.NoError(t, store.SetMapping(&models.InstrumentMapping{
		InstrumentID:  "VWCE",
		AssetType:     models.AssetEquity,
		Region:        models.RegionGlobal,
		TargetPercent: &target,
	}))

	_, err := merger.MergeBatch([]models.DraftRecord{draftRecord("VWCE", 12, 110, "EUR")})
	require.NoError(t, err)

	h := store.PortfolioView().Holdings["VWCE"]
	assert.Equal(t, models.AssetEquity, h.AssetType)
	assert.Equal(t, models.RegionGlobal, h.Region)
	require.NotNil(t, h.TargetPercent)
	assert.Equal(t, 40.0, *h.TargetPercent)
}

func TestMergeBatch_NeverDeletesAbsentHoldings(t *testing.T) {
	store := newTestStore(t, nil)
	merger := NewMergeService(store, "EUR", true)

	_, err := merger.MergeBatch([]models.DraftRecord{
		draftRecord("AAPL", 10, 150, "EUR"),
		draftRecord("MSFT", 5, 300, "EUR"),
	})
	require.NoError(t, err)

	_, err = merger.MergeBatch([]models.DraftRecord{draftRecord("AAPL", 11, 151, "EUR")})
	require.NoError(t, err)

	p := store.PortfolioView()
	assert.Len(t, p.Holdings, 2)
	assert.Equal(t, 5.0, p.Holdings["MSFT"].Position)
}
