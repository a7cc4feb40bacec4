// backend/src/services/merge_service.go
package services

import (
	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
)

type mergeServiceImpl struct {
	store                      *PortfolioStore
	defaultCurrency            string
	preserveUserClassification bool
}

// NewMergeService reconciles confirmed batches against the portfolio. When
// preserveUserClassification is set (the default policy), an import never
// overwrites a classification the user has already assigned.
func NewMergeService(store *PortfolioStore, defaultCurrency string, preserveUserClassification bool) MergeService {
	return &mergeServiceImpl{
		store:                      store,
		defaultCurrency:            models.NormalizeCurrency(defaultCurrency),
		preserveUserClassification: preserveUserClassification,
	}
}

// MergeBatch applies a confirmed batch atomically: every record's currency is
// validated against the rate table before a single holding is touched, so a
// rejection leaves the portfolio byte-for-byte unchanged. Import is additive
// and updating only; holdings absent from the batch are never deleted.
func (m *mergeServiceImpl) MergeBatch(records []models.DraftRecord) (*MergeSummary, error) {
	summary := &MergeSummary{}

	err := m.store.update(func(p *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping) (dirtySet, error) {
		// Validation pass first; nothing is mutated until it succeeds.
		for i := range records {
			currency := m.recordCurrency(&records[i])
			if !rates.Has(currency) {
				return dirtySet{}, &UnknownCurrencyError{Currency: currency}
			}
		}

		for i := range records {
			record := &records[i]
			if existing, ok := p.Holdings[record.Instrument]; ok {
				m.updateHolding(existing, record)
				summary.Updated++
			} else {
				p.Holdings[record.Instrument] = m.newHolding(record, mappings)
				summary.Inserted++
			}
		}
		return dirtySet{portfolio: true}, nil
	})
	if err != nil {
		logger.L.Warn("Merge batch rejected", "records", len(records), "error", err)
		return nil, err
	}

	logger.L.Info("Merge batch committed", "inserted", summary.Inserted, "updated", summary.Updated)
	return summary, nil
}

// updateHolding applies "new values win" to the numeric fields the record
// actually carries; classification follows the configured policy.
func (m *mergeServiceImpl) updateHolding(h *models.Holding, record *models.DraftRecord) {
	applyNumericFields(h, record)

	if m.preserveUserClassification {
		// Only fill classification gaps; user-assigned values stay.
		if h.AssetType == models.AssetUnassigned && record.AssetType != models.AssetUnassigned {
			h.AssetType = record.AssetType
		}
		if h.Region == models.RegionUnassigned && record.Region != models.RegionUnassigned {
			h.Region = record.Region
		}
		if h.TargetPercent == nil && record.TargetPercent != nil {
			t := *record.TargetPercent
			h.TargetPercent = &t
		}
		// Currency is always user-governed once set; imports never change it.
	} else {
		h.AssetType = record.AssetType
		h.Region = record.Region
		h.Currency = m.recordCurrency(record)
		if record.TargetPercent != nil {
			t := *record.TargetPercent
			h.TargetPercent = &t
		}
	}
}

// newHolding builds a holding for an instrument seen for the first time,
// taking classification defaults from the remembered instrument mapping when
// one exists.
func (m *mergeServiceImpl) newHolding(record *models.DraftRecord, mappings map[string]*models.InstrumentMapping) *models.Holding {
	h := &models.Holding{
		InstrumentID: record.Instrument,
		Currency:     m.recordCurrency(record),
		AssetType:    record.AssetType,
		Region:       record.Region,
	}
	if record.TargetPercent != nil {
		t := *record.TargetPercent
		h.TargetPercent = &t
	}
	if mapping, ok := mappings[record.Instrument]; ok {
		if h.AssetType == models.AssetUnassigned {
			h.AssetType = mapping.AssetType
		}
		if h.Region == models.RegionUnassigned {
			h.Region = mapping.Region
		}
		if h.TargetPercent == nil && mapping.TargetPercent != nil {
			t := *mapping.TargetPercent
			h.TargetPercent = &t
		}
	}
	applyNumericFields(h, record)
	return h
}

// recordCurrency resolves the currency a record will be booked under: its
// pre-filled classification currency, or the configured default.
func (m *mergeServiceImpl) recordCurrency(record *models.DraftRecord) string {
	if record.Currency != "" {
		return models.NormalizeCurrency(record.Currency)
	}
	return m.defaultCurrency
}

func applyNumericFields(h *models.Holding, record *models.DraftRecord) {
	set := func(field models.CanonicalField, dst *float64) bool {
		fv, ok := record.Fields[field]
		if !ok || !fv.Parsed {
			return false
		}
		*dst = fv.Value
		return true
	}

	set(models.FieldPosition, &h.Position)
	set(models.FieldLastPrice, &h.LastPrice)
	set(models.FieldChangePercent, &h.ChangePercent)
	set(models.FieldCostBasis, &h.CostBasis)
	set(models.FieldAvgPrice, &h.AvgPrice)
	set(models.FieldDailyPnl, &h.DailyPnl)
	set(models.FieldUnrealizedPnl, &h.UnrealizedPnl)

	// Market value is derived from position and price when the source file
	// does not carry its own column.
	if !set(models.FieldMarketValue, &h.MarketValue) {
		h.MarketValue = h.Position * h.LastPrice
	}
}
