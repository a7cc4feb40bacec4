// backend/src/services/valuation_service.go
package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/foliotracker/backend/src/models"
	"github.com/username/foliotracker/backend/src/utils"
)

const (
	ckValuationReport     = "valuation_report_v%d"
	reportCacheExpiration = 15 * time.Minute
	reportCleanupInterval = 30 * time.Minute
	freeCashGroupKey      = "Free Cash"
)

type valuationServiceImpl struct {
	store       *PortfolioStore
	reportCache *cache.Cache
}

// NewValuationService builds valuation reports over the shared portfolio
// state. Reports are cached per state version: any committed write moves the
// version forward and naturally invalidates the cache.
func NewValuationService(store *PortfolioStore) ValuationService {
	return &valuationServiceImpl{
		store:       store,
		reportCache: cache.New(reportCacheExpiration, reportCleanupInterval),
	}
}

func (s *valuationServiceImpl) Report() (*models.ValuationReport, error) {
	cacheKey := fmt.Sprintf(ckValuationReport, s.store.Version())
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.ValuationReport), nil
	}

	var report *models.ValuationReport
	err := s.store.View(func(p *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping) error {
		report = BuildReport(p, rates, mappings)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reportCache.Set(cacheKey, report, cache.DefaultExpiration)
	return report, nil
}

func (s *valuationServiceImpl) InvalidateCache() {
	s.reportCache.Flush()
}

// BuildReport is the valuation and allocation engine proper: a pure function
// of the portfolio, the exchange rate table, and the remembered target
// percentages. It holds no state and recomputes everything on every call;
// portfolios are tens to low hundreds of holdings.
//
// Conversion divides by the rate (rates are units of currency per 1 EUR).
// When the total portfolio value is zero every allocation percentage is
// defined as 0, not an error and not NaN. A holding without a target
// reports nil diffs; nil is "no target", which is distinct from a target of
// zero.
func BuildReport(p *models.Portfolio, rates *models.RateTable, mappings map[string]*models.InstrumentMapping) *models.ValuationReport {
	ids := p.SortedIDs()

	totalInvestedEUR := 0.0
	valuesEUR := make(map[string]float64, len(ids))
	for _, id := range ids {
		h := p.Holdings[id]
		eur, ok := rates.ConvertToEUR(h.MarketValue, h.Currency)
		if !ok {
			eur = 0
		}
		valuesEUR[id] = eur
		totalInvestedEUR += eur
	}
	totalEUR := totalInvestedEUR + p.FreeCashEUR

	report := &models.ValuationReport{
		Holdings: make([]models.HoldingValuation, 0, len(ids)),
		Summary: models.ValuationSummary{
			TotalInvestedEUR: totalInvestedEUR,
			FreeCashEUR:      p.FreeCashEUR,
			TotalEUR:         totalEUR,
			HoldingCount:     len(ids),
		},
	}

	for _, id := range ids {
		h := p.Holdings[id]
		eur := valuesEUR[id]

		row := models.HoldingValuation{
			InstrumentID:         h.InstrumentID,
			Currency:             h.Currency,
			AssetType:            h.AssetType,
			Region:               h.Region,
			Position:             h.Position,
			LastPrice:            h.LastPrice,
			MarketValue:          h.MarketValue,
			MarketValueEUR:       eur,
			AllocationPercent:    percentOf(eur, totalEUR),
			AllocationOfInvested: percentOf(eur, totalInvestedEUR),
			UnrealizedPnl:        h.UnrealizedPnl,
		}

		if target := targetFor(h, mappings); target != nil {
			t := *target
			row.TargetPercent = &t

			diffPercent := row.AllocationPercent - t
			row.DiffWithTarget = &diffPercent

			diffCash := t/100*totalEUR - eur
			row.DiffInCash = &diffCash

			if priceEUR, ok := rates.ConvertToEUR(h.LastPrice, h.Currency); ok && priceEUR != 0 {
				diffShares := diffCash / priceEUR
				row.DiffInShares = &diffShares
			}
		}

		report.Holdings = append(report.Holdings, row)
	}

	report.ByType = buildBreakdown(report.Holdings, totalEUR, totalInvestedEUR, func(r *models.HoldingValuation) string {
		return string(r.AssetType)
	})
	// Free cash participates only in the type breakdown, as its own group.
	if p.FreeCashEUR != 0 || totalEUR > 0 {
		report.ByType = append(report.ByType, models.BreakdownRow{
			Key:                  freeCashGroupKey,
			MarketValueEUR:       p.FreeCashEUR,
			AllocationPercent:    percentOf(p.FreeCashEUR, totalEUR),
			AllocationOfInvested: 0,
		})
	}
	report.ByRegion = buildBreakdown(report.Holdings, totalEUR, totalInvestedEUR, func(r *models.HoldingValuation) string {
		return string(r.Region)
	})
	report.ByTypeRegion = buildBreakdown(report.Holdings, totalEUR, totalInvestedEUR, func(r *models.HoldingValuation) string {
		return string(r.AssetType) + "/" + string(r.Region)
	})

	return report
}

// targetFor resolves a holding's target percentage: the holding's own value
// wins, then the remembered instrument mapping; nil means no target.
func targetFor(h *models.Holding, mappings map[string]*models.InstrumentMapping) *float64 {
	if h.TargetPercent != nil {
		return h.TargetPercent
	}
	if m, ok := mappings[h.InstrumentID]; ok {
		return m.TargetPercent
	}
	return nil
}

// percentOf rounds to four decimals so report percentages are stable across
// runs instead of carrying float division noise.
func percentOf(value, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return utils.RoundFloat(value/total*100, 4)
}

func buildBreakdown(rows []models.HoldingValuation, totalEUR, totalInvestedEUR float64, keyOf func(*models.HoldingValuation) string) []models.BreakdownRow {
	sums := make(map[string]*models.BreakdownRow)
	for i := range rows {
		key := keyOf(&rows[i])
		group, ok := sums[key]
		if !ok {
			group = &models.BreakdownRow{Key: key}
			sums[key] = group
		}
		group.MarketValueEUR += rows[i].MarketValueEUR
		if rows[i].TargetPercent != nil {
			group.TargetPercent += *rows[i].TargetPercent
		}
	}

	keys := make([]string, 0, len(sums))
	for key := range sums {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]models.BreakdownRow, 0, len(keys))
	for _, key := range keys {
		group := sums[key]
		group.AllocationPercent = percentOf(group.MarketValueEUR, totalEUR)
		group.AllocationOfInvested = percentOf(group.MarketValueEUR, totalInvestedEUR)
		out = append(out, *group)
	}
	return out
}
