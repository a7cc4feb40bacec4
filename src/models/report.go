// backend/src/models/report.go
package models

// HoldingValuation is one row of the valuation report. The pointer fields are
// nil when they are undefined: no target set, or a zero last price making the
// share diff incomputable. Callers must not conflate nil with zero.
type HoldingValuation struct {
	InstrumentID         string    `json:"instrument_id"`
	Currency             string    `json:"currency"`
	AssetType            AssetType `json:"asset_type"`
	Region               Region    `json:"region"`
	Position             float64   `json:"position"`
	LastPrice            float64   `json:"last_price"`
	MarketValue          float64   `json:"market_value"` // original currency
	MarketValueEUR       float64   `json:"market_value_eur"`
	AllocationPercent    float64   `json:"allocation_percent"`     // over total incl. free cash
	AllocationOfInvested float64   `json:"allocation_of_invested"` // over invested only
	TargetPercent        *float64  `json:"target_percent,omitempty"`
	DiffWithTarget       *float64  `json:"diff_with_target_percent,omitempty"`
	DiffInCash           *float64  `json:"diff_in_cash,omitempty"`
	DiffInShares         *float64  `json:"diff_in_shares,omitempty"`
	UnrealizedPnl        float64   `json:"unrealized_pnl"`
}

// BreakdownRow aggregates holdings sharing a group key (an asset type, a
// region, or a type/region pair).
type BreakdownRow struct {
	Key                  string  `json:"key"`
	MarketValueEUR       float64 `json:"market_value_eur"`
	AllocationPercent    float64 `json:"allocation_percent"`
	AllocationOfInvested float64 `json:"allocation_of_invested"`
	TargetPercent        float64 `json:"target_percent"` // sum of member targets
}

// ValuationSummary carries portfolio-level totals.
type ValuationSummary struct {
	TotalInvestedEUR float64 `json:"total_invested_eur"`
	FreeCashEUR      float64 `json:"free_cash_eur"`
	TotalEUR         float64 `json:"total_eur"`
	HoldingCount     int     `json:"holding_count"`
}

// ValuationReport is the one data structure the presentation layer consumes;
// it never recomputes valuation itself.
type ValuationReport struct {
	Holdings     []HoldingValuation `json:"holdings"`
	ByType       []BreakdownRow     `json:"by_type"` // includes the free-cash pseudo-group
	ByRegion     []BreakdownRow     `json:"by_region"`
	ByTypeRegion []BreakdownRow     `json:"by_type_region"`
	Summary      ValuationSummary   `json:"summary"`
}
