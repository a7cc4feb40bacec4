// backend/src/models/models.go
package models

import (
	"sort"
	"strings"
)

// AssetType is the user-assigned asset classification of a holding.
type AssetType string

const (
	AssetEquity     AssetType = "Equity"
	AssetBonds      AssetType = "Bonds"
	AssetCommodity  AssetType = "Commodity"
	AssetThematic   AssetType = "Thematic"
	AssetREIT       AssetType = "REIT"
	AssetUnassigned AssetType = "Unassigned"
)

// AllAssetTypes returns every asset type in display order.
func AllAssetTypes() []AssetType {
	return []AssetType{AssetEquity, AssetBonds, AssetCommodity, AssetThematic, AssetREIT, AssetUnassigned}
}

// ParseAssetType maps a string onto an AssetType, case-insensitively.
// Unknown values resolve to AssetUnassigned with ok=false.
func ParseAssetType(s string) (AssetType, bool) {
	for _, t := range AllAssetTypes() {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return AssetUnassigned, false
}

// Region is the user-assigned geographic classification of a holding.
type Region string

const (
	RegionUS         Region = "US"
	RegionEU         Region = "EU"
	RegionEM         Region = "EM" // Emerging Markets
	RegionGlobal     Region = "Global"
	RegionNon        Region = "Non" // Non-regional (e.g. commodities)
	RegionUnassigned Region = "Unassigned"
)

// AllRegions returns every region in display order.
func AllRegions() []Region {
	return []Region{RegionUS, RegionEU, RegionEM, RegionGlobal, RegionNon, RegionUnassigned}
}

// ParseRegion maps a string onto a Region, case-insensitively.
// Unknown values resolve to RegionUnassigned with ok=false.
func ParseRegion(s string) (Region, bool) {
	for _, r := range AllRegions() {
		if strings.EqualFold(s, string(r)) {
			return r, true
		}
	}
	return RegionUnassigned, false
}

// Holding is a committed portfolio position. InstrumentID is the normalized
// ticker (uppercase, trimmed, internal whitespace collapsed) and the unique
// key within a Portfolio. TargetPercent nil means "no target set", which is
// distinct from a target of 0.
type Holding struct {
	InstrumentID   string    `json:"instrument_id"`
	Position       float64   `json:"position"`
	LastPrice      float64   `json:"last_price"`
	ChangePercent  float64   `json:"change_percent"`
	CostBasis      float64   `json:"cost_basis"`
	MarketValue    float64   `json:"market_value"` // in the holding's own currency
	AvgPrice       float64   `json:"avg_price"`
	DailyPnl       float64   `json:"daily_pnl"`
	UnrealizedPnl  float64   `json:"unrealized_pnl"`
	Currency       string    `json:"currency"`
	AssetType      AssetType `json:"asset_type"`
	Region         Region    `json:"region"`
	TargetPercent  *float64  `json:"target_percent,omitempty"`
}

// Clone returns a deep copy of the holding.
func (h *Holding) Clone() *Holding {
	c := *h
	if h.TargetPercent != nil {
		t := *h.TargetPercent
		c.TargetPercent = &t
	}
	return &c
}

// Portfolio is the full set of holdings keyed by instrument id, plus free
// cash held in EUR. It is mutated only while the owning store's write lock is
// held.
type Portfolio struct {
	Holdings    map[string]*Holding `json:"holdings"`
	FreeCashEUR float64             `json:"free_cash_eur"`
}

// NewPortfolio returns an empty portfolio.
func NewPortfolio() *Portfolio {
	return &Portfolio{Holdings: make(map[string]*Holding)}
}

// Clone returns a deep copy, used to stage an atomic merge.
func (p *Portfolio) Clone() *Portfolio {
	c := &Portfolio{
		Holdings:    make(map[string]*Holding, len(p.Holdings)),
		FreeCashEUR: p.FreeCashEUR,
	}
	for id, h := range p.Holdings {
		c.Holdings[id] = h.Clone()
	}
	return c
}

// SortedIDs returns the instrument ids in lexical order, for deterministic
// output.
func (p *Portfolio) SortedIDs() []string {
	ids := make([]string, 0, len(p.Holdings))
	for id := range p.Holdings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InstrumentMapping is the remembered classification for an instrument. It
// has a lifecycle independent of any Holding: it survives holding deletion
// and is consulted to pre-fill future imports.
type InstrumentMapping struct {
	InstrumentID  string    `json:"instrument_id"`
	Currency      string    `json:"currency"`
	AssetType     AssetType `json:"asset_type"`
	Region        Region    `json:"region"`
	TargetPercent *float64  `json:"target_percent,omitempty"`
}

// Clone returns a deep copy of the mapping.
func (m *InstrumentMapping) Clone() *InstrumentMapping {
	c := *m
	if m.TargetPercent != nil {
		t := *m.TargetPercent
		c.TargetPercent = &t
	}
	return &c
}
