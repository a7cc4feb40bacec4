// backend/src/models/canonical.go
package models

// CanonicalField is a fixed slot in the normalized import schema. Every source
// column is mapped onto one of these fields (or left unmapped) before rows are
// normalized. The declaration order is the deterministic tie-break order used
// by the column mapper.
type CanonicalField int

const (
	FieldInstrument CanonicalField = iota
	FieldPosition
	FieldLastPrice
	FieldChangePercent
	FieldCostBasis
	FieldMarketValue
	FieldAvgPrice
	FieldDailyPnl
	FieldUnrealizedPnl
)

var canonicalFieldNames = map[CanonicalField]string{
	FieldInstrument:    "instrument",
	FieldPosition:      "position",
	FieldLastPrice:     "last_price",
	FieldChangePercent: "change_percent",
	FieldCostBasis:     "cost_basis",
	FieldMarketValue:   "market_value",
	FieldAvgPrice:      "avg_price",
	FieldDailyPnl:      "daily_pnl",
	FieldUnrealizedPnl: "unrealized_pnl",
}

func (f CanonicalField) String() string {
	if name, ok := canonicalFieldNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseCanonicalField resolves a field name (as used in the JSON API) back to
// its CanonicalField. The second return value is false for unknown names.
func ParseCanonicalField(name string) (CanonicalField, bool) {
	for f, n := range canonicalFieldNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}

// AllCanonicalFields returns every field in declaration order.
func AllCanonicalFields() []CanonicalField {
	return []CanonicalField{
		FieldInstrument, FieldPosition, FieldLastPrice, FieldChangePercent,
		FieldCostBasis, FieldMarketValue, FieldAvgPrice, FieldDailyPnl,
		FieldUnrealizedPnl,
	}
}

// RequiredFields are the fields an import cannot proceed without.
func RequiredFields() []CanonicalField {
	return []CanonicalField{FieldInstrument, FieldPosition}
}

// IsNumeric reports whether the field holds a numeric value. Only numeric
// fields go through the OCR character-substitution pass during normalization.
func (f CanonicalField) IsNumeric() bool {
	return f != FieldInstrument
}

// MarshalText lets CanonicalField be used directly as a JSON map key.
func (f CanonicalField) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// RawCell is a single extracted cell before any normalization. Confidence is
// the source extractor's own trust score (OCR engine score, or 1.0 for
// spreadsheet cells).
type RawCell struct {
	Text       string  `json:"text"`
	Row        int     `json:"row"`
	Col        int     `json:"col"`
	Confidence float64 `json:"confidence"`
}

// RawGrid is the untyped output of a source adapter: ordered rows of cells.
type RawGrid struct {
	Rows [][]RawCell `json:"rows"`
}

// FieldValue is one normalized field of a draft record. Parsed is false when
// the raw text could not be converted to the field's type; NeedsReview marks
// values the user should look at before the record is committed.
type FieldValue struct {
	Raw         string  `json:"raw"`
	Value       float64 `json:"value"`
	Parsed      bool    `json:"parsed"`
	Confidence  float64 `json:"confidence"`
	NeedsReview bool    `json:"needs_review"`
}

// DraftRecord is one normalized-but-unconfirmed row awaiting review. Blocking
// records (required field missing or unparsable) cannot be confirmed until the
// user fixes or removes them.
type DraftRecord struct {
	Row        int                           `json:"row"`
	Instrument string                        `json:"instrument"`
	Fields     map[CanonicalField]FieldValue `json:"fields"`
	Blocking   bool                          `json:"blocking"`

	// Classification pre-filled from a stored InstrumentMapping, if any.
	Currency      string    `json:"currency"`
	AssetType     AssetType `json:"asset_type"`
	Region        Region    `json:"region"`
	TargetPercent *float64  `json:"target_percent,omitempty"`
}

// Field returns the value for f, or a zero FieldValue if the column never
// mapped for this record.
func (d *DraftRecord) Field(f CanonicalField) FieldValue {
	return d.Fields[f]
}

// RecomputeBlocking re-derives the row-level blocking flag from the required
// fields. Called after a user edit and during initial normalization.
func (d *DraftRecord) RecomputeBlocking() {
	d.Blocking = false
	if d.Instrument == "" {
		d.Blocking = true
		return
	}
	pos, ok := d.Fields[FieldPosition]
	if !ok || !pos.Parsed {
		d.Blocking = true
	}
}
