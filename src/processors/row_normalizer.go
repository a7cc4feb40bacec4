// backend/src/processors/row_normalizer.go
package processors

import (
	"strconv"
	"strings"

	"github.com/username/foliotracker/backend/src/models"
)

// summaryKeywords mark aggregate rows brokers append below the table; those
// rows are not holdings and are skipped outright.
var summaryKeywords = []string{"total", "sum", "pending"}

// dashPlaceholders are the "no value" markers brokers print in empty cells.
// They parse as zero rather than as a failure.
var dashPlaceholders = map[string]bool{"": true, "-": true, "--": true, "—": true, "–": true}

// ocrSubstitutions is the restricted character repair pass for numeric cells:
// confusions OCR engines actually make on digits. It is applied only when the
// plain parse fails, and only to fields expected to be numeric.
var ocrSubstitutions = strings.NewReplacer(
	"O", "0", "o", "0",
	"l", "1", "I", "1", "|", "1",
	"S", "5",
	"B", "8",
)

// RowNormalizer converts raw grid rows into typed draft records using a
// resolved column mapping. It is a pure function of its inputs: the grid, the
// mapping, the remembered instrument classifications, and the thresholds.
type RowNormalizer struct {
	reviewThreshold float64
	defaultCurrency string
}

// NewRowNormalizer creates a normalizer. Fields whose composed confidence
// falls below reviewThreshold are flagged for review.
func NewRowNormalizer(reviewThreshold float64, defaultCurrency string) *RowNormalizer {
	return &RowNormalizer{reviewThreshold: reviewThreshold, defaultCurrency: defaultCurrency}
}

// Normalize produces one draft record per data row, in source order. Rows
// above the header, blank rows, and broker summary rows are skipped.
// Classification is pre-filled from knownMappings where available.
func (n *RowNormalizer) Normalize(grid models.RawGrid, mapping ColumnMapping, knownMappings map[string]*models.InstrumentMapping) []models.DraftRecord {
	var records []models.DraftRecord

	for rowIdx := mapping.HeaderRow + 1; rowIdx < len(grid.Rows); rowIdx++ {
		row := grid.Rows[rowIdx]

		if isBlankRow(row, mapping) {
			continue
		}

		instrumentRaw := rawForField(row, mapping, models.FieldInstrument)
		instrumentID := NormalizeInstrumentID(instrumentRaw)
		if isSummaryRow(instrumentID) {
			continue
		}

		record := models.DraftRecord{
			Row:        rowIdx,
			Instrument: instrumentID,
			Fields:     make(map[models.CanonicalField]models.FieldValue, len(mapping.Columns)),
			Currency:   n.defaultCurrency,
			AssetType:  models.AssetUnassigned,
			Region:     models.RegionUnassigned,
		}

		for col, match := range mapping.Columns {
			if col >= len(row) {
				continue
			}
			cell := row[col]
			if match.Field == models.FieldInstrument {
				record.Fields[match.Field] = models.FieldValue{
					Raw:        cell.Text,
					Parsed:     instrumentID != "",
					Confidence: compose(cell.Confidence, match.Confidence, instrumentID != ""),
				}
				continue
			}
			record.Fields[match.Field] = n.normalizeNumericCell(cell, match)
		}

		// Instrument may have mapped onto a column past this row's width.
		if _, ok := record.Fields[models.FieldInstrument]; !ok {
			record.Fields[models.FieldInstrument] = models.FieldValue{
				Raw:         instrumentRaw,
				Parsed:      false,
				NeedsReview: true,
			}
		}

		n.markReview(&record)
		n.prefillClassification(&record, knownMappings)
		record.RecomputeBlocking()
		records = append(records, record)
	}
	return records
}

// ReparseField applies a user-supplied raw value to a single field of a draft
// record. User input is trusted: confidence becomes 1.0 and the review flag
// clears, unless the new value still fails to parse.
func (n *RowNormalizer) ReparseField(record *models.DraftRecord, field models.CanonicalField, raw string) {
	fv := models.FieldValue{Raw: raw, Confidence: 1.0}
	if field == models.FieldInstrument {
		id := NormalizeInstrumentID(raw)
		fv.Parsed = id != ""
		fv.NeedsReview = !fv.Parsed
		record.Instrument = id
	} else {
		value, ok := parseNumeric(raw, true)
		fv.Value = value
		fv.Parsed = ok
		fv.NeedsReview = !ok
		if !ok {
			fv.Confidence = 0
		}
	}
	record.Fields[field] = fv
	record.RecomputeBlocking()
}

func (n *RowNormalizer) normalizeNumericCell(cell models.RawCell, match ColumnMatch) models.FieldValue {
	value, ok := parseNumeric(cell.Text, true)
	fv := models.FieldValue{
		Raw:        cell.Text,
		Value:      value,
		Parsed:     ok,
		Confidence: compose(cell.Confidence, match.Confidence, ok),
	}
	return fv
}

func (n *RowNormalizer) markReview(record *models.DraftRecord) {
	for field, fv := range record.Fields {
		fv.NeedsReview = !fv.Parsed || fv.Confidence < n.reviewThreshold
		record.Fields[field] = fv
	}
}

func (n *RowNormalizer) prefillClassification(record *models.DraftRecord, knownMappings map[string]*models.InstrumentMapping) {
	m, ok := knownMappings[record.Instrument]
	if !ok || m == nil {
		return
	}
	if m.Currency != "" {
		record.Currency = models.NormalizeCurrency(m.Currency)
	}
	record.AssetType = m.AssetType
	record.Region = m.Region
	if m.TargetPercent != nil {
		t := *m.TargetPercent
		record.TargetPercent = &t
	}
}

// compose is the confidence composition rule: source-cell confidence times
// column-mapping confidence, zeroed when parsing failed.
func compose(cellConf, mapConf float64, parsed bool) float64 {
	if !parsed {
		return 0
	}
	return cellConf * mapConf
}

// NormalizeInstrumentID produces the join key used by the merge engine:
// uppercase, trimmed, internal whitespace collapsed to single spaces.
func NormalizeInstrumentID(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

func rawForField(row []models.RawCell, mapping ColumnMapping, field models.CanonicalField) string {
	col, _, ok := mapping.ColumnFor(field)
	if !ok || col >= len(row) {
		return ""
	}
	return row[col].Text
}

func isBlankRow(row []models.RawCell, mapping ColumnMapping) bool {
	for col := range mapping.Columns {
		if col < len(row) && strings.TrimSpace(row[col].Text) != "" {
			return false
		}
	}
	return true
}

func isSummaryRow(instrumentID string) bool {
	lower := strings.ToLower(instrumentID)
	for _, kw := range summaryKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// parseNumeric converts broker-formatted numbers into float64: thousands
// separators, parentheses negatives, leading/trailing currency markers and
// percent signs are tolerated. Dash placeholders parse as zero. When allowOCR
// is set and the plain parse fails, the restricted OCR substitution pass is
// applied once and the parse retried.
func parseNumeric(s string, allowOCR bool) (float64, bool) {
	if v, ok := parseNumericOnce(s); ok {
		return v, true
	}
	if allowOCR {
		return parseNumericOnce(ocrSubstitutions.Replace(s))
	}
	return 0, false
}

func parseNumericOnce(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)

	if dashPlaceholders[s] {
		return 0, true
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.TrimSuffix(s, "%")
	s = trimCurrencyMarkers(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}

	s = normalizeSeparators(s)

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

// trimCurrencyMarkers strips currency symbols and short alphabetic currency
// codes from either end of a numeric string ("$1,234.50", "31.86 USD",
// "C31.86").
func trimCurrencyMarkers(s string) string {
	const symbols = "€$£¥₣₤"
	s = strings.TrimSpace(strings.Trim(s, symbols))

	fields := strings.Fields(s)
	if len(fields) == 2 {
		if isCurrencyCode(fields[0]) {
			return fields[1]
		}
		if isCurrencyCode(fields[1]) {
			return fields[0]
		}
	}

	// Single-letter prefix glued to the number, e.g. "C31.86" for CNH.
	if len(s) > 1 && isASCIILetter(s[0]) && (s[1] >= '0' && s[1] <= '9') {
		return s[1:]
	}
	return s
}

func isCurrencyCode(s string) bool {
	if len(s) < 2 || len(s) > 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isASCIILetter(s[i]) {
			return false
		}
	}
	return true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// normalizeSeparators resolves comma/period usage: when both appear, the one
// further right is the decimal separator and the other marks thousands; a
// lone comma followed by at most two digits is a decimal comma; any other
// commas are thousands separators.
func normalizeSeparators(s string) string {
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case hasComma:
		if strings.Count(s, ",") == 1 {
			if idx := strings.Index(s, ","); len(s)-idx-1 <= 2 {
				return strings.Replace(s, ",", ".", 1)
			}
		}
		return strings.ReplaceAll(s, ",", "")
	default:
		return s
	}
}
