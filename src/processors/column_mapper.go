// backend/src/processors/column_mapper.go
package processors

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/username/foliotracker/backend/src/models"
)

// Broker exports never agree on column wording, so headers are resolved
// against a synonym table per canonical field, with a Levenshtein-ratio
// fallback for near misses (OCR'd headers arrive with typos). Synonyms are
// stored pre-normalized: lowercase, punctuation stripped, whitespace
// collapsed.
var fieldSynonyms = map[models.CanonicalField][]string{
	models.FieldInstrument:    {"instrument", "ticker", "symbol", "name", "security", "product"},
	models.FieldPosition:      {"position", "qty", "quantity", "shares", "units"},
	models.FieldLastPrice:     {"last", "last price", "current price", "lastprice", "price"},
	models.FieldChangePercent: {"change", "chg", "daily change", "change percent"},
	models.FieldCostBasis:     {"cost basis", "cost", "total cost", "basis"},
	models.FieldMarketValue:   {"market value", "value", "mkt value", "current value"},
	models.FieldAvgPrice:      {"avg price", "average price", "avgprice", "average"},
	models.FieldDailyPnl:      {"daily pl", "daily pnl", "day pl", "daily gain"},
	models.FieldUnrealizedPnl: {"unrealized pl", "unrealized pnl", "unrealized", "total pl", "gainloss"},
}

// maxHeaderProbeRows limits how deep the mapper searches for a header row;
// broker exports put preamble above the table, but never this much.
const maxHeaderProbeRows = 10

// minHeaderMatches is how many columns must resolve before a row is accepted
// as the header row.
const minHeaderMatches = 2

// SchemaMappingError reports required canonical fields that no column mapped
// onto. The import cannot proceed; the caller must retry with another file.
type SchemaMappingError struct {
	Missing []models.CanonicalField
}

func (e *SchemaMappingError) Error() string {
	names := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		names[i] = f.String()
	}
	return fmt.Sprintf("schema mapping failed: required column(s) not found: %s", strings.Join(names, ", "))
}

// ColumnMatch is the resolved canonical field for one source column.
type ColumnMatch struct {
	Field      models.CanonicalField `json:"field"`
	Confidence float64               `json:"confidence"`
}

// ColumnMapping maps source column indexes onto canonical fields. Columns
// absent from the map are preserved in the grid but excluded from
// normalization.
type ColumnMapping struct {
	Columns   map[int]ColumnMatch `json:"columns"`
	HeaderRow int                 `json:"header_row"`
}

// ColumnFor returns the source column carrying the given canonical field.
func (m *ColumnMapping) ColumnFor(f models.CanonicalField) (int, ColumnMatch, bool) {
	for col, match := range m.Columns {
		if match.Field == f {
			return col, match, true
		}
	}
	return 0, ColumnMatch{}, false
}

// ColumnMapper resolves raw column headers to canonical fields.
type ColumnMapper struct {
	minScore float64
}

// NewColumnMapper creates a mapper with the given minimum-acceptance
// similarity score for fuzzy matches.
func NewColumnMapper(minScore float64) *ColumnMapper {
	return &ColumnMapper{minScore: minScore}
}

// MapColumns locates the header row within the grid and resolves each of its
// columns. It fails with a SchemaMappingError when instrument or position
// cannot be mapped with acceptable confidence.
func (cm *ColumnMapper) MapColumns(grid models.RawGrid) (ColumnMapping, error) {
	probe := len(grid.Rows)
	if probe > maxHeaderProbeRows {
		probe = maxHeaderProbeRows
	}

	var best ColumnMapping
	bestMatches := 0
	for rowIdx := 0; rowIdx < probe; rowIdx++ {
		mapping := cm.mapRow(grid.Rows[rowIdx])
		if len(mapping) >= minHeaderMatches && len(mapping) > bestMatches {
			best = ColumnMapping{Columns: mapping, HeaderRow: rowIdx}
			bestMatches = len(mapping)
		}
		// A row already matching most fields will not be beaten; stop early.
		if bestMatches >= len(fieldSynonyms)-1 {
			break
		}
	}

	if bestMatches == 0 {
		return ColumnMapping{}, &SchemaMappingError{Missing: models.RequiredFields()}
	}

	var missing []models.CanonicalField
	for _, f := range models.RequiredFields() {
		if _, _, ok := best.ColumnFor(f); !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return ColumnMapping{}, &SchemaMappingError{Missing: missing}
	}
	return best, nil
}

// mapRow resolves one candidate header row, enforcing one column per field.
// When two columns claim the same field the higher-confidence column wins;
// on equal confidence the leftmost column keeps it.
func (cm *ColumnMapper) mapRow(row []models.RawCell) map[int]ColumnMatch {
	type claim struct {
		col   int
		match ColumnMatch
	}
	byField := make(map[models.CanonicalField]claim)

	for col, cell := range row {
		field, score, ok := cm.matchHeader(cell.Text)
		if !ok {
			continue
		}
		if prev, taken := byField[field]; taken && prev.match.Confidence >= score {
			continue
		}
		byField[field] = claim{col: col, match: ColumnMatch{Field: field, Confidence: score}}
	}

	mapping := make(map[int]ColumnMatch, len(byField))
	for _, c := range byField {
		mapping[c.col] = c.match
	}
	return mapping
}

// matchHeader scores a single header against the synonym table. An exact
// synonym match is confidence 1.0; otherwise the best similarity ratio across
// all synonyms is used, subject to the minimum-acceptance threshold. Fields
// are scanned in declaration order so ties resolve deterministically.
func (cm *ColumnMapper) matchHeader(header string) (models.CanonicalField, float64, bool) {
	norm := NormalizeHeader(header)
	if norm == "" {
		return 0, 0, false
	}

	var bestField models.CanonicalField
	bestScore := 0.0
	for _, field := range models.AllCanonicalFields() {
		for _, syn := range fieldSynonyms[field] {
			var score float64
			if norm == syn {
				score = 1.0
			} else {
				score = similarityRatio(norm, syn)
			}
			if score > bestScore {
				bestField = field
				bestScore = score
			}
		}
	}

	if bestScore < cm.minScore {
		return 0, bestScore, false
	}
	return bestField, bestScore, true
}

// NormalizeHeader lowercases a header and strips punctuation, keeping only
// letters, digits and single spaces.
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "\u00a0", " "))
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// similarityRatio is a normalized edit-distance score in [0,1]: 1.0 for equal
// strings, falling with the Levenshtein distance relative to the longer
// string.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	dist := levenshtein(a, b)
	longer := la
	if lb > longer {
		longer = lb
	}
	return 1.0 - float64(dist)/float64(longer)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
