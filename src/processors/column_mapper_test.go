// backend/src/processors/column_mapper_test.go
package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/foliotracker/backend/src/models"
)

func headerGrid(rows ...[]string) models.RawGrid {
	var grid models.RawGrid
	for rowIdx, row := range rows {
		cells := make([]models.RawCell, 0, len(row))
		for col, text := range row {
			cells = append(cells, models.RawCell{Text: text, Row: rowIdx, Col: col, Confidence: 1.0})
		}
		grid.Rows = append(grid.Rows, cells)
	}
	return grid
}

func TestMapColumns_ExactHeaders(t *testing.T) {
	mapper := NewColumnMapper(0.72)
	grid := headerGrid(
		[]string{"Ticker", "Qty", "Last", "Cost", "Market Value"},
		[]string{"AAPL", "10", "150.00", "1400.00", "1500.00"},
	)

	mapping, err := mapper.MapColumns(grid)
	require.NoError(t, err)
	assert.Equal(t, 0, mapping.HeaderRow)

	col, match, ok := mapping.ColumnFor(models.FieldInstrument)
	require.True(t, ok)
	assert.Equal(t, 0, col)
	assert.Equal(t, 1.0, match.Confidence)

	col, match, ok = mapping.ColumnFor(models.FieldPosition)
	require.True(t, ok)
	assert.Equal(t, 1, col)
	assert.Equal(t, 1.0, match.Confidence)

	col, _, ok = mapping.ColumnFor(models.FieldLastPrice)
	require.True(t, ok)
	assert.Equal(t, 2, col)

	col, _, ok = mapping.ColumnFor(models.FieldCostBasis)
	require.True(t, ok)
	assert.Equal(t, 3, col)

	col, _, ok = mapping.ColumnFor(models.FieldMarketValue)
	require.True(t, ok)
	assert.Equal(t, 4, col)
}

func TestMapColumns_FuzzyHeaders(t *testing.T) {
	mapper := NewColumnMapper(0.72)
	// OCR'd headers with typos still resolve, at reduced confidence.
	grid := headerGrid(
		[]string{"Tickr", "Quantiti", "Last Price"},
		[]string{"MSFT", "5", "300"},
	)

	mapping, err := mapper.MapColumns(grid)
	require.NoError(t, err)

	_, match, ok := mapping.ColumnFor(models.FieldInstrument)
	require.True(t, ok)
	assert.Less(t, match.Confidence, 1.0)
	assert.GreaterOrEqual(t, match.Confidence, 0.72)

	_, _, ok = mapping.ColumnFor(models.FieldPosition)
	require.True(t, ok)
}

func TestMapColumns_HeaderBelowPreamble(t *testing.T) {
	mapper := NewColumnMapper(0.72)
	grid := headerGrid(
		[]string{"Portfolio export 2026-08-29"},
		[]string{""},
		[]string{"Symbol", "Shares", "Price"},
		[]string{"VWCE", "12", "110.52"},
	)

	mapping, err := mapper.MapColumns(grid)
	require.NoError(t, err)
	assert.Equal(t, 2, mapping.HeaderRow)
}

func TestMapColumns_MissingRequiredColumn(t *testing.T) {
	mapper := NewColumnMapper(0.72)
	// No position column anywhere.
	grid := headerGrid(
		[]string{"Ticker", "Last", "Market Value"},
		[]string{"AAPL", "150.00", "1500.00"},
	)

	_, err := mapper.MapColumns(grid)
	var schemaErr *SchemaMappingError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Missing, models.FieldPosition)
}

func TestMapColumns_NoHeaderAtAll(t *testing.T) {
	mapper := NewColumnMapper(0.72)
	grid := headerGrid(
		[]string{"AAPL", "10", "150.00"},
		[]string{"MSFT", "5", "300.00"},
	)

	_, err := mapper.MapColumns(grid)
	var schemaErr *SchemaMappingError
	require.ErrorAs(t, err, &schemaErr)
}

func TestMapColumns_DuplicateHeaderKeepsHigherConfidence(t *testing.T) {
	mapper := NewColumnMapper(0.72)
	// "Pric" is fuzzy, "Price" is exact; the exact one must win the field.
	grid := headerGrid(
		[]string{"Ticker", "Qty", "Pric", "Price"},
		[]string{"AAPL", "10", "1", "150.00"},
	)

	mapping, err := mapper.MapColumns(grid)
	require.NoError(t, err)

	col, match, ok := mapping.ColumnFor(models.FieldLastPrice)
	require.True(t, ok)
	assert.Equal(t, 3, col)
	assert.Equal(t, 1.0, match.Confidence)
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Market Value", "market value"},
		{"  Mkt.  Value! ", "mkt value"},
		{"UNREALIZED P/L", "unrealized pl"},
		{"Qty (shares)", "qty shares"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeHeader(tt.in), "input %q", tt.in)
	}
}

func TestSimilarityRatio(t *testing.T) {
	assert.Equal(t, 1.0, similarityRatio("price", "price"))
	assert.InDelta(t, 0.8, similarityRatio("price", "pryce"), 0.01)
	assert.Greater(t, similarityRatio("quantity", "quantiti"), 0.8)
	assert.Less(t, similarityRatio("ticker", "value"), 0.4)
}
