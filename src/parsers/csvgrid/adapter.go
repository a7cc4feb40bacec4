// backend/src/parsers/csvgrid/adapter.go
package csvgrid

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/foliotracker/backend/src/models"
)

// CSVAdapter extracts a raw cell grid from a CSV export. Spreadsheet cells
// carry no extraction uncertainty, so every cell gets confidence 1.0.
type CSVAdapter struct{}

// NewAdapter creates a new instance of the CSVAdapter.
func NewAdapter() *CSVAdapter {
	return &CSVAdapter{}
}

func (a *CSVAdapter) Parse(ctx context.Context, file io.Reader) (models.RawGrid, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields per record

	var grid models.RawGrid
	rowIdx := 0
	for {
		if err := ctx.Err(); err != nil {
			return models.RawGrid{}, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.RawGrid{}, fmt.Errorf("csv adapter: failed to read record: %w", err)
		}

		// Skip fully blank lines
		blank := true
		for _, v := range record {
			if strings.TrimSpace(v) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}

		row := make([]models.RawCell, 0, len(record))
		for col, value := range record {
			row = append(row, models.RawCell{
				Text:       value,
				Row:        rowIdx,
				Col:        col,
				Confidence: 1.0,
			})
		}
		grid.Rows = append(grid.Rows, row)
		rowIdx++
	}
	return grid, nil
}
