// backend/src/parsers/xlsxgrid/adapter.go
package xlsxgrid

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/username/foliotracker/backend/src/models"
	"github.com/xuri/excelize/v2"
)

// XLSXAdapter extracts a raw cell grid from the first sheet of an .xlsx
// workbook. Like CSV, spreadsheet cells are trusted fully (confidence 1.0).
type XLSXAdapter struct{}

// NewAdapter creates a new instance of the XLSXAdapter.
func NewAdapter() *XLSXAdapter {
	return &XLSXAdapter{}
}

func (a *XLSXAdapter) Parse(ctx context.Context, file io.Reader) (models.RawGrid, error) {
	xl, err := excelize.OpenReader(file)
	if err != nil {
		return models.RawGrid{}, fmt.Errorf("xlsx adapter: failed to open workbook: %w", err)
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return models.RawGrid{}, fmt.Errorf("xlsx adapter: workbook has no sheets")
	}

	rawRows, err := xl.GetRows(sheets[0])
	if err != nil {
		return models.RawGrid{}, fmt.Errorf("xlsx adapter: failed to read sheet %q: %w", sheets[0], err)
	}

	var grid models.RawGrid
	rowIdx := 0
	for _, rawRow := range rawRows {
		if err := ctx.Err(); err != nil {
			return models.RawGrid{}, err
		}

		blank := true
		for _, v := range rawRow {
			if strings.TrimSpace(v) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}

		row := make([]models.RawCell, 0, len(rawRow))
		for col, value := range rawRow {
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
