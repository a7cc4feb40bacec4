// backend/src/parsers/ocrgrid/adapter.go
package ocrgrid

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/username/foliotracker/backend/src/config"
	"github.com/username/foliotracker/backend/src/models"
)

// The OCR engine runs outside this service; what arrives here is its plain
// text export. Columns in screenshot tables come out separated by runs of
// spaces, so cells are split on two or more spaces or on tabs. The exporter
// may append a per-line confidence hint of the form "[conf=0.87]"; lines
// without one get the configured default.
const defaultCellConfidence = 0.80

var (
	cellSeparator = regexp.MustCompile(`\s{2,}|\t+`)
	confHint      = regexp.MustCompile(`\[conf=([0-9.]+)\]\s*$`)
)

// OCRAdapter converts an OCR text export into a raw cell grid.
type OCRAdapter struct {
	defaultConfidence float64
}

// NewAdapter creates a new instance of the OCRAdapter.
func NewAdapter() *OCRAdapter {
	conf := defaultCellConfidence
	if config.Cfg != nil {
		conf = config.Cfg.DefaultOCRConfidence
	}
	return &OCRAdapter{defaultConfidence: conf}
}

func (a *OCRAdapter) Parse(ctx context.Context, file io.Reader) (models.RawGrid, error) {
	scanner := bufio.NewScanner(file)

	var grid models.RawGrid
	rowIdx := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return models.RawGrid{}, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		confidence := a.defaultConfidence
		if m := confHint.FindStringSubmatch(line); m != nil {
			if c, err := strconv.ParseFloat(m[1], 64); err == nil && c >= 0 && c <= 1 {
				confidence = c
			}
			line = strings.TrimSpace(confHint.ReplaceAllString(line, ""))
			if line == "" {
				continue
			}
		}

		parts := cellSeparator.Split(line, -1)
		// A line that did not split is most likely a caption or stray noise,
		// but single-space separated tables do exist in OCR output.
		if len(parts) < 2 {
			parts = strings.Fields(line)
		}

		row := make([]models.RawCell, 0, len(parts))
		for col, value := range parts {
			row = append(row, models.RawCell{
				Text:       strings.TrimSpace(value),
				Row:        rowIdx,
				Col:        col,
				Confidence: confidence,
			})
		}
		grid.Rows = append(grid.Rows, row)
		rowIdx++
	}
	if err := scanner.Err(); err != nil {
		return models.RawGrid{}, fmt.Errorf("ocr adapter: failed to read text export: %w", err)
	}
	return grid, nil
}
