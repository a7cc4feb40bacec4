package parsers

import (
	"context"
	"io"

	"github.com/username/foliotracker/backend/src/models"
)

// SourceAdapter wraps an external extractor (spreadsheet decoder or OCR text
// export) and yields an untyped grid of cells with source-specific confidence
// hints. Extraction may be slow; adapters honor ctx cancellation between rows
// and return ctx.Err() with no partial output.
type SourceAdapter interface {
	Parse(ctx context.Context, file io.Reader) (models.RawGrid, error)
}
