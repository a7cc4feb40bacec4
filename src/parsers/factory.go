// backend/src/parsers/factory.go
package parsers

import (
	"fmt"

	"github.com/username/foliotracker/backend/src/parsers/csvgrid"
	"github.com/username/foliotracker/backend/src/parsers/ocrgrid"
	"github.com/username/foliotracker/backend/src/parsers/xlsxgrid"
)

func GetAdapter(source string) (SourceAdapter, error) {
	switch source {
	case "csv":
		return csvgrid.NewAdapter(), nil
	case "xlsx":
		return xlsxgrid.NewAdapter(), nil
	case "ocr":
		return ocrgrid.NewAdapter(), nil
	default:
		return nil, fmt.Errorf("no source adapter available for source: %s", source)
	}
}
