// backend/src/security/validation/file_validation.go
package validation

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/username/foliotracker/backend/src/logger"
)

// AllowedSources maps the upload "source" parameter to whether we can parse
// it. The value distinguishes text formats from the zip-based xlsx.
var AllowedSources = map[string]bool{
	"csv":  true,
	"xlsx": true,
	"ocr":  true,
}

var xlsxMagic = []byte{0x50, 0x4b, 0x03, 0x04} // zip local file header

func logWarn(msg string, args ...any) {
	if logger.L != nil {
		logger.L.Warn(msg, args...)
	}
}

// ValidateSource checks the client-declared source format.
func ValidateSource(source string) error {
	if !AllowedSources[strings.ToLower(source)] {
		logWarn("Disallowed upload source", "source", source)
		return fmt.Errorf("upload source %q is not supported (csv, xlsx, ocr)", source)
	}
	return nil
}

// isBinaryContent reports whether a buffer looks like binary data rather than
// a text-based export: null bytes or invalid UTF-8.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	return !utf8.Valid(buf)
}

// ValidateFileContent inspects the first bytes of the upload against the
// declared source. xlsx must carry the zip signature; csv and ocr text must
// look like text. The read pointer is rewound so the parser sees the whole
// file.
func ValidateFileContent(file io.ReadSeeker, source string) error {
	if file == nil {
		return fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 1024)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for content checking: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file read pointer: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file is empty")
	}

	switch strings.ToLower(source) {
	case "xlsx":
		if !bytes.HasPrefix(buffer[:n], xlsxMagic) {
			logWarn("File rejected: missing xlsx signature")
			return fmt.Errorf("file does not look like an xlsx workbook")
		}
	default:
		if isBinaryContent(buffer[:n]) {
			logWarn("File rejected: binary content in text upload", "source", source)
			return fmt.Errorf("file appears to be binary, not %s text", source)
		}
	}
	return nil
}
