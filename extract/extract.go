package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docsift/core"
)

// Format identifies a supported upload format.
type Format string

const (
	FormatText Format = ".txt"
	FormatPDF  Format = ".pdf"
	FormatDOCX Format = ".docx"
)

// SupportedFormats lists the accepted upload formats in display order.
var SupportedFormats = []Format{FormatText, FormatPDF, FormatDOCX}

// FormatFromFilename returns the format implied by a filename's extension.
// Matching is case-insensitive.
func FormatFromFilename(name string) (Format, error) {
	ext := Format(strings.ToLower(filepath.Ext(name)))
	for _, f := range SupportedFormats {
		if ext == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, filepath.Ext(name))
}

// Extract converts raw file content into plain text according to the
// extension of filename.
func Extract(filename string, data []byte) (string, error) {
	format, err := FormatFromFilename(filename)
	if err != nil {
		return "", err
	}
	return ExtractFormat(format, data)
}

// ExtractFormat converts raw content of a known format into plain text.
func ExtractFormat(format Format, data []byte) (string, error) {
	switch format {
	case FormatText:
		return DecodeText(data)
	case FormatPDF:
		return extractPDF(data)
	case FormatDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, string(format))
	}
}

// DecodeText validates that data is UTF-8 and returns it as a string.
// A leading byte order mark is dropped.
func DecodeText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return strings.TrimPrefix(string(data), "\uFEFF"), nil
}
