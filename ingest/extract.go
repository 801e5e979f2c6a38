package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNoText means extraction produced no usable text. Callers skip the
// document and continue; this is never a crash.
var ErrNoText = errors.New("no text could be extracted")

var whitespace = regexp.MustCompile(`\s+`)

// ExtractPDFText returns the plain text of a PDF and its page count. The file
// is validated with pdfcpu first so a truncated or non-PDF payload fails
// before text extraction; the page count feeds approximate page-number
// metadata on the resulting chunks.
func ExtractPDFText(raw []byte) (string, int, error) {
	if len(raw) == 0 {
		return "", 0, ErrNoText
	}

	pages, err := api.PageCount(bytes.NewReader(raw), api.LoadConfiguration())
	if err != nil {
		return "", 0, fmt.Errorf("%w: invalid pdf: %v", ErrNoText, err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", pages, fmt.Errorf("%w: %v", ErrNoText, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("%w: %v", ErrNoText, err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", pages, fmt.Errorf("%w: %v", ErrNoText, err)
	}

	text := NormalizeText(string(out))
	if text == "" {
		return "", pages, ErrNoText
	}
	return text, pages, nil
}

// NormalizeText collapses runs of whitespace into single spaces.
func NormalizeText(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// TitleFromFilename derives a human-readable title from a filename.
func TitleFromFilename(filename string) string {
	title := strings.TrimSuffix(filename, ".pdf")
	title = strings.TrimSuffix(title, ".txt")
	title = strings.NewReplacer("-", " ", "_", " ").Replace(title)
	return NormalizeText(title)
}
