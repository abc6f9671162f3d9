// Package document extracts plain text from local files for summarization.
package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MaxTextSize bounds the text read from a single file.
const MaxTextSize = 1 << 20

// ErrUnsupported is returned for file types with no text extractor.
var ErrUnsupported = errors.New("unsupported document type")

var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
	".html": true,
	".log":  true,
}

// ReadText returns the text content of path. PDFs are parsed page by page;
// known text formats are read as-is.
func ReadText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		return ExtractPDF(f, info.Size())
	case textExtensions[ext]:
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		b, err := io.ReadAll(io.LimitReader(f, MaxTextSize))
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%s is not valid UTF-8 text", path)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// ExtractPDF concatenates the plain text of every non-empty page.
func ExtractPDF(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("parsing PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
		if b.Len() >= MaxTextSize {
			break
		}
	}

	if b.Len() == 0 {
		return "", errors.New("PDF contains no extractable text")
	}
	return b.String(), nil
}
