package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadText_PlainText(t *testing.T) {
	got, err := ReadText(filepath.Join("testdata", "notes.txt"))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if !strings.HasPrefix(got, "Goroutines are lightweight threads") {
		t.Errorf("got %q", got)
	}
}

func TestReadText_PDF(t *testing.T) {
	got, err := ReadText(filepath.Join("testdata", "hello.pdf"))
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if !strings.Contains(got, "Hello") {
		t.Errorf("got %q, want text containing Hello", got)
	}
}

func TestReadText_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644)

	if _, err := ReadText(path); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestReadText_InvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0o644)

	if _, err := ReadText(path); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestExtractPDF_NotAPDF(t *testing.T) {
	r := strings.NewReader("plain text pretending to be a pdf")
	if _, err := ExtractPDF(r, r.Size()); err == nil {
		t.Error("expected parse error")
	}
}

func TestReadText_Missing(t *testing.T) {
	if _, err := ReadText(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("expected error for missing file")
	}
}
