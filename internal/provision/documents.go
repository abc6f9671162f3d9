package provision

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed seed/*.txt
var seedFS embed.FS

// Document is a seed file uploaded under the documents/ prefix.
type Document struct {
	Name        string
	Body        []byte
	ContentType string
}

// Key is the object key of the document inside the bucket.
func (d Document) Key() string {
	return documentsPrefix + d.Name
}

// DefaultDocuments returns the built-in seed set.
func DefaultDocuments() []Document {
	entries, err := fs.ReadDir(seedFS, "seed")
	if err != nil {
		return nil
	}
	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		body, err := seedFS.ReadFile(path.Join("seed", e.Name()))
		if err != nil {
			continue
		}
		docs = append(docs, Document{Name: e.Name(), Body: body, ContentType: "text/plain"})
	}
	return docs
}

var documentTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".pdf":  "application/pdf",
	".html": "text/html",
	".csv":  "text/csv",
}

// LoadDocumentDir reads every supported file directly inside dir. Files are
// uploaded as-is; the knowledge index parses PDFs itself.
func LoadDocumentDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading document dir: %w", err)
	}

	var docs []Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ct, ok := documentTypes[strings.ToLower(filepath.Ext(e.Name()))]
		if !ok {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		docs = append(docs, Document{Name: e.Name(), Body: body, ContentType: ct})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no supported documents in %s", dir)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}
