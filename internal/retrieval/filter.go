package retrieval

import "strings"

// FilterByScore keeps chunks scoring at least threshold, preserving order.
func FilterByScore(chunks []ContextChunk, threshold float64) []ContextChunk {
	out := make([]ContextChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Score >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// JoinTop joins the content of the first n chunks with newlines.
func JoinTop(chunks []ContextChunk, n int) string {
	if n > len(chunks) {
		n = len(chunks)
	}
	parts := make([]string, 0, n)
	for _, c := range chunks[:n] {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n")
}
