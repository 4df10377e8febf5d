// Package chunker splits extracted document text into overlapping,
// boundary-aware segments. Chunks are the unit of embedding and retrieval.
// Chunking is pure and synchronous: no I/O, no error conditions.
package chunker

import (
	"regexp"
	"strings"
)

// Default chunking configuration, in characters.
const (
	DefaultMaxChunkSize = 1000
	DefaultOverlap      = 200

	// boundarySearchWindow is how far back from the naive cut point we
	// look for a sentence boundary.
	boundarySearchWindow = 100
)

// Chunk is one bounded slice of a document's normalized text.
type Chunk struct {
	Index       int
	Text        string
	StartOffset int
	EndOffset   int
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace runs to single spaces and trims the ends.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// sentence boundaries we snap to, searched right-to-left.
var boundaryMarkers = []string{". ", "? ", "! ", "\n"}

// Chunk splits text into overlapping chunks of at most maxChunkSize
// characters. Boundaries prefer sentence ends within the last
// boundarySearchWindow characters of the naive cut point. Returns nil for
// empty or whitespace-only input. A single chunk is returned when the
// normalized text fits within maxChunkSize.
func Split(text string, maxChunkSize, overlap int) []Chunk {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	if len(norm) <= maxChunkSize {
		return []Chunk{{Index: 0, Text: norm, StartOffset: 0, EndOffset: len(norm)}}
	}

	var chunks []Chunk
	start := 0
	index := 0

	for start < len(norm) {
		end := start + maxChunkSize
		if end >= len(norm) {
			end = len(norm)
		} else {
			end = snapToBoundary(norm, start, end)
		}

		chunks = append(chunks, Chunk{
			Index:       index,
			Text:        norm[start:end],
			StartOffset: start,
			EndOffset:   end,
		})
		index++

		if end == len(norm) {
			break
		}

		next := end - overlap
		// Guards against overlap >= chunk size misconfiguration: the
		// window must always advance or we would loop forever.
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// snapToBoundary moves the cut point back to the last sentence boundary
// within the search window, if one exists. The boundary marker stays with
// the preceding chunk.
func snapToBoundary(text string, start, naiveEnd int) int {
	windowStart := naiveEnd - boundarySearchWindow
	if windowStart < start {
		windowStart = start
	}
	window := text[windowStart:naiveEnd]

	best := -1
	bestLen := 0
	for _, marker := range boundaryMarkers {
		if i := strings.LastIndex(window, marker); i > best {
			best = i
			bestLen = len(marker)
		}
	}
	if best < 0 {
		return naiveEnd
	}
	return windowStart + best + bestLen
}
