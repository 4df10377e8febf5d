package chunker

import (
	"regexp"
	"strings"
)

var headingLine = regexp.MustCompile(`^#{1,6}\s+`)

// SplitMarkdown chunks markdown along heading boundaries instead of raw
// character windows. Each section (a heading plus its body, or the
// preamble before the first heading) becomes one chunk; sections that
// exceed maxChunkSize fall back to the sliding-window splitter so no
// chunk breaches the size bound. Offsets refer to the raw markdown text.
func SplitMarkdown(text string, maxChunkSize, overlap int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	sections := splitSections(text)

	var chunks []Chunk
	index := 0
	for _, sec := range sections {
		norm := Normalize(sec.text)
		if norm == "" {
			continue
		}
		if len(norm) <= maxChunkSize {
			chunks = append(chunks, Chunk{
				Index:       index,
				Text:        norm,
				StartOffset: sec.start,
				EndOffset:   sec.end,
			})
			index++
			continue
		}
		// Oversized section: window-split its text, rebasing offsets to
		// the section's position in the raw document.
		for _, sub := range Split(sec.text, maxChunkSize, overlap) {
			sub.Index = index
			sub.StartOffset = sec.start
			sub.EndOffset = sec.end
			chunks = append(chunks, sub)
			index++
		}
	}
	return chunks
}

type section struct {
	text  string
	start int
	end   int
}

// splitSections partitions markdown into contiguous heading-delimited
// ranges. Fenced code blocks are kept intact: a heading-looking line
// inside a fence does not start a new section.
func splitSections(text string) []section {
	lines := strings.SplitAfter(text, "\n")

	var sections []section
	secStart := 0
	offset := 0
	inFence := false

	var current strings.Builder
	flush := func(end int) {
		if current.Len() > 0 {
			sections = append(sections, section{text: current.String(), start: secStart, end: end})
			current.Reset()
		}
		secStart = end
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if !inFence && headingLine.MatchString(line) && current.Len() > 0 {
			flush(offset)
		}
		current.WriteString(line)
		offset += len(line)
	}
	flush(offset)

	return sections
}
