package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	assert.Nil(t, Split("", 1000, 200))
	assert.Nil(t, Split("   \n\t  ", 1000, 200))
}

func TestSplitSingleChunkWhenTextFits(t *testing.T) {
	text := "A short document that fits in one chunk."
	chunks := Split(text, 1000, 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(text), chunks[0].EndOffset)
}

func TestSplitNormalizesWhitespace(t *testing.T) {
	chunks := Split("hello\n\n  world\t\tagain", 1000, 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world again", chunks[0].Text)
}

func TestSplitChunkSizeBound(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	chunks := Split(text, 1000, 200)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 1000, "chunk %d exceeds max size", c.Index)
	}
}

func TestSplitFiveChunksFor3500Chars(t *testing.T) {
	// No sentence boundaries, so cut points are exact arithmetic:
	// [0,1000) [800,1800) [1600,2600) [2400,3400) [3200,3500).
	text := strings.Repeat("a", 3500)
	chunks := Split(text, 1000, 200)

	require.Len(t, chunks, 5)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 1000, chunks[0].EndOffset)
	assert.Equal(t, 800, chunks[1].StartOffset)
	assert.Equal(t, 3200, chunks[4].StartOffset)
	assert.Equal(t, 3500, chunks[4].EndOffset)
}

func TestSplitOverlappingBoundaries(t *testing.T) {
	text := strings.Repeat("b", 2500)
	chunks := Split(text, 1000, 200)

	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndOffset-200, chunks[i].StartOffset,
			"chunk %d should start one overlap before the previous end", i)
	}
}

func TestSplitReconstruction(t *testing.T) {
	text := strings.Repeat("Sentence number one is here. And then sentence two follows! Is this three? ", 60)
	norm := Normalize(text)
	chunks := Split(text, 1000, 200)

	require.NotEmpty(t, chunks)

	// Concatenating chunks minus their overlap with the previous chunk
	// reconstructs the normalized original.
	var sb strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		skip := prevEnd - c.StartOffset
		require.GreaterOrEqual(t, skip, 0, "chunks must not leave gaps")
		sb.WriteString(c.Text[skip:])
		prevEnd = c.EndOffset
	}
	assert.Equal(t, norm, sb.String())
}

func TestSplitSentenceBoundarySnapping(t *testing.T) {
	// Build text where a sentence ends shortly before the naive cut at
	// 1000: the first chunk should end right after that ". ".
	sentence := strings.Repeat("x", 950) + ". "
	text := sentence + strings.Repeat("y", 2000)
	chunks := Split(text, 1000, 200)

	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0].Text, ". "),
		"first chunk should snap to the sentence boundary, got tail %q",
		chunks[0].Text[len(chunks[0].Text)-10:])
	assert.Equal(t, 952, chunks[0].EndOffset)
}

func TestSplitNeverLoopsOnBadOverlap(t *testing.T) {
	// overlap >= maxChunkSize would naively never advance.
	text := strings.Repeat("z", 5000)

	done := make(chan []Chunk, 1)
	go func() { done <- Split(text, 100, 100) }()

	chunks := <-done
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 100)
	}
	assert.Equal(t, 5000, chunks[len(chunks)-1].EndOffset)
}

func TestSplitMarkdownSections(t *testing.T) {
	md := "# Title\n\nIntro paragraph.\n\n## Section A\n\nBody of A.\n\n## Section B\n\nBody of B.\n"
	chunks := SplitMarkdown(md, 1000, 200)

	require.Len(t, chunks, 3)
	assert.Equal(t, "# Title Intro paragraph.", chunks[0].Text)
	assert.Equal(t, "## Section A Body of A.", chunks[1].Text)
	assert.Equal(t, "## Section B Body of B.", chunks[2].Text)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSplitMarkdownIgnoresHeadingsInFences(t *testing.T) {
	md := "# Real\n\nSome text.\n\n```\n# not a heading\n```\n\nMore text.\n"
	chunks := SplitMarkdown(md, 1000, 200)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "# not a heading")
}

func TestSplitMarkdownOversizedSection(t *testing.T) {
	md := "# Big\n\n" + strings.Repeat("word ", 600) // ~3000 chars, one section
	chunks := SplitMarkdown(md, 1000, 200)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 1000)
	}
}

func TestSplitMarkdownEmpty(t *testing.T) {
	assert.Nil(t, SplitMarkdown("", 1000, 200))
	assert.Nil(t, SplitMarkdown("\n\n\n", 1000, 200))
}
