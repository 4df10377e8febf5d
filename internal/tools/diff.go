package tools

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffLine is one line of a change preview, classified for rendering.
type DiffLine struct {
	Type string `json:"type"` // "add" | "remove" | "unchanged"
	Text string `json:"text"`
}

// diffLines computes a line-level diff between two documents using the
// diff-match-patch line mode.
func diffLines(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var out []DiffLine
	for _, d := range diffs {
		kind := "unchanged"
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = "add"
		case diffmatchpatch.DiffDelete:
			kind = "remove"
		}
		for _, line := range splitKeepingLines(d.Text) {
			out = append(out, DiffLine{Type: kind, Text: line})
		}
	}
	return out
}

// unifiedDiff renders classified lines with +/-/space prefixes.
func unifiedDiff(lines []DiffLine) string {
	var sb strings.Builder
	for _, l := range lines {
		switch l.Type {
		case "add":
			sb.WriteString("+ ")
		case "remove":
			sb.WriteString("- ")
		default:
			sb.WriteString("  ")
		}
		sb.WriteString(l.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func splitKeepingLines(text string) []string {
	trimmed := strings.TrimSuffix(text, "\n")
	if trimmed == "" && text != "" {
		return []string{""}
	}
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
