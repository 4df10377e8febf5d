// Package docproc turns ingested files into canonical extracted text.
// Plain text and Markdown pass through directly; binary formats (PDF,
// DOCX, images) are delegated to external extraction codecs and surface
// a typed error when no codec is wired in.
package docproc

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedType means no extractor can handle the file's format.
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrNotText means the bytes are not valid UTF-8 for a text format.
var ErrNotText = errors.New("file content is not valid text")

// Extractor produces canonical text from one file format family.
type Extractor interface {
	// Extract returns the canonical text for the file.
	Extract(name string, data []byte) (string, error)

	// Supports reports whether the extractor handles the extension
	// (lowercase, without dot).
	Supports(ext string) bool
}

// Processor routes files to the first extractor that supports them.
type Processor struct {
	extractors []Extractor
}

// NewProcessor creates a processor with the built-in text extractor plus
// any additional codecs.
func NewProcessor(extra ...Extractor) *Processor {
	return &Processor{extractors: append([]Extractor{textExtractor{}}, extra...)}
}

// DetectType returns the normalized file type for a name: "md", "txt",
// or the bare extension.
func DetectType(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	switch ext {
	case "markdown", "md":
		return "md"
	case "", "text", "txt", "log":
		return "txt"
	default:
		return ext
	}
}

// Extract produces canonical text and the detected type for a file.
func (p *Processor) Extract(name string, data []byte) (text, fileType string, err error) {
	fileType = DetectType(name)
	for _, e := range p.extractors {
		if !e.Supports(fileType) {
			continue
		}
		text, err = e.Extract(name, data)
		return text, fileType, err
	}
	return "", fileType, fmt.Errorf("%w: .%s (%s)", ErrUnsupportedType, fileType, name)
}

// Supports reports whether any extractor handles the file.
func (p *Processor) Supports(name string) bool {
	fileType := DetectType(name)
	for _, e := range p.extractors {
		if e.Supports(fileType) {
			return true
		}
	}
	return false
}

// textExtractor passes UTF-8 text through, normalizing line endings.
type textExtractor struct{}

func (textExtractor) Supports(ext string) bool {
	switch ext {
	case "txt", "md":
		return true
	default:
		return false
	}
}

func (textExtractor) Extract(name string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrNotText, name)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
