// Package chunker splits extracted text into overlapping segments sized for embedding.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	StrategyFixed     = "fixed"
	StrategyRecursive = "recursive"
)

// Segment is one chunk of text and its starting rune offset in the source.
type Segment struct {
	Text   string
	Offset int
}

type Chunker interface {
	Split(text string) ([]Segment, error)
}

func New(strategy string, size, overlap int) (Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	switch strategy {
	case StrategyFixed:
		return Fixed{Size: size, Overlap: overlap}, nil
	case StrategyRecursive, "":
		return NewRecursive(size, overlap), nil
	default:
		return nil, fmt.Errorf("unknown chunk strategy %q", strategy)
	}
}

// Fixed cuts the text into windows of Size runes advancing by Size-Overlap.
type Fixed struct {
	Size    int
	Overlap int
}

func (f Fixed) Split(text string) ([]Segment, error) {
	runes := []rune(text)
	step := f.Size - f.Overlap
	if step <= 0 {
		step = f.Size
	}
	out := make([]Segment, 0)
	for i := 0; i < len(runes); i += step {
		end := i + f.Size
		if end > len(runes) {
			end = len(runes)
		}
		window := runes[i:end]
		lead := 0
		for lead < len(window) && unicode.IsSpace(window[lead]) {
			lead++
		}
		part := strings.TrimSpace(string(window))
		if part != "" {
			out = append(out, Segment{Text: part, Offset: i + lead})
		}
		if end == len(runes) {
			break
		}
	}
	return out, nil
}

// Recursive splits on paragraph, line, then word boundaries before falling back to characters.
type Recursive struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursive(size, overlap int) Recursive {
	return Recursive{splitter: textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)}
}

func (r Recursive) Split(text string) ([]Segment, error) {
	parts, err := r.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	out := make([]Segment, 0, len(parts))
	cursor := 0
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		idx := strings.Index(text[cursor:], p)
		byteOff := cursor
		if idx >= 0 {
			byteOff = cursor + idx
			// overlapping windows may start before the end of the previous one
			cursor = byteOff + 1
		} else if idx = strings.Index(text, p); idx >= 0 {
			byteOff = idx
		}
		out = append(out, Segment{Text: p, Offset: utf8.RuneCountInString(text[:byteOff])})
	}
	return out, nil
}
