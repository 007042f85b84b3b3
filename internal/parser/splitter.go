package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"pdf-qa/internal/config"
	"pdf-qa/internal/models"
)

// Separators are tried in order: paragraph, line, sentence, word, character.
var Separators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts document text into overlapping chunks.
type Splitter struct {
	chunkSize int
	splitter  textsplitter.RecursiveCharacter
}

// NewSplitter builds a recursive character splitter. Zero or invalid
// sizes fall back to 500/100.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkSize = config.DefaultChunkSize
		chunkOverlap = config.DefaultChunkOverlap
	}
	return &Splitter{
		chunkSize: chunkSize,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(Separators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}
}

// Split returns the chunks of text in splitter order. Empty or blank
// text yields no chunks.
func (s *Splitter) Split(text string) ([]models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		// a single run without any separator can still overflow
		for _, piece := range hardWrap(part, s.chunkSize) {
			chunks = append(chunks, models.Chunk{Index: len(chunks), Content: piece})
		}
	}
	return chunks, nil
}

func hardWrap(s string, size int) []string {
	if utf8.RuneCountInString(s) <= size {
		return []string{s}
	}
	var out []string
	runes := []rune(s)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}
