// Package chunker splits extracted document text into bounded, normalized chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the default maximum chunk length in characters.
	DefaultChunkSize = 2000
	// DefaultChunkOverlap is the default number of characters carried between chunks.
	DefaultChunkOverlap = 20
)

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits text recursively on a list of separators and merges the
// pieces into windows of at most chunkSize characters.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a chunker. Sizes are counted in characters (runes).
func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap > chunkSize {
		return nil, fmt.Errorf("chunk overlap must be between 0 and %d, got %d", chunkSize, chunkOverlap)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// Chunk is shorthand for New followed by Chunker.Chunk.
func Chunk(raw string, chunkSize, chunkOverlap int) ([]string, error) {
	c, err := New(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(raw), nil
}

// Chunk splits raw into chunks and normalizes each one. Chunks that are empty
// after normalization are dropped.
func (c *Chunker) Chunk(raw string) []string {
	var out []string
	for _, piece := range c.Split(raw) {
		n := Normalize(piece)
		if strings.TrimSpace(n) == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Split returns the un-normalized chunks of text.
func (c *Chunker) Split(text string) []string {
	return c.splitText(text, c.separators)
}

// Normalize replaces newlines with spaces and removes "." and "-". The result
// is what gets embedded and stored; the change is not reversible.
func Normalize(s string) string {
	return normalizer.Replace(s)
}

var normalizer = strings.NewReplacer("\n", " ", ".", "", "-", "")

func (c *Chunker) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, s := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(s) < c.chunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.mergeSplits(good)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, s)
		} else {
			final = append(final, c.splitText(s, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.mergeSplits(good)...)
	}
	return final
}

// splitKeepSeparator splits text on sep, keeping sep at the start of each
// following piece. Empty pieces are dropped.
func splitKeepSeparator(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for i, p := range strings.Split(text, sep) {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// mergeSplits greedily joins pieces into windows of at most chunkSize runes,
// carrying up to chunkOverlap runes of trailing pieces into the next window.
func (c *Chunker) mergeSplits(splits []string) []string {
	var (
		docs    []string
		current []string
		lengths []int
		total   int
	)
	for _, s := range splits {
		l := utf8.RuneCountInString(s)
		if total+l > c.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > c.chunkOverlap || (total+l > c.chunkSize && total > 0) {
				total -= lengths[0]
				current = current[1:]
				lengths = lengths[1:]
			}
		}
		current = append(current, s)
		lengths = append(lengths, l)
		total += l
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}
