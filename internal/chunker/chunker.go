// Package chunker splits extracted document text into overlapping chunks
// sized for embedding and retrieval.
//
// Splitting is recursive over an ordered separator list, coarsest first.
// Text is cut into pieces on the first separator, pieces that are still too
// long are cut again on the next one, and the empty separator falls back to
// a plain character split. Pieces are then merged greedily into chunks, each
// chunk starting chunk_overlap characters before the end of the previous one.
//
// Lengths and offsets are counted in characters (runes), not bytes.
package chunker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of characters shared by consecutive chunks.
	DefaultChunkOverlap = 150

	// pageJoiner separates page texts when a document is flattened.
	pageJoiner = "\n\n"
)

// DefaultSeparators returns the paragraph, line, word, character separator list.
func DefaultSeparators() []string {
	return []string{"\n\n", "\n", " ", ""}
}

// Config holds splitter parameters.
type Config struct {
	ChunkSize    int      `koanf:"chunk_size"`
	ChunkOverlap int      `koanf:"chunk_overlap"`
	Separators   []string `koanf:"separators"`
}

// DefaultConfig returns the default splitter configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if len(c.Separators) == 0 {
		return fmt.Errorf("at least one separator is required")
	}
	return nil
}

// Page is the text of one document page. Number is 1-based; 0 means unknown.
type Page struct {
	Number int
	Text   string
}

// Document is the text extracted from one source file.
type Document struct {
	SourceID string
	Pages    []Page
}

// NewDocument returns a single-page document with no page number.
func NewDocument(sourceID, text string) Document {
	return Document{SourceID: sourceID, Pages: []Page{{Text: text}}}
}

// Chunk is a contiguous span of a document's flattened text.
type Chunk struct {
	Content       string
	SourceID      string
	SequenceIndex int
	// Length is the chunk length in characters.
	Length int
	// Page is the page on which the chunk starts, or 0 if unknown.
	Page int
	// Offset is the character offset of the chunk in the flattened text.
	Offset int
}

// Splitter is a recursive character splitter. It is safe for concurrent use.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New creates a Splitter from cfg.
func New(cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seps := make([]string, len(cfg.Separators))
	copy(seps, cfg.Separators)
	return &Splitter{
		size:       cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		separators: seps,
	}, nil
}

// Split flattens doc's pages and splits the result into ordered chunks.
func (s *Splitter) Split(doc Document) ([]Chunk, error) {
	text, pageStarts, pageNumbers := flatten(doc.Pages)
	if strings.TrimSpace(string(text)) == "" {
		return nil, &EmptyInputError{SourceID: doc.SourceID}
	}

	spans, err := s.spans(text)
	if err != nil {
		var sf *SplitFailureError
		if errors.As(err, &sf) {
			sf.SourceID = doc.SourceID
		}
		return nil, err
	}

	chunks := make([]Chunk, 0, len(spans))
	for i, sp := range spans {
		chunks = append(chunks, Chunk{
			Content:       string(text[sp.start:sp.end]),
			SourceID:      doc.SourceID,
			SequenceIndex: i,
			Length:        sp.end - sp.start,
			Page:          pageAt(pageStarts, pageNumbers, sp.start),
			Offset:        sp.start,
		})
	}
	return chunks, nil
}

// SplitText splits raw text and returns only the chunk contents.
func (s *Splitter) SplitText(text string) ([]string, error) {
	chunks, err := s.Split(NewDocument("", text))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out, nil
}

type span struct{ start, end int }

// spans computes chunk boundaries over text.
//
// Pieces are bounded by size-overlap, so from any chunk start there is always
// a piece boundary within (start+overlap, start+size]. Each chunk ends at the
// furthest such boundary and the next chunk starts overlap characters earlier.
func (s *Splitter) spans(text []rune) ([]span, error) {
	total := len(text)
	if total <= s.size {
		return []span{{0, total}}, nil
	}

	budget := s.size - s.overlap
	lengths, err := s.pieces(text, s.separators, budget, nil)
	if err != nil {
		return nil, err
	}

	bounds := make([]int, 0, len(lengths))
	off := 0
	for _, n := range lengths {
		off += n
		bounds = append(bounds, off)
	}

	var out []span
	start := 0
	for total-start > s.size {
		limit := start + s.size
		j := sort.SearchInts(bounds, limit+1) - 1
		if j < 0 || bounds[j] <= start+s.overlap {
			return nil, &SplitFailureError{Length: total - start, Limit: s.size}
		}
		end := bounds[j]
		out = append(out, span{start, end})
		start = end - s.overlap
	}
	out = append(out, span{start, total})
	return out, nil
}

// pieces appends the lengths of text's pieces, each at most budget
// characters, splitting recursively on seps.
func (s *Splitter) pieces(text []rune, seps []string, budget int, out []int) ([]int, error) {
	if len(text) == 0 {
		return out, nil
	}
	if len(text) <= budget {
		return append(out, len(text)), nil
	}
	if len(seps) == 0 {
		return out, &SplitFailureError{Length: len(text), Limit: budget}
	}

	sep := []rune(seps[0])
	if len(sep) == 0 {
		for start := 0; start < len(text); start += budget {
			out = append(out, min(budget, len(text)-start))
		}
		return out, nil
	}

	var err error
	for _, part := range splitAfter(text, sep) {
		if out, err = s.pieces(part, seps[1:], budget, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// splitAfter cuts text after each occurrence of sep, keeping sep at the end
// of the preceding part so that parts concatenate back to text.
func splitAfter(text, sep []rune) [][]rune {
	var parts [][]rune
	start := 0
	for i := 0; i+len(sep) <= len(text); {
		if hasAt(text, sep, i) {
			end := i + len(sep)
			parts = append(parts, text[start:end])
			start, i = end, end
			continue
		}
		i++
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

func hasAt(text, sep []rune, i int) bool {
	for j, r := range sep {
		if text[i+j] != r {
			return false
		}
	}
	return true
}

// flatten joins non-empty pages with pageJoiner and records the character
// offset at which each page starts.
func flatten(pages []Page) (text []rune, starts []int, numbers []int) {
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		if len(text) > 0 {
			text = append(text, []rune(pageJoiner)...)
		}
		starts = append(starts, len(text))
		numbers = append(numbers, p.Number)
		text = append(text, []rune(p.Text)...)
	}
	return text, starts, numbers
}

// pageAt returns the number of the page containing offset. An offset inside
// a joiner belongs to the page before it.
func pageAt(starts, numbers []int, offset int) int {
	i := sort.SearchInts(starts, offset+1) - 1
	if i < 0 {
		return 0
	}
	return numbers[i]
}
