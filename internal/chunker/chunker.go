// Package chunker splits note bodies into overlapping windows that prefer
// paragraph and sentence boundaries.
package chunker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/osmen/vaultsync/internal/models"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Span is one window over the content. Start and End are rune offsets.
type Span struct {
	Start int
	End   int
	Text  string
}

// Split cuts content into windows of at most size runes. A window that
// does not reach the end of the content is shortened to the last
// paragraph break after its midpoint, else to the last sentence
// terminator after its midpoint, else left at the greedy cut. The next
// window starts overlap runes before the previous end. Content of at most
// size runes is returned verbatim as a single span.
func Split(content string, size, overlap int) []Span {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	r := []rune(content)
	n := len(r)
	if n <= size {
		return []Span{{Start: 0, End: n, Text: content}}
	}

	var spans []Span
	start := 0
	for {
		end := start + size
		if end > n {
			end = n
		}
		if end < n {
			end = boundary(r, start, end, start+size/2)
		}
		spans = append(spans, Span{Start: start, End: end, Text: string(r[start:end])})
		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return spans
}

// boundary returns the preferred cut inside (threshold, end).
func boundary(r []rune, start, end, threshold int) int {
	for i := end - 2; i > threshold && i >= start; i-- {
		if r[i] == '\n' && r[i+1] == '\n' {
			return i
		}
	}
	for i := end - 2; i > threshold && i >= start; i-- {
		switch r[i] {
		case '.', '!', '?':
			if r[i+1] == ' ' {
				return i + 1
			}
		}
	}
	return end
}

// ToChunks splits the body of note into index chunks. hash identifies the
// note's current content and prefixes every chunk id, so any edit changes
// the whole generation.
func ToChunks(note models.Note, hash string, size, overlap int) []models.IndexChunk {
	spans := Split(note.Content, size, overlap)
	if len(spans) == 0 {
		return nil
	}
	fm := "{}"
	if len(note.Frontmatter) > 0 {
		if b, err := json.Marshal(note.Frontmatter); err == nil {
			fm = string(b)
		}
	}
	tags := note.Tags
	if tags == nil {
		tags = []string{}
	}
	links := note.Links
	if links == nil {
		links = []string{}
	}

	out := make([]models.IndexChunk, 0, len(spans))
	for i, s := range spans {
		out = append(out, models.IndexChunk{
			ID:   fmt.Sprintf("%s_%d", hash, i),
			Text: s.Text,
			Metadata: models.ChunkMetadata{
				Source:      note.Path,
				Title:       note.Title,
				Tags:        tags,
				Links:       links,
				ModTime:     note.ModTime,
				Ordinal:     i,
				Start:       s.Start,
				End:         s.End,
				Frontmatter: fm,
			},
		})
	}
	return out
}
