package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/osmen/vaultsync/internal/apperr"
	"github.com/osmen/vaultsync/internal/models"
	"github.com/osmen/vaultsync/internal/parser"
	"github.com/osmen/vaultsync/internal/storage"
)

// Candidate is a readable Markdown file found by a scan.
type Candidate struct {
	Path    string
	ModTime time.Time
	// Data holds the raw bytes when filter evaluation already read the file.
	Data []byte
}

// Listing is the result of a candidate walk. Unreadable holds paths whose
// filters could not be evaluated because of I/O errors, and UnreadableDirs
// the directories the walk could not list. Callers must not treat notes
// in either as deleted.
type Listing struct {
	Candidates     []Candidate
	Unreadable     map[string]struct{}
	UnreadableDirs []string
}

// InUnreadableDir reports whether rel lies below a directory the walk
// could not list.
func (l *Listing) InUnreadableDir(rel string) bool {
	for _, dir := range l.UnreadableDirs {
		if strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}

// Index enumerates readable notes in a vault.
type Index struct {
	store   storage.Provider
	filters Filters
	log     *slog.Logger
}

// NewIndex creates an Index over store.
func NewIndex(store storage.Provider, filters Filters, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{store: store, filters: filters, log: log}
}

// Filters returns the configured read filters.
func (ix *Index) Filters() Filters { return ix.filters }

// Store returns the underlying vault storage.
func (ix *Index) Store() storage.Provider { return ix.store }

// Candidates walks the vault and returns every readable .md file.
func (ix *Index) Candidates(ctx context.Context) (*Listing, error) {
	if !ix.store.Exists() {
		return nil, fmt.Errorf("vault: %s: %w", ix.store.Root(), apperr.ErrVaultNotFound)
	}
	out := &Listing{Unreadable: make(map[string]struct{})}
	err := ix.store.Walk(ix.filters.Excluded, func(rel string, info fs.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			ix.log.Warn("vault: directory unreadable",
				slog.String("path", rel),
				slog.String("error", walkErr.Error()),
			)
			out.UnreadableDirs = append(out.UnreadableDirs, rel)
			return nil
		}
		c := Candidate{Path: rel, ModTime: info.ModTime()}
		ok, err := ShouldRead(rel, ix.filters, func() ([]string, error) {
			data, err := ix.store.Read(rel)
			if err != nil {
				return nil, err
			}
			c.Data = data
			return parser.Parse(data).Tags, nil
		})
		if err != nil {
			ix.log.Warn("vault: filter evaluation failed",
				slog.String("path", rel),
				slog.String("error", err.Error()),
			)
			out.Unreadable[rel] = struct{}{}
			return nil
		}
		if ok {
			out.Candidates = append(out.Candidates, c)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("vault: %s: %w", ix.store.Root(), apperr.ErrVaultNotFound)
		}
		return nil, err
	}
	return out, nil
}

// ListReadable returns every readable note with its parsed metadata. Body
// content is omitted. Files that fail to read are logged and skipped.
func (ix *Index) ListReadable(ctx context.Context) ([]models.Note, error) {
	listing, err := ix.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	notes := make([]models.Note, 0, len(listing.Candidates))
	for _, c := range listing.Candidates {
		data := c.Data
		if data == nil {
			data, err = ix.store.Read(c.Path)
			if err != nil {
				ix.log.Warn("vault: read failed",
					slog.String("path", c.Path),
					slog.String("error", err.Error()),
				)
				continue
			}
		}
		n := ix.toNote(c.Path, c.ModTime, data)
		n.Content = ""
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Path < notes[j].Path })
	return notes, nil
}

// ReadNote returns a single readable note including its body. Non-Markdown
// files and notes the filters reject are reported as apperr.ErrNotReadable.
func (ix *Index) ReadNote(_ context.Context, rel string) (*models.Note, error) {
	if !ix.store.Exists() {
		return nil, fmt.Errorf("vault: %s: %w", ix.store.Root(), apperr.ErrVaultNotFound)
	}
	if !strings.HasSuffix(rel, ".md") {
		return nil, fmt.Errorf("vault: %s: not a note: %w", rel, apperr.ErrNotReadable)
	}
	info, err := ix.store.Stat(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("vault: %s: %w", rel, apperr.ErrNotFound)
		}
		return nil, err
	}
	data, err := ix.store.Read(rel)
	if err != nil {
		return nil, err
	}
	ok, _ := ShouldRead(rel, ix.filters, func() ([]string, error) {
		return parser.Parse(data).Tags, nil
	})
	if !ok {
		return nil, fmt.Errorf("vault: %s: %w", rel, apperr.ErrNotReadable)
	}
	n := ix.toNote(rel, info.ModTime(), data)
	return &n, nil
}

func (ix *Index) toNote(rel string, mod time.Time, data []byte) models.Note {
	res := parser.Parse(data)
	for _, w := range res.Warnings {
		ix.log.Warn("vault: parse warning", slog.String("path", rel), slog.String("warning", w))
	}
	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Note{
		Path:        rel,
		Title:       parser.Title(rel),
		Content:     res.Body,
		Frontmatter: res.Frontmatter,
		Tags:        tags,
		Links:       res.Links,
		ModTime:     mod,
	}
}
