package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/osmen/vaultsync/internal/checksum"
	"github.com/osmen/vaultsync/internal/chunker"
	"github.com/osmen/vaultsync/internal/index"
	"github.com/osmen/vaultsync/internal/models"
	"github.com/osmen/vaultsync/internal/parser"
	"github.com/osmen/vaultsync/internal/storage"
)

// Applier makes one detected change effective in a downstream store.
// A nil error lets the pipeline advance the sync state for the path.
type Applier interface {
	Apply(ctx context.Context, change models.FileChange) error
}

// MirrorApplier copies vault notes verbatim into the knowledge base.
type MirrorApplier struct {
	Vault     storage.Provider
	Knowledge storage.Provider
}

// Apply implements Applier. Removing a mirror copy that is already gone
// counts as success.
func (m *MirrorApplier) Apply(_ context.Context, ch models.FileChange) error {
	if ch.Type == models.ChangeDeleted {
		err := m.Knowledge.Delete(ch.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	data, err := m.Vault.Read(ch.Path)
	if err != nil {
		return err
	}
	return m.Knowledge.Write(ch.Path, data)
}

// ChunkApplier replaces the chunk generation of a note in a collection.
type ChunkApplier struct {
	Vault      storage.Provider
	Collection index.Collection
	Size       int
	Overlap    int
	Logger     *slog.Logger
}

// Apply implements Applier. The old generation is removed before the new
// one is added; a failed removal is ignored, a failed add is returned.
func (c *ChunkApplier) Apply(ctx context.Context, ch models.FileChange) error {
	if ch.Type == models.ChangeDeleted {
		return c.Collection.DeleteBySource(ctx, ch.Path)
	}

	info, err := c.Vault.Stat(ch.Path)
	if err != nil {
		return err
	}
	data, err := c.Vault.Read(ch.Path)
	if err != nil {
		return err
	}
	res := parser.Parse(data)
	note := models.Note{
		Path:        ch.Path,
		Title:       parser.Title(ch.Path),
		Content:     res.Body,
		Frontmatter: res.Frontmatter,
		Tags:        res.Tags,
		Links:       res.Links,
		ModTime:     info.ModTime(),
	}
	chunks := chunker.ToChunks(note, checksum.MD5(data), c.Size, c.Overlap)

	if err := c.Collection.DeleteBySource(ctx, ch.Path); err != nil {
		c.logger().Debug("index: delete previous chunks failed",
			slog.String("path", ch.Path),
			slog.String("error", err.Error()),
		)
	}
	if err := c.Collection.Add(ctx, chunks); err != nil {
		return fmt.Errorf("index: add %d chunks: %w", len(chunks), err)
	}
	c.logger().Debug("index: chunks stored", slog.String("path", ch.Path), slog.Int("chunks", len(chunks)))
	return nil
}

func (c *ChunkApplier) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
