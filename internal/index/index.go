package index

import (
	"context"

	"github.com/osmen/vaultsync/internal/apperr"
	"github.com/osmen/vaultsync/internal/models"
)

// Collection is the chunk store the indexer writes to. Consumers depend on
// this interface rather than on *DB.
type Collection interface {
	// Add inserts chunks, replacing any with the same id.
	Add(ctx context.Context, chunks []models.IndexChunk) error
	// DeleteBySource removes every chunk whose metadata source equals source.
	DeleteBySource(ctx context.Context, source string) error
	// BySource returns the chunks of source ordered by ordinal.
	BySource(ctx context.Context, source string) ([]models.IndexChunk, error)
	// CountBySource returns how many chunks source currently has.
	CountBySource(ctx context.Context, source string) (int, error)
	// Query runs a lexical search over chunk text.
	Query(ctx context.Context, text string, limit int) ([]Hit, error)
	Close() error
}

// Hit is one search result.
type Hit struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Title   string `json:"title"`
	Ordinal int    `json:"chunk_index"`
	Snippet string `json:"snippet"`
}

// Verify *DB satisfies Collection at compile time.
var _ Collection = (*DB)(nil)

// Nop is the collection used when no index is configured. Writes and
// queries fail with apperr.ErrIndexUnavailable.
type Nop struct{}

func (Nop) Add(context.Context, []models.IndexChunk) error { return apperr.ErrIndexUnavailable }

func (Nop) DeleteBySource(context.Context, string) error { return apperr.ErrIndexUnavailable }

func (Nop) BySource(context.Context, string) ([]models.IndexChunk, error) {
	return nil, apperr.ErrIndexUnavailable
}

func (Nop) CountBySource(context.Context, string) (int, error) {
	return 0, apperr.ErrIndexUnavailable
}

func (Nop) Query(context.Context, string, int) ([]Hit, error) {
	return nil, apperr.ErrIndexUnavailable
}

func (Nop) Close() error { return nil }

var _ Collection = Nop{}
