//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; queries use LIKE on the chunks.text column.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _, _, _, _ string, _ []string) error {
	// Text is already stored in the chunks table; nothing extra to do.
	return nil
}

func ftsDeleteSource(_ context.Context, _ *sql.Tx, _ string) {}

// Query performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Query(ctx context.Context, text string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + likeEscaper.Replace(text) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, source, title, ordinal, substr(text, 1, 200)
		FROM chunks
		WHERE title LIKE ? ESCAPE '\' OR text LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\'
		ORDER BY source, ordinal
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Source, &h.Title, &h.Ordinal, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
