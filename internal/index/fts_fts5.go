//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			id UNINDEXED,
			source UNINDEXED,
			title,
			text,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, id, source, title, text string, tags []string) error {
	_, _ = tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE id = ? AND source = ?`, id, source)
	_, err := tx.ExecContext(ctx, `INSERT INTO chunks_fts (id, source, title, text, tags) VALUES (?, ?, ?, ?, ?)`,
		id, source, title, text, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDeleteSource(ctx context.Context, tx *sql.Tx, source string) {
	_, _ = tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE source = ?`, source)
}

// Query performs an FTS5 full-text search and returns matching chunks with snippets.
func (db *DB) Query(ctx context.Context, text string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT f.id,
		       f.source,
		       f.title,
		       c.ordinal,
		       snippet(chunks_fts, 3, '<b>', '</b>', '...', 64)
		FROM chunks_fts f
		JOIN chunks c ON c.source = f.source AND c.id = f.id
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, text, limit)
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
