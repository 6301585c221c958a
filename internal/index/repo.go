package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/osmen/vaultsync/internal/models"
)

// Add inserts chunks and their FTS entries within a transaction.
func (db *DB) Add(ctx context.Context, chunks []models.IndexChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, ordinal, title, tags, text, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, id) DO UPDATE SET
			ordinal    = excluded.ordinal,
			title      = excluded.title,
			tags       = excluded.tags,
			text       = excluded.text,
			metadata   = excluded.metadata,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("index: prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		md := c.Metadata
		tagsJSON, _ := json.Marshal(md.Tags)
		mdJSON, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("index: encode metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, md.Source, md.Ordinal, md.Title,
			string(tagsJSON), c.Text, string(mdJSON), md.ModTime); err != nil {
			return fmt.Errorf("index: insert chunk %s: %w", c.ID, err)
		}
		if err := ftsUpsert(ctx, tx, c.ID, md.Source, md.Title, c.Text, md.Tags); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteBySource removes all chunks of source and their FTS entries.
func (db *DB) DeleteBySource(ctx context.Context, source string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDeleteSource(ctx, tx, source)
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source); err != nil {
		return fmt.Errorf("index: delete chunks: %w", err)
	}
	return tx.Commit()
}

// BySource returns the chunks of source ordered by ordinal.
func (db *DB) BySource(ctx context.Context, source string) ([]models.IndexChunk, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, text, metadata FROM chunks WHERE source = ? ORDER BY ordinal`, source)
	if err != nil {
		return nil, fmt.Errorf("index: by source: %w", err)
	}
	defer rows.Close()

	var out []models.IndexChunk
	for rows.Next() {
		var (
			c  models.IndexChunk
			md string
		)
		if err := rows.Scan(&c.ID, &c.Text, &md); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(md), &c.Metadata); err != nil {
			return nil, fmt.Errorf("index: decode metadata %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountBySource returns the number of chunks stored for source.
func (db *DB) CountBySource(ctx context.Context, source string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM chunks WHERE source = ?`, source).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// Count returns the total number of stored chunks.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
