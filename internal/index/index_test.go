package index

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/osmen/vaultsync/internal/apperr"
	"github.com/osmen/vaultsync/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "vaultsync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func chunk(id, source string, ordinal int, text string) models.IndexChunk {
	return models.IndexChunk{
		ID:   id,
		Text: text,
		Metadata: models.ChunkMetadata{
			Source:      source,
			Title:       "Title " + source,
			Tags:        []string{"go"},
			Links:       []string{},
			ModTime:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			Ordinal:     ordinal,
			Frontmatter: "{}",
		},
	}
}

func ids(chunks []models.IndexChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ID
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		t.Fatalf("chunks table missing: %v", err)
	}
}

func TestAddAndBySource(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	in := []models.IndexChunk{
		chunk("h1_1", "a.md", 1, "second"),
		chunk("h1_0", "a.md", 0, "first"),
		chunk("h2_0", "b.md", 0, "other"),
	}
	if err := db.Add(ctx, in); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := db.BySource(ctx, "a.md")
	if err != nil {
		t.Fatalf("BySource: %v", err)
	}
	if diff := cmp.Diff([]string{"h1_0", "h1_1"}, ids(got)); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(in[1], got[0]); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
	n, err := db.CountBySource(ctx, "b.md")
	if err != nil || n != 1 {
		t.Errorf("CountBySource = %d, %v", n, err)
	}
	total, err := db.Count(ctx)
	if err != nil || total != 3 {
		t.Errorf("Count = %d, %v", total, err)
	}
}

func TestAddEmptyIsNoop(t *testing.T) {
	db := testDB(t)
	if err := db.Add(context.Background(), nil); err != nil {
		t.Fatalf("Add(nil): %v", err)
	}
}

func TestDeleteBySource(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Add(ctx, []models.IndexChunk{
		chunk("x_0", "del.md", 0, "bye"),
		chunk("x_1", "del.md", 1, "bye again"),
		chunk("y_0", "keep.md", 0, "stay"),
	})
	if err := db.DeleteBySource(ctx, "del.md"); err != nil {
		t.Fatalf("DeleteBySource: %v", err)
	}
	if n, _ := db.CountBySource(ctx, "del.md"); n != 0 {
		t.Errorf("deleted source still has %d chunks", n)
	}
	if n, _ := db.CountBySource(ctx, "keep.md"); n != 1 {
		t.Errorf("other source lost chunks: %d", n)
	}
	// Deleting an unknown source is not an error.
	if err := db.DeleteBySource(ctx, "never.md"); err != nil {
		t.Errorf("DeleteBySource(unknown): %v", err)
	}
}

// Replacing a generation leaves only the new chunk ids.
func TestReplaceGeneration(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Add(ctx, []models.IndexChunk{
		chunk("old_0", "n.md", 0, "old one"),
		chunk("old_1", "n.md", 1, "old two"),
		chunk("old_2", "n.md", 2, "old three"),
	})
	_ = db.DeleteBySource(ctx, "n.md")
	_ = db.Add(ctx, []models.IndexChunk{chunk("new_0", "n.md", 0, "new text")})

	got, err := db.BySource(ctx, "n.md")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"new_0"}, ids(got)); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}
}

// Identical notes produce identical chunk ids; each source keeps its own rows.
func TestSameIDsAcrossSources(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.Add(ctx, []models.IndexChunk{chunk("same_0", "a.md", 0, "daily template")}); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if err := db.Add(ctx, []models.IndexChunk{chunk("same_0", "b.md", 0, "daily template")}); err != nil {
		t.Fatalf("Add b: %v", err)
	}
	for _, src := range []string{"a.md", "b.md"} {
		if n, err := db.CountBySource(ctx, src); err != nil || n != 1 {
			t.Errorf("CountBySource(%s) = %d, %v; want 1", src, n, err)
		}
	}

	if err := db.DeleteBySource(ctx, "b.md"); err != nil {
		t.Fatalf("DeleteBySource: %v", err)
	}
	got, err := db.BySource(ctx, "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"same_0"}, ids(got)); diff != "" {
		t.Errorf("a.md after deleting b.md (-want +got):\n%s", diff)
	}
}

func TestQuery_Basic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Add(ctx, []models.IndexChunk{chunk("s_0", "s.md", 0, "uniqueword appears here")})

	hits, err := db.Query(ctx, "uniqueword", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].Source != "s.md" || hits[0].ID != "s_0" {
		t.Errorf("hits = %+v, want 1 hit for s.md", hits)
	}
}

func TestNop(t *testing.T) {
	var c Collection = Nop{}
	ctx := context.Background()
	if err := c.Add(ctx, []models.IndexChunk{chunk("a_0", "a.md", 0, "x")}); !errors.Is(err, apperr.ErrIndexUnavailable) {
		t.Errorf("Add err = %v", err)
	}
	if _, err := c.Query(ctx, "x", 5); !errors.Is(err, apperr.ErrIndexUnavailable) {
		t.Errorf("Query err = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
