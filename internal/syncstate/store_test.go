package syncstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFormatMtime(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Unix(1735718400, 0), "1735718400"},
		{time.Unix(1735718400, 500_000_000), "1735718400.5"},
		{time.Unix(1700000000, 0), "1700000000"},
	}
	for _, tc := range tests {
		if got := FormatMtime(tc.in); got != tc.want {
			t.Errorf("FormatMtime(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), DefaultFile), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestOpenCorrupt(t *testing.T) {
	p := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(p, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("corrupt state should load empty, got %d entries", s.Len())
	}
}

func TestSaveAndReload(t *testing.T) {
	p := filepath.Join(t.TempDir(), DefaultFile)
	s, err := Open(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Set("a.md", "1735718400.5")
	s.Set("sub/b.md", "1735718401")
	s.Set("gone.md", "1")
	s.Delete("gone.md")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Open(p, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := map[string]string{"a.md": "1735718400.5", "sub/b.md": "1735718401"}
	if diff := cmp.Diff(want, reloaded.Snapshot()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.md", "sub/b.md"}, reloaded.Paths()); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStoreSaveNoop(t *testing.T) {
	s := NewMemory()
	s.Set("x.md", "1")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if v, ok := s.Get("x.md"); !ok || v != "1" {
		t.Errorf("Get = %q, %v", v, ok)
	}
}

func TestSaveSkipsUnchangedState(t *testing.T) {
	p := filepath.Join(t.TempDir(), DefaultFile)
	s, err := Open(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("empty store wrote a file: %v", err)
	}

	s.Set("a.md", "1")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}

	// Same value and an unknown delete leave the store clean.
	s.Set("a.md", "1")
	s.Delete("missing.md")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("unchanged store rewrote the file: %v", err)
	}

	s.Set("a.md", "2")
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("changed store not saved: %v", err)
	}
}
