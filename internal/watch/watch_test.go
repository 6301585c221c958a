package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatcher(t *testing.T, n *FS, root string) *atomic.Int32 {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var nudges atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Run(ctx, root, func() { nudges.Add(1) })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
	return &nudges
}

func TestWatcher_NewNoteNudges(t *testing.T) {
	root := t.TempDir()
	nudges := startWatcher(t, &FS{Debounce: 50 * time.Millisecond, Logger: quietLogger()}, root)

	_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return nudges.Load() > 0
	}, "expected a nudge for a new note")
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	nudges := startWatcher(t, &FS{Debounce: 300 * time.Millisecond, Logger: quietLogger()}, root)

	for i := 0; i < 5; i++ {
		_ = os.WriteFile(filepath.Join(root, "burst.md"), []byte{byte('a' + i)}, 0o644)
		time.Sleep(10 * time.Millisecond)
	}
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return nudges.Load() > 0
	}, "expected a nudge after the burst")
	time.Sleep(400 * time.Millisecond)
	if got := nudges.Load(); got != 1 {
		t.Errorf("nudges = %d, want 1", got)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	nudges := startWatcher(t, &FS{Debounce: 50 * time.Millisecond, Logger: quietLogger()}, root)

	_ = os.WriteFile(filepath.Join(root, ".osmen_sync_state.json"), []byte("{}"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if got := nudges.Load(); got != 0 {
		t.Errorf("nudges = %d, want 0 for non-note files", got)
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	nudges := startWatcher(t, &FS{Debounce: 50 * time.Millisecond, Logger: quietLogger()}, root)

	sub := filepath.Join(root, "subdir")
	_ = os.MkdirAll(sub, 0o755)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return nudges.Load() > 0
	}, "expected a nudge for the new directory")

	before := nudges.Load()
	_ = os.WriteFile(filepath.Join(sub, "deep.md"), []byte("# Deep"), 0o644)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return nudges.Load() > before
	}, "file in new subdir did not nudge")
}

func TestNopBlocksUntilCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Nop{}.Run(ctx, "", func() { t.Error("unexpected nudge") }) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Nop.Run did not return after cancel")
	}
}

func TestWatcher_IgnoresStateFileRename(t *testing.T) {
	root := t.TempDir()
	nudges := startWatcher(t, &FS{
		Debounce: 50 * time.Millisecond,
		Ignore:   []string{"state.md"},
		Logger:   quietLogger(),
	}, root)

	// Temp file plus rename over the target, the way atomic writes land.
	for i := 0; i < 3; i++ {
		tmp := filepath.Join(root, "state.md.tmp")
		_ = os.WriteFile(tmp, []byte("{}"), 0o644)
		_ = os.Rename(tmp, filepath.Join(root, "state.md"))
		_ = os.WriteFile(filepath.Join(root, "other.json.tmp"), []byte("{}"), 0o644)
		_ = os.Rename(filepath.Join(root, "other.json.tmp"), filepath.Join(root, "other.json"))
	}
	time.Sleep(300 * time.Millisecond)
	if got := nudges.Load(); got != 0 {
		t.Errorf("nudges = %d, want 0 for ignored and non-note renames", got)
	}
}

func TestWatcher_RemovedDirNudges(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "Projects")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	nudges := startWatcher(t, &FS{Debounce: 50 * time.Millisecond, Logger: quietLogger()}, root)

	if err := os.Remove(sub); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return nudges.Load() > 0
	}, "expected a nudge for the removed directory")
}
