// Package watch turns file system notifications into early scan requests.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of events (editors write several times
// per save) into a single nudge.
const DefaultDebounce = 500 * time.Millisecond

// Notifier calls nudge whenever something under root may have changed.
// Run blocks until ctx is cancelled.
type Notifier interface {
	Run(ctx context.Context, root string, nudge func()) error
}

// Nop never nudges. Polling alone drives the scans.
type Nop struct{}

// Run implements Notifier.
func (Nop) Run(ctx context.Context, _ string, _ func()) error {
	<-ctx.Done()
	return nil
}

// FS is an fsnotify-backed Notifier.
type FS struct {
	Debounce time.Duration
	// Skip prunes directories (vault-relative, forward slashes) from the
	// watch list.
	Skip func(rel string) bool
	// Ignore lists base-name prefixes whose events never nudge, such as
	// the sync state file and the temp files written next to it.
	Ignore []string
	Logger *slog.Logger
}

// Run watches root recursively. New directories created at runtime are
// added to the watch list.
func (n *FS) Run(ctx context.Context, root string, nudge func()) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := n.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := make(map[string]struct{})
	if err := n.addDirsRecursive(w, root, root, dirs); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
			return
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			timer, fire = nil, nil
			nudge()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := n.addDirsRecursive(w, root, ev.Name, dirs); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					// Files may already exist in it.
					schedule()
					continue
				}
			}
			if n.relevant(ev, dirs) {
				logger.Debug("watcher: event", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether ev can change the set of notes: any event on a
// .md file, or the removal of a watched directory (it takes its notes with
// it). Ignored names never count.
func (n *FS) relevant(ev fsnotify.Event, dirs map[string]struct{}) bool {
	base := filepath.Base(ev.Name)
	for _, prefix := range n.Ignore {
		if prefix != "" && strings.HasPrefix(base, prefix) {
			return false
		}
	}
	if strings.HasSuffix(base, ".md") {
		return true
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if _, ok := dirs[ev.Name]; ok {
		delete(dirs, ev.Name)
		return true
	}
	return false
}

// addDirsRecursive adds dir and all its subdirectories to the watcher,
// skipping pruned ones. Added directories are recorded in dirs.
func (n *FS) addDirsRecursive(w *fsnotify.Watcher, root, dir string, dirs map[string]struct{}) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && n.Skip != nil {
			if rel, relErr := filepath.Rel(root, p); relErr == nil && n.Skip(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		if err := w.Add(p); err != nil {
			return err
		}
		dirs[p] = struct{}{}
		return nil
	})
}
