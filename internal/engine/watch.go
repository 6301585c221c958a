package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/osmen/vaultsync/internal/apperr"
)

type watcher struct {
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// Watching reports whether the watch loop is running.
func (e *Engine) Watching() bool {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	return e.watcher != nil
}

// StartWatching starts the background loop: scan, then wait for the poll
// interval, a notifier nudge, or stop. The loop also ends when ctx is done.
func (e *Engine) StartWatching(ctx context.Context) error {
	if !e.opts.enabled {
		e.log.Info("sync: integration disabled, not watching")
		return nil
	}
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	if e.watcher != nil {
		return apperr.ErrAlreadyWatching
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w := &watcher{
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	e.watcher = w

	nudge := make(chan struct{}, 1)
	go func() {
		err := e.opts.notifier.Run(loopCtx, e.vault.Root(), func() {
			select {
			case nudge <- struct{}{}:
			default:
			}
		})
		if err != nil {
			e.log.Warn("sync: notifier stopped, polling only", slog.String("error", err.Error()))
		}
	}()
	go e.loop(loopCtx, w, nudge)

	e.log.Info("sync: watching",
		slog.String("vault", e.vault.Root()),
		slog.Duration("poll_interval", e.opts.pollInterval),
	)
	return nil
}

// StopWatching signals the loop and waits for it up to the stop timeout.
// An in-flight scan is not interrupted.
func (e *Engine) StopWatching() error {
	e.watchMu.Lock()
	w := e.watcher
	e.watcher = nil
	e.watchMu.Unlock()
	if w == nil {
		return nil
	}

	close(w.stop)
	select {
	case <-w.done:
		e.log.Info("sync: stopped watching")
		return nil
	case <-time.After(e.opts.stopTimeout):
		return fmt.Errorf("engine: watch loop did not stop within %s", e.opts.stopTimeout)
	}
}

func (e *Engine) loop(ctx context.Context, w *watcher, nudge <-chan struct{}) {
	defer func() {
		w.cancel()
		e.watchMu.Lock()
		if e.watcher == w {
			e.watcher = nil
		}
		e.watchMu.Unlock()
		close(w.done)
	}()

	for {
		wait := e.opts.pollInterval
		if err := e.scan(ctx); err != nil {
			e.log.Error("sync: scan failed", slog.String("error", err.Error()))
			wait = e.opts.errorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-w.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-nudge:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// scan runs one mirror pass and, when configured, one index pass.
func (e *Engine) scan(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: scan panicked: %v", r)
		}
	}()

	sum, err := e.SyncToKnowledge(ctx, nil)
	if err != nil {
		return err
	}
	if sum.Synced+sum.Deleted+sum.Failed > 0 {
		e.log.Info("sync: pass complete",
			slog.Int("synced", sum.Synced),
			slog.Int("deleted", sum.Deleted),
			slog.Int("failed", sum.Failed),
			slog.Int("skipped", sum.Skipped),
		)
	}
	if e.chunks == nil {
		return nil
	}
	isum, err := e.Reindex(ctx, false)
	if err != nil {
		return err
	}
	if isum.Synced+isum.Deleted+isum.Failed > 0 {
		e.log.Info("index: pass complete",
			slog.Int("indexed", isum.Synced),
			slog.Int("removed", isum.Deleted),
			slog.Int("failed", isum.Failed),
		)
	}
	return nil
}
