// Package engine synchronizes an Obsidian vault with a knowledge-base
// mirror and a chunk index, and gates agent writes back into the vault.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/osmen/vaultsync/internal/apperr"
	"github.com/osmen/vaultsync/internal/detect"
	"github.com/osmen/vaultsync/internal/index"
	"github.com/osmen/vaultsync/internal/models"
	"github.com/osmen/vaultsync/internal/permission"
	"github.com/osmen/vaultsync/internal/storage"
	"github.com/osmen/vaultsync/internal/syncstate"
	"github.com/osmen/vaultsync/internal/vault"
)

// ChangeCallback observes a detected change before it is applied.
// Callbacks run on the syncing goroutine and must not call back into
// the engine's sync or write methods.
type ChangeCallback func(models.FileChange)

// Engine is the vault sync and permission engine. It is the sole writer
// of its sync state; at most one engine should run per vault.
type Engine struct {
	opts      options
	log       *slog.Logger
	vault     storage.Provider
	knowledge storage.Provider
	index     *vault.Index
	gate      *permission.Gate
	mirror    *Pipeline
	chunks    *Pipeline // nil when indexing is disabled
	history   *history

	// mu serializes scans, applies, and writes.
	mu sync.Mutex

	cbMu      sync.RWMutex
	callbacks []ChangeCallback

	statusMu    sync.RWMutex
	lastSync    time.Time
	lastSummary *Summary

	watchMu sync.Mutex
	watcher *watcher
}

// New creates an Engine over a vault and a knowledge-base mirror.
func New(vaultFS, knowledgeFS storage.Provider, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = slog.Default()
	}
	if o.gate == nil {
		o.gate = permission.NewGate(permission.ExportOnly, permission.DefaultExportFolder)
	}
	if o.state == nil {
		st, err := syncstate.Open(filepath.Join(vaultFS.Root(), syncstate.DefaultFile), log)
		if err != nil {
			return nil, fmt.Errorf("engine: open sync state: %w", err)
		}
		o.state = st
	}

	e := &Engine{
		opts:      o,
		log:       log,
		vault:     vaultFS,
		knowledge: knowledgeFS,
		index:     vault.NewIndex(vaultFS, o.filters, log),
		gate:      o.gate,
		history:   newHistory(o.historySize, o.audit, log),
	}
	e.mirror = &Pipeline{
		name:     "sync",
		detector: detect.New(e.index, o.state, o.now, log),
		state:    o.state,
		applier:  &MirrorApplier{Vault: vaultFS, Knowledge: knowledgeFS},
		vault:    vaultFS,
		record:   e.history.add,
		now:      o.now,
		log:      log,
	}
	if o.collection != nil {
		st := o.chunkState
		if st == nil {
			st = syncstate.NewMemory()
		}
		e.chunks = &Pipeline{
			name:     "index",
			detector: detect.New(e.index, st, o.now, log),
			state:    st,
			applier: &ChunkApplier{
				Vault:      vaultFS,
				Collection: o.collection,
				Size:       o.chunkSize,
				Overlap:    o.chunkOverlap,
				Logger:     log,
			},
			vault: vaultFS,
			now:   o.now,
			log:   log,
		}
	}
	return e, nil
}

// Enabled reports whether the integration is switched on.
func (e *Engine) Enabled() bool { return e.opts.enabled }

// IndexEnabled reports whether a chunk index is configured.
func (e *Engine) IndexEnabled() bool { return e.chunks != nil }

// OnChange registers a callback for detected changes.
func (e *Engine) OnChange(cb ChangeCallback) {
	e.cbMu.Lock()
	e.callbacks = append(e.callbacks, cb)
	e.cbMu.Unlock()
}

// DetectChanges reports vault changes since the last successful mirror
// sync without applying them.
func (e *Engine) DetectChanges(ctx context.Context) ([]models.FileChange, error) {
	if !e.opts.enabled {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	scan, err := e.mirror.Detect(ctx, false)
	if err != nil {
		return nil, err
	}
	return scan.Changes, nil
}

// SyncToKnowledge mirrors changes into the knowledge base. With nil
// changes it detects them first. Registered callbacks see every change
// before it is applied.
func (e *Engine) SyncToKnowledge(ctx context.Context, changes []models.FileChange) (Summary, error) {
	if !e.opts.enabled {
		return Summary{Pipeline: e.mirror.name, Status: StatusDisabled}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var scan *detect.Scan
	if changes == nil {
		var err error
		scan, err = e.mirror.Detect(ctx, false)
		if err != nil {
			return e.failedSummary(e.mirror.name, err), err
		}
	} else {
		scan = &detect.Scan{Changes: changes, Mtimes: map[string]string{}}
	}
	e.notify(scan.Changes)
	sum := e.mirror.Apply(ctx, scan)
	e.recordSummary(sum)
	return sum, nil
}

// Reindex brings the chunk index up to date. With force set every
// readable note is re-chunked.
func (e *Engine) Reindex(ctx context.Context, force bool) (Summary, error) {
	if !e.opts.enabled {
		return Summary{Pipeline: "index", Status: StatusDisabled}, nil
	}
	if e.chunks == nil {
		err := fmt.Errorf("engine: reindex: %w", apperr.ErrIndexUnavailable)
		return e.failedSummary("index", err), err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	scan, err := e.chunks.Detect(ctx, force)
	if err != nil {
		return e.failedSummary(e.chunks.name, err), err
	}
	return e.chunks.Apply(ctx, scan), nil
}

// Search queries the chunk index.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]index.Hit, error) {
	if e.chunks == nil {
		return nil, fmt.Errorf("engine: search: %w", apperr.ErrIndexUnavailable)
	}
	return e.opts.collection.Query(ctx, query, limit)
}

// CanWrite evaluates a write request without side effects.
func (e *Engine) CanWrite(target, agentID string) models.PermissionDecision {
	if !e.opts.enabled {
		return models.PermissionDecision{Allowed: false, Reason: permission.ReasonDisabled}
	}
	return e.gate.CanWrite(target, agentID)
}

// ListReadableNotes returns metadata for every note the filters allow.
func (e *Engine) ListReadableNotes(ctx context.Context) ([]models.Note, error) {
	if !e.opts.enabled {
		return []models.Note{}, nil
	}
	return e.index.ListReadable(ctx)
}

// ReadNote returns one readable note with its body.
func (e *Engine) ReadNote(ctx context.Context, rel string) (*models.Note, error) {
	if !e.opts.enabled {
		return nil, fmt.Errorf("engine: %s: %w", rel, apperr.ErrNotReadable)
	}
	return e.index.ReadNote(ctx, rel)
}

// GetSyncHistory returns up to limit recent records, oldest first.
func (e *Engine) GetSyncHistory(limit int) []models.SyncRecord {
	return e.history.last(limit)
}

// GetStatus reports configuration and progress.
func (e *Engine) GetStatus() Status {
	st := Status{
		Enabled:       e.opts.enabled,
		Watching:      e.Watching(),
		VaultPath:     e.vault.Root(),
		VaultExists:   e.vault.Exists(),
		KnowledgePath: e.knowledge.Root(),
		ExportFolder:  e.gate.ExportFolder(),
		WritePolicy:   e.gate.Policy().String(),
		ReadFilters:   e.index.Filters(),
		PollInterval:  e.opts.pollInterval.Seconds(),
		TrackedFiles:  e.mirror.state.Len(),
		IndexEnabled:  e.chunks != nil,
		HistorySize:   e.history.len(),
	}
	if e.chunks != nil {
		st.IndexedFiles = e.chunks.state.Len()
	}
	e.statusMu.RLock()
	if !e.lastSync.IsZero() {
		t := e.lastSync
		st.LastSync = &t
	}
	if e.lastSummary != nil {
		s := *e.lastSummary
		st.LastSummary = &s
	}
	e.statusMu.RUnlock()
	return st
}

func (e *Engine) notify(changes []models.FileChange) {
	e.cbMu.RLock()
	cbs := append([]ChangeCallback(nil), e.callbacks...)
	e.cbMu.RUnlock()
	if len(cbs) == 0 {
		return
	}
	for _, ch := range changes {
		for _, cb := range cbs {
			e.invoke(cb, ch)
		}
	}
}

func (e *Engine) invoke(cb ChangeCallback, ch models.FileChange) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("sync: change callback panicked",
				slog.String("path", ch.Path),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	cb(ch)
}

func (e *Engine) failedSummary(pipeline string, err error) Summary {
	sum := Summary{Pipeline: pipeline, Status: StatusError}
	sum.Errors = append(sum.Errors, err.Error())
	if errors.Is(err, apperr.ErrVaultNotFound) {
		e.log.Warn(pipeline+": vault not found", slog.String("path", e.vault.Root()))
	}
	return sum
}

func (e *Engine) recordSummary(sum Summary) {
	e.statusMu.Lock()
	e.lastSync = e.opts.now()
	e.lastSummary = &sum
	e.statusMu.Unlock()
}
