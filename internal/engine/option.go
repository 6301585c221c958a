package engine

import (
	"io"
	"log/slog"
	"time"

	"github.com/osmen/vaultsync/internal/index"
	"github.com/osmen/vaultsync/internal/permission"
	"github.com/osmen/vaultsync/internal/syncstate"
	"github.com/osmen/vaultsync/internal/vault"
	"github.com/osmen/vaultsync/internal/watch"
)

// Defaults for the watch loop.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultErrorBackoff = 5 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Option is a functional option for configuring the Engine.
type Option func(*options)

type options struct {
	enabled      bool
	logger       *slog.Logger
	filters      vault.Filters
	gate         *permission.Gate
	approvals    permission.ApprovalSink
	state        *syncstate.Store
	collection   index.Collection
	chunkState   *syncstate.Store
	chunkSize    int
	chunkOverlap int
	notifier     watch.Notifier
	audit        io.Writer
	historySize  int
	pollInterval time.Duration
	errorBackoff time.Duration
	stopTimeout  time.Duration
	now          func() time.Time
}

func defaultOptions() options {
	return options{
		enabled:      true,
		filters:      vault.Filters{ExcludeFolders: vault.DefaultExcludeFolders},
		approvals:    permission.NopSink{},
		notifier:     watch.Nop{},
		historySize:  DefaultHistorySize,
		pollInterval: DefaultPollInterval,
		errorBackoff: DefaultErrorBackoff,
		stopTimeout:  DefaultStopTimeout,
		now:          time.Now,
	}
}

// WithEnabled turns the whole integration on or off.
func WithEnabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFilters sets the read filters.
func WithFilters(f vault.Filters) Option {
	return func(o *options) { o.filters = f }
}

// WithGate sets the write permission gate. Defaults to export_only on
// the default export folder.
func WithGate(g *permission.Gate) Option {
	return func(o *options) { o.gate = g }
}

// WithApprovalSink receives writes that need human approval.
func WithApprovalSink(s permission.ApprovalSink) Option {
	return func(o *options) {
		if s != nil {
			o.approvals = s
		}
	}
}

// WithStateStore overrides the mirror sync state. Defaults to the state
// file inside the vault.
func WithStateStore(s *syncstate.Store) Option {
	return func(o *options) { o.state = s }
}

// WithChunkIndex enables the chunk indexing pipeline. A nil state keeps
// the index state in memory only.
func WithChunkIndex(c index.Collection, state *syncstate.Store, size, overlap int) Option {
	return func(o *options) {
		o.collection = c
		o.chunkState = state
		o.chunkSize = size
		o.chunkOverlap = overlap
	}
}

// WithNotifier sets the file system notifier that shortens poll latency.
func WithNotifier(n watch.Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithAuditWriter receives every sync record as a JSON line.
func WithAuditWriter(w io.Writer) Option {
	return func(o *options) { o.audit = w }
}

// WithHistorySize bounds the in-memory history.
func WithHistorySize(n int) Option {
	return func(o *options) { o.historySize = n }
}

// WithPollInterval sets the delay between watch loop scans.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithErrorBackoff sets the delay after a failed scan.
func WithErrorBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.errorBackoff = d
		}
	}
}

// WithStopTimeout bounds how long StopWatching waits for the loop.
func WithStopTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.stopTimeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
