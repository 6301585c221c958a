// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/osmen/vaultsync/internal/api"
	"github.com/osmen/vaultsync/internal/engine"
	"github.com/osmen/vaultsync/internal/index"
	"github.com/osmen/vaultsync/internal/mcpserver"
	"github.com/osmen/vaultsync/internal/permission"
	"github.com/osmen/vaultsync/internal/sse"
	"github.com/osmen/vaultsync/internal/storage"
	"github.com/osmen/vaultsync/internal/syncstate"
	"github.com/osmen/vaultsync/internal/watch"
	pkgconfig "github.com/osmen/vaultsync/pkg/config"
)

// ErrSyncFailures is returned by a strict one-shot sync that had per-file failures.
var ErrSyncFailures = errors.New("sync finished with failures")

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	// The policy file overrides the YAML obsidian section.
	if pf := app.config.Obsidian.PolicyFile; pf != "" {
		if err := pkgconfig.LoadJSON(pf, &app.config.Obsidian); err != nil {
			return nil, fmt.Errorf("load policy file: %w", err)
		}
	}
	return app, nil
}

func newLogger(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// runtime holds the engine and the resources it owns.
type runtime struct {
	engine *engine.Engine
	db     *index.DB
	audit  io.Closer
	log    *slog.Logger
}

func openRuntime(cfg *Config, logger *slog.Logger, extra ...engine.Option) (*runtime, error) {
	obs := cfg.Obsidian
	rt := &runtime{log: logger}

	vaultFS, err := storage.NewFS(obs.VaultPath)
	if err != nil {
		return nil, fmt.Errorf("init vault storage: %w", err)
	}
	knowledgeFS, err := storage.NewFS(obs.KnowledgePath)
	if err != nil {
		return nil, fmt.Errorf("init knowledge storage: %w", err)
	}
	state, err := syncstate.Open(obs.StatePath(), logger)
	if err != nil {
		return nil, fmt.Errorf("init sync state: %w", err)
	}

	opts := []engine.Option{
		engine.WithEnabled(obs.Enabled),
		engine.WithLogger(logger),
		engine.WithFilters(obs.ReadFilters),
		engine.WithGate(permission.NewGate(obs.WritePolicy, obs.ExportFolder)),
		engine.WithStateStore(state),
		engine.WithPollInterval(obs.PollInterval()),
		engine.WithErrorBackoff(cfg.Watch.ErrorBackoff),
		engine.WithStopTimeout(cfg.Watch.StopTimeout),
		engine.WithHistorySize(cfg.History.Size),
	}

	if cfg.Watch.FSNotify {
		opts = append(opts, engine.WithNotifier(&watch.FS{
			Debounce: cfg.Watch.Debounce,
			Skip:     obs.ReadFilters.Excluded,
			Ignore:   []string{filepath.Base(obs.StatePath())},
			Logger:   logger,
		}))
	}

	if cfg.Audit.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.Audit.Path,
			MaxSize:    cfg.Audit.MaxSizeMB,
			MaxBackups: cfg.Audit.MaxBackups,
			MaxAge:     cfg.Audit.MaxAgeDays,
			Compress:   cfg.Audit.Compress,
		}
		rt.audit = lj
		opts = append(opts, engine.WithAuditWriter(lj))
	}

	if cfg.Index.Enabled {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("init index: %w", err)
		}
		rt.db = db
		chunkState := syncstate.NewMemory()
		if cfg.Index.StateFile != "" {
			chunkState, err = syncstate.Open(cfg.Index.StateFile, logger)
			if err != nil {
				rt.close()
				return nil, fmt.Errorf("init index state: %w", err)
			}
		}
		opts = append(opts, engine.WithChunkIndex(db, chunkState, cfg.Index.ChunkSize, cfg.Index.ChunkOverlap))
	}

	eng, err := engine.New(vaultFS, knowledgeFS, append(opts, extra...)...)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("init engine: %w", err)
	}
	rt.engine = eng
	return rt, nil
}

func (rt *runtime) close() {
	if rt.engine != nil {
		if err := rt.engine.StopWatching(); err != nil {
			rt.log.Error("stop watching failed", slog.String("error", err.Error()))
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.log.Error("close index failed", slog.String("error", err.Error()))
		}
	}
	if rt.audit != nil {
		_ = rt.audit.Close()
	}
}

// SyncResult is printed by the one-shot sync command.
type SyncResult struct {
	Sync  engine.Summary  `json:"sync"`
	Index *engine.Summary `json:"index,omitempty"`
}

func (rt *runtime) syncOnce(ctx context.Context, reindex, force bool) (SyncResult, error) {
	var res SyncResult
	sum, err := rt.engine.SyncToKnowledge(ctx, nil)
	res.Sync = sum
	if err != nil {
		return res, err
	}
	if reindex && rt.engine.IndexEnabled() {
		isum, err := rt.engine.Reindex(ctx, force)
		res.Index = &isum
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// approvalNotifier announces writes that wait for a human decision on the
// event stream.
type approvalNotifier struct {
	events *sse.Broker
	log    *slog.Logger
}

func (a *approvalNotifier) RequestApproval(_ context.Context, req permission.ApprovalRequest) error {
	a.log.Info("write: approval requested",
		slog.String("path", req.Target),
		slog.String("agent_id", req.AgentID),
	)
	a.events.Publish(sse.Event{Type: sse.TypeApprovalRequested, Data: req})
	return nil
}

// Run starts the HTTP server and the watch loop.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(cfg.App.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Obsidian.VaultPath),
		slog.String("knowledge_path", cfg.Obsidian.KnowledgePath),
		slog.String("write_policy", cfg.Obsidian.WritePolicy.String()),
		slog.Bool("index_enabled", cfg.Index.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := openRuntime(cfg, logger, engine.WithApprovalSink(&approvalNotifier{events: broker, log: logger}))
	if err != nil {
		return err
	}
	defer rt.close()
	eng := rt.engine
	eng.OnChange(broker.PublishChange)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run initial sync.
	if res, err := rt.syncOnce(ctx, true, false); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync complete",
			slog.Int("synced", res.Sync.Synced),
			slog.Int("deleted", res.Sync.Deleted),
			slog.Int("failed", res.Sync.Failed))
	}

	apiRouter := api.NewRouter(eng, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if eng.Enabled() && !eng.GetStatus().VaultExists {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"vault not found"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the watch loop.
	g.Go(func() error {
		if err := eng.StartWatching(gCtx); err != nil {
			return fmt.Errorf("start watching: %w", err)
		}
		<-gCtx.Done()
		return eng.StopWatching()
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down on signal or on the first failure.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// SyncOptions controls a one-shot sync.
type SyncOptions struct {
	Reindex bool
	Force   bool
	// Strict turns per-file failures into an error.
	Strict bool
}

// RunSync runs one mirror pass (and optionally one index pass) and prints
// the summaries as JSON.
func RunSync(ctx context.Context, so SyncOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config.App.LogLevel, os.Stderr)

	rt, err := openRuntime(app.config, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	res, syncErr := rt.syncOnce(ctx, so.Reindex, so.Force)
	if err := printJSON(app.out, res); err != nil {
		return err
	}
	if syncErr != nil {
		return syncErr
	}
	failed := res.Sync.Failed
	if res.Index != nil {
		failed += res.Index.Failed
	}
	if so.Strict && failed > 0 {
		return fmt.Errorf("%w: %d failed", ErrSyncFailures, failed)
	}
	return nil
}

// RunStatus prints the engine status as JSON.
func RunStatus(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config.App.LogLevel, os.Stderr)

	rt, err := openRuntime(app.config, logger)
	if err != nil {
		return err
	}
	defer rt.close()
	return printJSON(app.out, rt.engine.GetStatus())
}

// RunMCP serves the MCP tools over stdio with the watch loop running.
// Logs go to stderr since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config.App.LogLevel, os.Stderr)
	slog.SetDefault(logger)

	rt, err := openRuntime(app.config, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.engine.StartWatching(ctx); err != nil {
		return fmt.Errorf("start watching: %w", err)
	}
	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(rt.engine, app.version).ServeStdio()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
