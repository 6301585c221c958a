package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/osmen/vaultsync/internal/engine"
	"github.com/osmen/vaultsync/internal/permission"
	pkgconfig "github.com/osmen/vaultsync/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Obsidian.PollInterval() != 30*time.Second {
		t.Errorf("poll = %s, want 30s", cfg.Obsidian.PollInterval())
	}
	if cfg.Obsidian.WritePolicy != permission.ExportOnly {
		t.Errorf("policy = %s", cfg.Obsidian.WritePolicy)
	}
	if got := cfg.Obsidian.StatePath(); got != filepath.Join("vault", ".osmen_sync_state.json") {
		t.Errorf("state path = %q", got)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"overlap not below size", func(c *Config) { c.Index.ChunkOverlap = c.Index.ChunkSize }, "chunk_overlap"},
		{"zero chunk size", func(c *Config) { c.Index.ChunkSize = 0 }, "chunk_size"},
		{"zero poll interval", func(c *Config) { c.Obsidian.PollSeconds = 0 }, "poll_interval_seconds"},
		{"missing vault path", func(c *Config) { c.Obsidian.VaultPath = "" }, "vault_path"},
		{"same vault and knowledge", func(c *Config) { c.Obsidian.KnowledgePath = "./vault/" }, "must differ"},
		{"index without sqlite path", func(c *Config) { c.Index.Enabled = true; c.SQLite.Path = "" }, "sqlite"},
		{"zero history", func(c *Config) { c.History.Size = 0 }, "size"},
		{"zero backoff", func(c *Config) { c.Watch.ErrorBackoff = 0 }, "error_backoff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OSMEN_VAULT", filepath.Join(dir, "vault"))
	p := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  http:
    port: 9090
obsidian:
  vault_path: ${OSMEN_VAULT}
  knowledge_path: ./kb
  write_policy: with_approval
  poll_interval_seconds: 5
  read_filters:
    folders: [Projects]
    tags: [share]
watch:
  fsnotify: false
  debounce: 250ms
index:
  enabled: true
  chunk_size: 500
  chunk_overlap: 100
`
	if err := os.WriteFile(p, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Obsidian.VaultPath != filepath.Join(dir, "vault") {
		t.Errorf("vault = %q", cfg.Obsidian.VaultPath)
	}
	if cfg.Obsidian.WritePolicy != permission.WithApproval {
		t.Errorf("policy = %s", cfg.Obsidian.WritePolicy)
	}
	if diff := cmp.Diff([]string{"Projects"}, cfg.Obsidian.ReadFilters.Folders); diff != "" {
		t.Errorf("folders (-want +got):\n%s", diff)
	}
	if cfg.Watch.FSNotify || cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("watch = %+v", cfg.Watch)
	}
	if !cfg.Obsidian.Enabled {
		t.Error("enabled default lost")
	}
	if cfg.Index.ChunkSize != 500 || cfg.Index.ChunkOverlap != 100 {
		t.Errorf("index = %+v", cfg.Index)
	}
}

func TestLoadYAMLConfigRejectsUnknownPolicy(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("obsidian:\n  write_policy: anything_goes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := pkgconfig.Load(p, NewDefaultConfig()); err == nil {
		t.Fatal("unknown write policy should fail")
	}
}

func TestPolicyFileOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	policy := filepath.Join(dir, "obsidian.json")
	content := `{
  // agent export policy
  "write_policy": "unrestricted",
  "export_folder": "Agent-Notes",
  "read_filters": {"exclude_folders": [".obsidian", "Private"]},
}`
	if err := os.WriteFile(policy, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	cfg.Obsidian.PolicyFile = policy
	cfg.Obsidian.VaultPath = filepath.Join(dir, "vault")
	app, err := newApplication([]Option{WithConfig(cfg)})
	if err != nil {
		t.Fatalf("newApplication: %v", err)
	}
	obs := app.config.Obsidian
	if obs.WritePolicy != permission.Unrestricted || obs.ExportFolder != "Agent-Notes" {
		t.Errorf("obsidian = %+v", obs)
	}
	if obs.VaultPath != filepath.Join(dir, "vault") {
		t.Errorf("vault path = %q, keys absent from the file must keep YAML values", obs.VaultPath)
	}
	if diff := cmp.Diff([]string{".obsidian", "Private"}, obs.ReadFilters.ExcludeFolders); diff != "" {
		t.Errorf("exclude (-want +got):\n%s", diff)
	}
}

func TestNewApplicationRequiresConfig(t *testing.T) {
	if _, err := newApplication(nil); err == nil {
		t.Fatal("missing config should fail")
	}
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Obsidian.VaultPath = filepath.Join(dir, "vault")
	cfg.Obsidian.KnowledgePath = filepath.Join(dir, "knowledge")
	cfg.SQLite.Path = filepath.Join(dir, "chunks.db")
	cfg.Audit.Path = filepath.Join(dir, "logs", "audit.jsonl")
	cfg.Watch.FSNotify = false
	if err := os.MkdirAll(cfg.Obsidian.VaultPath, 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRunSyncPrintsSummary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Enabled = true
	if err := os.WriteFile(filepath.Join(cfg.Obsidian.VaultPath, "note.md"), []byte("# Note\nbody"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := RunSync(context.Background(), SyncOptions{Reindex: true}, WithConfig(cfg), WithOutput(&out))
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	var res SyncResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode %s: %v", out.String(), err)
	}
	if res.Sync.Synced != 1 || res.Index == nil || res.Index.Synced != 1 {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(cfg.Obsidian.KnowledgePath, "note.md")); err != nil {
		t.Errorf("note not mirrored: %v", err)
	}

	audit, err := os.ReadFile(cfg.Audit.Path)
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}
	if !strings.Contains(string(audit), `"file_path":"note.md"`) {
		t.Errorf("audit = %s", audit)
	}
}

func TestRunSyncMissingVault(t *testing.T) {
	cfg := testConfig(t)
	if err := os.RemoveAll(cfg.Obsidian.VaultPath); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	err := RunSync(context.Background(), SyncOptions{}, WithConfig(cfg), WithOutput(&out))
	if err == nil {
		t.Fatal("missing vault should fail")
	}
	if !strings.Contains(out.String(), `"status": "error"`) {
		t.Errorf("output = %s", out.String())
	}
}

func TestRunSyncStrict(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.Obsidian.VaultPath, "a.md"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A directory at the mirror target makes the copy fail.
	if err := os.MkdirAll(filepath.Join(cfg.Obsidian.KnowledgePath, "a.md"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := RunSync(context.Background(), SyncOptions{}, WithConfig(cfg), WithOutput(&bytes.Buffer{})); err != nil {
		t.Fatalf("lenient sync: %v", err)
	}
	err := RunSync(context.Background(), SyncOptions{Strict: true}, WithConfig(cfg), WithOutput(&bytes.Buffer{}))
	if !errors.Is(err, ErrSyncFailures) {
		t.Errorf("strict sync err = %v, want ErrSyncFailures", err)
	}
}

func TestRunStatus(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	if err := RunStatus(context.Background(), WithConfig(cfg), WithOutput(&out)); err != nil {
		t.Fatalf("RunStatus: %v", err)
	}
	var st engine.Status
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if !st.VaultExists || st.ExportFolder != permission.DefaultExportFolder || st.IndexEnabled {
		t.Errorf("status = %+v", st)
	}
}
