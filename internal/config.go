package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/osmen/vaultsync/internal/chunker"
	"github.com/osmen/vaultsync/internal/engine"
	"github.com/osmen/vaultsync/internal/permission"
	"github.com/osmen/vaultsync/internal/syncstate"
	"github.com/osmen/vaultsync/internal/vault"
	"github.com/osmen/vaultsync/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Obsidian ObsidianConfig    `yaml:"obsidian"`
	Watch    WatchConfig       `yaml:"watch"`
	Index    IndexConfig       `yaml:"index"`
	Audit    AuditConfig       `yaml:"audit"`
	History  HistoryConfig     `yaml:"history"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Obsidian.Validate(); err != nil {
		return fmt.Errorf("obsidian: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if c.Index.Enabled {
		if err := c.SQLite.Validate(); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return c.History.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds the chunk index database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ObsidianConfig is the vault integration policy. The same keys can come
// from the JSON file named by PolicyFile, which overrides the YAML values.
type ObsidianConfig struct {
	PolicyFile    string            `yaml:"policy_file" json:"-"`
	Enabled       bool              `yaml:"enabled" json:"enabled"`
	VaultPath     string            `yaml:"vault_path" json:"vault_path"`
	KnowledgePath string            `yaml:"knowledge_path" json:"knowledge_path"`
	ExportFolder  string            `yaml:"export_folder" json:"export_folder"`
	ReadFilters   vault.Filters     `yaml:"read_filters" json:"read_filters"`
	WritePolicy   permission.Policy `yaml:"write_policy" json:"write_policy"`
	PollSeconds   float64           `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
	SyncStateFile string            `yaml:"sync_state_file" json:"sync_state_file"`
}

// Validate validates the vault policy.
func (c *ObsidianConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.VaultPath, validation.Required),
		validation.Field(&c.KnowledgePath, validation.Required),
		validation.Field(&c.ExportFolder, validation.Required),
		validation.Field(&c.PollSeconds, validation.Required, validation.Min(0.01)),
		validation.Field(&c.WritePolicy, validation.In(permission.ExportOnly, permission.WithApproval, permission.Unrestricted)),
	); err != nil {
		return err
	}
	if filepath.Clean(c.VaultPath) == filepath.Clean(c.KnowledgePath) {
		return errors.New("vault_path and knowledge_path must differ")
	}
	return nil
}

// PollInterval returns the polling period of the watch loop.
func (c *ObsidianConfig) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds * float64(time.Second))
}

// StatePath resolves the sync state file. Relative names live in the vault.
func (c *ObsidianConfig) StatePath() string {
	name := c.SyncStateFile
	if name == "" {
		name = syncstate.DefaultFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.VaultPath, name)
}

// WatchConfig tunes the background watch loop.
type WatchConfig struct {
	FSNotify     bool          `yaml:"fsnotify" json:"fsnotify"`
	Debounce     time.Duration `yaml:"debounce" json:"debounce"`
	ErrorBackoff time.Duration `yaml:"error_backoff" json:"error_backoff"`
	StopTimeout  time.Duration `yaml:"stop_timeout" json:"stop_timeout"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.ErrorBackoff, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.StopTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// IndexConfig holds chunk index settings. An empty StateFile keeps the
// index pipeline state in memory, so every start rechunks all notes.
type IndexConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	ChunkSize    int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" json:"chunk_overlap"`
	StateFile    string `yaml:"state_file" json:"state_file"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(1)),
		validation.Field(&c.ChunkOverlap, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// AuditConfig configures the rotating JSON-lines audit log of sync
// records. An empty Path disables it.
type AuditConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate validates the audit configuration.
func (c *AuditConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HistoryConfig bounds the in-memory sync history.
type HistoryConfig struct {
	Size int `yaml:"size" json:"size"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Size, validation.Required, validation.Min(1)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./osmen-chunks.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Obsidian: ObsidianConfig{
			Enabled:       true,
			VaultPath:     "./vault",
			KnowledgePath: "./knowledge",
			ExportFolder:  permission.DefaultExportFolder,
			ReadFilters:   vault.Filters{ExcludeFolders: vault.DefaultExcludeFolders},
			WritePolicy:   permission.ExportOnly,
			PollSeconds:   engine.DefaultPollInterval.Seconds(),
			SyncStateFile: syncstate.DefaultFile,
		},
		Watch: WatchConfig{
			FSNotify:     true,
			Debounce:     watch.DefaultDebounce,
			ErrorBackoff: engine.DefaultErrorBackoff,
			StopTimeout:  engine.DefaultStopTimeout,
		},
		Index: IndexConfig{
			ChunkSize:    chunker.DefaultSize,
			ChunkOverlap: chunker.DefaultOverlap,
		},
		Audit: AuditConfig{
			MaxSizeMB:  50,
			MaxBackups: 5,
		},
		History: HistoryConfig{
			Size: engine.DefaultHistorySize,
		},
	}
}
