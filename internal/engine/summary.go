package engine

import (
	"time"

	"github.com/osmen/vaultsync/internal/vault"
)

// Summary statuses.
const (
	StatusOK       = "ok"
	StatusPartial  = "partial"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// Summary describes one sync pass.
type Summary struct {
	Pipeline string        `json:"pipeline"`
	Status   string        `json:"status"`
	Synced   int           `json:"synced"`
	Deleted  int           `json:"deleted"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

func (s *Summary) fail(path string, err error) {
	s.Failed++
	if path == "" {
		s.Errors = append(s.Errors, err.Error())
		return
	}
	s.Errors = append(s.Errors, path+": "+err.Error())
}

func (s *Summary) finish(start, end time.Time) {
	s.Duration = end.Sub(start)
	if s.Status != "" {
		return
	}
	s.Status = StatusOK
	if s.Failed > 0 {
		s.Status = StatusPartial
	}
}

// Status is a point-in-time view of the engine.
type Status struct {
	Enabled       bool          `json:"enabled"`
	Watching      bool          `json:"watching"`
	VaultPath     string        `json:"vault_path"`
	VaultExists   bool          `json:"vault_exists"`
	KnowledgePath string        `json:"knowledge_path"`
	ExportFolder  string        `json:"export_folder"`
	WritePolicy   string        `json:"write_policy"`
	ReadFilters   vault.Filters `json:"read_filters"`
	PollInterval  float64       `json:"poll_interval_seconds"`
	TrackedFiles  int           `json:"tracked_files"`
	IndexEnabled  bool          `json:"index_enabled"`
	IndexedFiles  int           `json:"indexed_files"`
	HistorySize   int           `json:"history_size"`
	LastSync      *time.Time    `json:"last_sync,omitempty"`
	LastSummary   *Summary      `json:"last_summary,omitempty"`
}
