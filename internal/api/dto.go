package api

import (
	"github.com/osmen/vaultsync/internal/engine"
	"github.com/osmen/vaultsync/internal/index"
	"github.com/osmen/vaultsync/internal/models"
)

// PermissionCheckRequest is the request body for POST /permissions/check.
type PermissionCheckRequest struct {
	Path    string `json:"path" example:"OsMEN-Exports/summary.md" validate:"required"`
	AgentID string `json:"agent_id" example:"research-agent"`
}

// ExportRequest is the request body for POST /exports.
type ExportRequest struct {
	Filename    string             `json:"filename" example:"weekly-summary" validate:"required"`
	Content     string             `json:"content" example:"# Weekly summary"`
	AgentID     string             `json:"agent_id" example:"research-agent"`
	Subfolder   string             `json:"subfolder,omitempty" example:"reports"`
	Frontmatter models.Frontmatter `json:"frontmatter,omitempty" swaggertype:"object"`
}

func (r ExportRequest) toWrite() engine.WriteRequest {
	return engine.WriteRequest{
		Filename:    r.Filename,
		Content:     r.Content,
		AgentID:     r.AgentID,
		Subfolder:   r.Subfolder,
		Frontmatter: r.Frontmatter,
	}
}

// NoteListResponse wraps the readable note listing.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// HistoryResponse wraps recent sync records, oldest first.
type HistoryResponse struct {
	Records []models.SyncRecord `json:"records" validate:"required"`
}

// SyncResponse reports a manual sync. Index is set only when the chunk
// index is enabled.
type SyncResponse struct {
	Sync  engine.Summary  `json:"sync"`
	Index *engine.Summary `json:"index,omitempty"`
}

// SearchResponse wraps chunk search hits.
type SearchResponse struct {
	Results []index.Hit `json:"results" validate:"required"`
}
