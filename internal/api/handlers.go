package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/osmen/vaultsync/internal/apperr"
	"github.com/osmen/vaultsync/internal/engine"
	"github.com/osmen/vaultsync/internal/index"
	"github.com/osmen/vaultsync/internal/models"
	"github.com/osmen/vaultsync/internal/sse"
)

const defaultSearchLimit = 20

// Service is the engine surface the handlers use.
type Service interface {
	ListReadableNotes(ctx context.Context) ([]models.Note, error)
	ReadNote(ctx context.Context, rel string) (*models.Note, error)
	GetStatus() engine.Status
	GetSyncHistory(limit int) []models.SyncRecord
	CanWrite(target, agentID string) models.PermissionDecision
	WriteToVault(ctx context.Context, req engine.WriteRequest) (engine.WriteResult, error)
	SyncToKnowledge(ctx context.Context, changes []models.FileChange) (engine.Summary, error)
	Reindex(ctx context.Context, force bool) (engine.Summary, error)
	IndexEnabled() bool
	Search(ctx context.Context, query string, limit int) ([]index.Hit, error)
}

var _ Service = (*engine.Engine)(nil)

// Publisher receives events for the SSE stream.
type Publisher interface {
	Publish(event sse.Event)
}

// Handler holds API route handlers.
type Handler struct {
	svc    Service
	events Publisher
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(svc Service, events Publisher) *Handler {
	return &Handler{svc: svc, events: events}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes the read filters allow
//	@Tags			notes
//	@Produce		json
//	@Success		200	{object}	NoteListResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListReadableNotes(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrVaultNotFound) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("vault not found"))
			return
		}
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Read a single readable note
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	models.Note
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.ReadNote(r.Context(), path)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalidPath):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrNotReadable):
			writeJSON(w, http.StatusForbidden, errorBody("note is not readable"))
		case errors.Is(err, apperr.ErrVaultNotFound):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("vault not found"))
		default:
			slog.Error("get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Status handles GET /api/status.
//
//	@Summary		Engine status
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	engine.Status
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetStatus())
}

// History handles GET /api/history.
//
//	@Summary		Recent sync records, oldest first
//	@Tags			sync
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum records"
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	records := h.svc.GetSyncHistory(limit)
	if records == nil {
		records = []models.SyncRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Records: records})
}

// CheckPermission handles POST /api/permissions/check.
//
//	@Summary		Evaluate a write without performing it
//	@Tags			permissions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PermissionCheckRequest	true	"Target to check"
//	@Success		200		{object}	models.PermissionDecision
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/permissions/check [post]
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req PermissionCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.CanWrite(req.Path, req.AgentID))
}

// Export handles POST /api/exports.
//
//	@Summary		Write an agent note into the export folder
//	@Tags			permissions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExportRequest	true	"Note to export"
//	@Success		201		{object}	engine.WriteResult
//	@Success		202		{object}	engine.WriteResult	"Queued for approval"
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	engine.WriteResult
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("filename is required"))
		return
	}

	res, err := h.svc.WriteToVault(r.Context(), req.toWrite())
	if err != nil {
		if errors.Is(err, apperr.ErrVaultNotFound) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("vault not found"))
			return
		}
		slog.Error("export failed", slog.String("path", res.Path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	switch {
	case res.Written:
		if h.events != nil {
			h.events.Publish(sse.Event{Type: sse.TypeNoteExported, Data: res})
		}
		writeJSON(w, http.StatusCreated, res)
	case res.NeedsApproval:
		writeJSON(w, http.StatusAccepted, res)
	default:
		writeJSON(w, http.StatusForbidden, res)
	}
}

// Sync handles POST /api/sync.
//
//	@Summary		Run one mirror pass, plus a reindex when the chunk index is enabled
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		503	{object}	SyncResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var resp SyncResponse

	sum, err := h.svc.SyncToKnowledge(ctx, nil)
	resp.Sync = sum
	if err != nil {
		writeJSON(w, statusFor(err), resp)
		return
	}

	if h.svc.IndexEnabled() {
		sum, err := h.svc.Reindex(ctx, false)
		resp.Index = &sum
		if err != nil {
			writeJSON(w, statusFor(err), resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reindex handles POST /api/reindex.
//
//	@Summary		Run the chunk pipeline
//	@Tags			sync
//	@Produce		json
//	@Param			force	query		bool	false	"Rechunk every readable note"
//	@Success		200		{object}	engine.Summary
//	@Failure		503		{object}	engine.Summary
//	@Security		BearerAuth
//	@Router			/reindex [post]
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	sum, err := h.svc.Reindex(r.Context(), force)
	if err != nil {
		writeJSON(w, statusFor(err), sum)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Search handles GET /api/search.
//
//	@Summary		Search indexed chunks
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Maximum results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	hits, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		if errors.Is(err, apperr.ErrIndexUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody("chunk index unavailable"))
			return
		}
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("search failed"))
		return
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrVaultNotFound), errors.Is(err, apperr.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
