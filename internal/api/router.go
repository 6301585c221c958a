package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// events, if non-nil, receives note.exported events for successful writes.
func NewRouter(svc Service, authEnabled bool, token string, sseHandler http.Handler, events Publisher) chi.Router {
	h := NewHandler(svc, events)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Read side.
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)
	r.Get("/status", h.Status)
	r.Get("/history", h.History)
	r.Get("/search", h.Search)

	// Write side.
	r.Post("/permissions/check", h.CheckPermission)
	r.Post("/exports", h.Export)

	// Sync passes.
	r.Post("/sync", h.Sync)
	r.Post("/reindex", h.Reindex)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
