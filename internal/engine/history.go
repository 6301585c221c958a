package engine

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/osmen/vaultsync/internal/models"
)

// DefaultHistorySize bounds the in-memory record history.
const DefaultHistorySize = 1000

// history is a bounded ring of sync records. Every record is also written
// as one JSON line to the audit writer when one is set.
type history struct {
	mu    sync.Mutex
	buf   []models.SyncRecord
	next  int
	full  bool
	audit io.Writer
	log   *slog.Logger
}

func newHistory(size int, audit io.Writer, log *slog.Logger) *history {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &history{buf: make([]models.SyncRecord, size), audit: audit, log: log}
}

func (h *history) add(rec models.SyncRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.next] = rec
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}

	if h.audit == nil {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		h.log.Error("audit: encode failed", slog.String("error", err.Error()))
		return
	}
	if _, err := h.audit.Write(append(line, '\n')); err != nil {
		h.log.Error("audit: write failed", slog.String("error", err.Error()))
	}
}

func (h *history) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// last returns up to limit most recent records, oldest first. A limit of
// zero or less returns everything retained.
func (h *history) last(limit int) []models.SyncRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.SyncRecord, 0, limit)
	start := h.next - limit
	if start < 0 {
		start += len(h.buf)
	}
	for i := 0; i < limit; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}
	return out
}
