package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/store"
)

// MaxHistoryLimit caps the limit query parameter.
const MaxHistoryLimit = 1000

type historyResponse struct {
	Entries []*store.Outcome `json:"entries"`
}

// HistoryHandler handles GET /api/history?limit=N.
type HistoryHandler struct {
	history History
}

// NewHistoryHandler creates a HistoryHandler over h.
func NewHistoryHandler(h History) *HistoryHandler {
	return &HistoryHandler{history: h}
}

// ServeHTTP implements http.Handler.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	entries, err := h.history.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []*store.Outcome{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Entries: entries})
}
