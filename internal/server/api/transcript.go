package api

import (
	"net/http"
)

// TranscriptHandler serves the transcript and its two controls.
//
//	GET  /api/transcript  current snapshot
//	POST /api/armed       toggle sampling, returns the new snapshot
//	POST /api/reset       clear the text, returns the new snapshot
type TranscriptHandler struct {
	controller Controller
}

// NewTranscriptHandler creates a TranscriptHandler over c.
func NewTranscriptHandler(c Controller) *TranscriptHandler {
	return &TranscriptHandler{controller: c}
}

// Register mounts the handler's routes on mux.
func (h *TranscriptHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/transcript", h.get)
	mux.HandleFunc("/api/armed", h.toggle)
	mux.HandleFunc("/api/reset", h.reset)
}

func (h *TranscriptHandler) get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

func (h *TranscriptHandler) toggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.controller.ToggleArmed()
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

func (h *TranscriptHandler) reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.controller.Reset()
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}
