// Package api provides the JSON handlers for the mudra control surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/scribe"
	"github.com/ayusman/mudra/internal/store"
)

// Controller is the part of the pipeline the handlers drive.
type Controller interface {
	Snapshot() scribe.Snapshot
	ToggleArmed() bool
	Reset()
}

// History lists journal entries for the running session.
type History interface {
	List(limit int) ([]*store.Outcome, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
