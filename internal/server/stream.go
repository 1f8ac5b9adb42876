package server

import (
	"fmt"
	"net/http"
	"time"
)

// DefaultStreamInterval paces the preview at roughly 15 FPS.
const DefaultStreamInterval = 66 * time.Millisecond

// StreamHandler serves the mirrored display frame as MJPEG, with the crop
// box outlined while a hand is present.
type StreamHandler struct {
	preview    Preview
	controller Controller
	inset      int
	interval   time.Duration
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(preview Preview, controller Controller, inset int, interval time.Duration) *StreamHandler {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &StreamHandler{
		preview:    preview,
		controller: controller,
		inset:      inset,
		interval:   interval,
	}
}

// ServeHTTP streams MJPEG frames until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		snap := h.controller.Snapshot()
		data, err := h.preview.EncodePreview(snap.Crop.Box(h.inset), snap.Present)
		if err == nil {
			if err := writePart(w, data); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
