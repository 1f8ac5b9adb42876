package app

import (
	"context"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/scribe"
)

// runCapture reads frames at the camera rate until ctx is done. Each frame
// is mirrored into the frame buffer, run through the detector and handed
// to the pipeline. A frame that fails detection never reaches the
// pipeline, so presence keeps its last value while the detector stalls.
func (a *App) runCapture(ctx context.Context) {
	fps := a.camera.FPS()
	if fps <= 0 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.processFrame()
		}
	}
}

func (a *App) processFrame() {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.log.Debug("error reading frame", "err", err)
		return
	}
	defer frame.Close()

	if err := a.frames.Store(frame); err != nil {
		a.log.Debug("error storing frame", "err", err)
		return
	}

	hands, err := a.detector.Detect(frame)
	if err != nil {
		a.log.Debug("error detecting hands", "err", err)
		return
	}

	a.pipeline.HandleFrame(scribe.Frame{
		Landmarks: detector.First(hands),
		Width:     frame.Cols(),
		Height:    frame.Rows(),
	})
}
