// Package app wires the camera, hand detector and scribe pipeline together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/log"
	"github.com/ayusman/mudra/internal/scribe"
	"github.com/ayusman/mudra/internal/store"
)

// Options overrides the components New would otherwise build from the
// configuration. Nil fields use the defaults.
type Options struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Classifier scribe.Classifier
	Clock      scribe.Clock
	Logger     *slog.Logger
}

// App owns the capture loop and everything the pipeline needs.
type App struct {
	config   *config.Config
	log      *slog.Logger
	camera   capture.Camera
	detector detector.Detector
	frames   *capture.FrameBuffer
	pipeline *scribe.Pipeline
	store    *store.Store
	journal  *store.Journal

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an App. The detector falls back to a mock when MediaPipe is
// not installed.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.L()
	}

	a := &App{
		config:   cfg,
		log:      logger.With("component", "app"),
		camera:   opts.Camera,
		detector: opts.Detector,
		frames:   capture.NewFrameBuffer(),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.CameraConfig{
			DeviceID: cfg.Camera.Device,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			FPS:      cfg.Camera.FPS,
		})
	}

	if a.detector == nil {
		dcfg := detector.Config{
			MaxHands:        cfg.Detector.MaxHands,
			MinConfidence:   cfg.Detector.MinConfidence,
			MinTrackingConf: cfg.Detector.MinTrackingConfidence,
		}
		if mp, err := detector.NewMediaPipeDetector(dcfg, logger); err == nil {
			a.detector = mp
			a.log.Info("using MediaPipe hand detection")
		} else {
			a.log.Warn("MediaPipe not available, using mock detector", "err", err)
			a.detector = detector.NewMockDetector()
		}
	}

	cls := opts.Classifier
	if cls == nil {
		cls = classifier.New(cfg.Classifier.URL, cfg.Classifier.Timeout)
	}

	s, err := store.New()
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	journal, err := s.OpenJournal()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.store, a.journal = s, journal

	a.pipeline = scribe.New(scribe.Config{
		Geometry: scribe.Geometry{
			BoxSize: cfg.Pipeline.BoxSize,
			Inset:   cfg.Pipeline.Inset,
		},
		IdleThreshold:  cfg.Pipeline.IdleThreshold,
		SampleInterval: cfg.Pipeline.SampleInterval,
		IdleInterval:   cfg.Pipeline.IdleInterval,
		Clock:          opts.Clock,
		Logger:         logger,
	}, cls, a.frames)
	a.pipeline.OnEvent(a.record)

	return a, nil
}

// record journals every event except presence changes, which fire on
// every hand entry and exit.
func (a *App) record(ev scribe.Event) {
	if ev.Kind == scribe.EventPresence {
		return
	}
	var msg string
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	if err := a.journal.Record(ev.Kind.String(), ev.Symbol, ev.State.Text, msg, ev.At); err != nil {
		a.log.Error("failed to journal event", "event", ev.Kind, "err", err)
	}
}

// Start opens the camera and runs the capture loop and the pipeline
// schedulers. Sampling stays disarmed until the user starts it.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.runCapture(ctx)
	}()
	go func() {
		defer a.wg.Done()
		if err := a.pipeline.Run(ctx); err != nil {
			a.log.Error("pipeline stopped", "err", err)
		}
	}()

	a.log.Info("capture started", "fps", a.camera.FPS())
	return nil
}

// Stop halts the loops and releases the camera, detector, frame buffer
// and store. The App cannot be restarted afterwards.
func (a *App) Stop() error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		a.wg.Wait()
	}

	err := errors.Join(
		a.camera.Close(),
		a.detector.Close(),
		a.frames.Close(),
		a.store.Close(),
	)
	a.log.Info("capture stopped")
	return err
}

// Pipeline returns the scribe pipeline.
func (a *App) Pipeline() *scribe.Pipeline {
	return a.pipeline
}

// Frames returns the display frame buffer.
func (a *App) Frames() *capture.FrameBuffer {
	return a.frames
}

// Journal returns the journal for this run.
func (a *App) Journal() *store.Journal {
	return a.journal
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// Config returns the application configuration.
func (a *App) Config() *config.Config {
	return a.config
}
