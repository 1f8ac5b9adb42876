package scribe

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"
)

// Pipeline timing defaults.
const (
	// DefaultSampleInterval is the period between classifier dispatches.
	DefaultSampleInterval = 2000 * time.Millisecond
	// DefaultIdleInterval is the period of the idle evaluator.
	DefaultIdleInterval = 1000 * time.Millisecond
)

// FrameSource extracts a region of the most recent display frame as a JPEG.
type FrameSource interface {
	EncodeRegion(r image.Rectangle) ([]byte, error)
}

// Classifier maps a cropped hand image to a symbol. An empty symbol means
// no confident prediction.
type Classifier interface {
	Classify(ctx context.Context, jpeg []byte) (string, error)
}

// Frame is one detector result handed to the pipeline.
type Frame struct {
	Landmarks LandmarkSet
	Width     int
	Height    int
}

// Config holds pipeline options. Zero values fall back to defaults.
type Config struct {
	Geometry       Geometry
	IdleThreshold  time.Duration
	SampleInterval time.Duration
	IdleInterval   time.Duration
	Clock          Clock
	Logger         *slog.Logger
}

// DefaultConfig returns the reference timings and geometry.
func DefaultConfig() Config {
	return Config{
		Geometry:       DefaultGeometry(),
		IdleThreshold:  DefaultIdleThreshold,
		SampleInterval: DefaultSampleInterval,
		IdleInterval:   DefaultIdleInterval,
		Clock:          SystemClock{},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Geometry.BoxSize <= 0 {
		c.Geometry = d.Geometry
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = d.IdleThreshold
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = d.SampleInterval
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = d.IdleInterval
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// SampleResult describes what one sampling tick did.
type SampleResult int

const (
	SampleDisarmed SampleResult = iota
	SampleAbsent
	SampleBusy
	SampleFailed
	SampleEmpty
	SampleDuplicate
	SampleAppended
)

func (r SampleResult) String() string {
	switch r {
	case SampleDisarmed:
		return "disarmed"
	case SampleAbsent:
		return "absent"
	case SampleBusy:
		return "busy"
	case SampleFailed:
		return "failed"
	case SampleEmpty:
		return "empty"
	case SampleDuplicate:
		return "duplicate"
	case SampleAppended:
		return "appended"
	default:
		return "unknown"
	}
}

// Dispatched reports whether the tick sent an image to the classifier.
func (r SampleResult) Dispatched() bool {
	return r >= SampleFailed
}

// Snapshot is a read-only view of the pipeline for the UI.
type Snapshot struct {
	Text          string     `json:"text"`
	Armed         bool       `json:"armed"`
	Present       bool       `json:"present"`
	State         string     `json:"state"`
	IdleSeconds   int        `json:"idleSeconds"`
	SpaceInserted bool       `json:"spaceInserted"`
	Status        string     `json:"status"`
	Crop          CropWindow `json:"crop"`
	LastSeenAt    time.Time  `json:"lastSeenAt"`
}

// Pipeline owns all scribe state. Frame callbacks, the sampling tick and
// the idle tick all serialize on one mutex; the classifier round-trip runs
// outside it.
type Pipeline struct {
	cfg        Config
	classifier Classifier
	frames     FrameSource
	log        *slog.Logger

	mu        sync.Mutex
	presence  PresenceState
	crop      CropWindow
	spacer    *IdleSpacer
	acc       Accumulator
	armed     bool
	inFlight  bool
	listeners []Listener

	armCh chan struct{}
}

// New creates a disarmed pipeline.
func New(cfg Config, classifier Classifier, frames FrameSource) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		frames:     frames,
		log:        cfg.Logger.With("component", "scribe"),
		presence:   PresenceState{LastSeenAt: cfg.Clock.Now()},
		crop:       cfg.Geometry.InitialWindow(),
		spacer:     NewIdleSpacer(cfg.IdleThreshold),
		armCh:      make(chan struct{}, 1),
	}
}

// OnEvent registers a listener.
func (p *Pipeline) OnEvent(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// HandleFrame applies one detector result.
func (p *Pipeline) HandleFrame(f Frame) Observation {
	obs := Interpret(f.Landmarks, f.Width, f.Height)
	now := p.cfg.Clock.Now()

	p.mu.Lock()
	was := p.presence.Present
	p.presence.Present = obs.Present
	if obs.Present {
		p.presence.LastSeenAt = now
		p.spacer.Rearm()
		p.crop = p.cfg.Geometry.Window(obs.Center)
	}

	var events []Event
	if was != obs.Present {
		events = append(events, p.eventLocked(EventPresence, "", nil, now))
	}
	p.mu.Unlock()

	p.emit(events)
	return obs
}

// EvaluateIdle appends a separator if an idle run has just reached the
// threshold. Calling it again within the same run does nothing.
func (p *Pipeline) EvaluateIdle() bool {
	now := p.cfg.Clock.Now()

	p.mu.Lock()
	if !p.spacer.Evaluate(p.presence, now) {
		p.mu.Unlock()
		return false
	}
	p.acc.AppendSeparator()
	ev := p.eventLocked(EventSeparator, Separator, nil, now)
	p.mu.Unlock()

	p.log.Debug("separator inserted", "idle", now.Sub(ev.State.LastSeenAt))
	p.emit([]Event{ev})
	return true
}

// Sample runs one sampling tick: if armed and a hand is present it encodes
// the current crop and classifies it. It blocks for the round-trip.
// Only one dispatch is outstanding at a time; a tick that finds one in
// flight returns SampleBusy.
func (p *Pipeline) Sample(ctx context.Context) SampleResult {
	p.mu.Lock()
	switch {
	case !p.armed:
		p.mu.Unlock()
		return SampleDisarmed
	case !p.presence.Present:
		p.mu.Unlock()
		return SampleAbsent
	case p.inFlight:
		p.mu.Unlock()
		p.log.Debug("classification still in flight, skipping tick")
		return SampleBusy
	}
	window := p.crop
	p.inFlight = true
	p.mu.Unlock()

	symbol, err := p.classify(ctx, window)
	return p.commit(symbol, err)
}

func (p *Pipeline) classify(ctx context.Context, window CropWindow) (string, error) {
	img, err := p.frames.EncodeRegion(window.Rect())
	if err != nil {
		return "", fmt.Errorf("encode crop: %w", err)
	}
	symbol, err := p.classifier.Classify(ctx, img)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return symbol, nil
}

// commit applies a classification result. The last symbol is read here,
// not when the dispatch started.
func (p *Pipeline) commit(symbol string, err error) SampleResult {
	now := p.cfg.Clock.Now()

	p.mu.Lock()
	p.inFlight = false

	if err != nil {
		ev := p.eventLocked(EventFailed, "", err, now)
		p.mu.Unlock()
		p.log.Warn("prediction dropped", "error", err)
		p.emit([]Event{ev})
		return SampleFailed
	}

	var (
		result SampleResult
		kind   EventKind
	)
	switch p.acc.Offer(symbol) {
	case OutcomeAppended:
		result, kind = SampleAppended, EventSymbol
	case OutcomeDuplicate:
		result, kind = SampleDuplicate, EventDuplicate
	default:
		result, kind = SampleEmpty, EventEmpty
	}
	ev := p.eventLocked(kind, symbol, nil, now)
	p.mu.Unlock()

	if result == SampleAppended {
		p.log.Info("symbol appended", "symbol", symbol, "text", ev.State.Text)
	}
	p.emit([]Event{ev})
	return result
}

// ToggleArmed flips the armed flag and returns the new value.
func (p *Pipeline) ToggleArmed() bool {
	p.mu.Lock()
	armed := !p.armed
	ev := p.setArmedLocked(armed)
	p.mu.Unlock()

	p.armChanged(ev)
	return armed
}

// SetArmed arms or disarms sampling. Disarming keeps the output text.
func (p *Pipeline) SetArmed(armed bool) {
	p.mu.Lock()
	if p.armed == armed {
		p.mu.Unlock()
		return
	}
	ev := p.setArmedLocked(armed)
	p.mu.Unlock()

	p.armChanged(ev)
}

func (p *Pipeline) setArmedLocked(armed bool) Event {
	p.armed = armed
	kind := EventDisarmed
	if armed {
		kind = EventArmed
	}
	return p.eventLocked(kind, "", nil, p.cfg.Clock.Now())
}

func (p *Pipeline) armChanged(ev Event) {
	select {
	case p.armCh <- struct{}{}:
	default:
	}

	p.log.Info("sampling toggled", "armed", ev.State.Armed)
	p.emit([]Event{ev})
}

// Armed reports whether sampling is armed.
func (p *Pipeline) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.armed
}

// Reset clears the output, the last symbol and the separator flag.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.acc.Reset()
	p.spacer.Rearm()
	ev := p.eventLocked(EventReset, "", nil, p.cfg.Clock.Now())
	p.mu.Unlock()

	p.log.Info("output cleared")
	p.emit([]Event{ev})
}

// Snapshot returns the current state.
func (p *Pipeline) Snapshot() Snapshot {
	now := p.cfg.Clock.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(now)
}

// Text returns the output buffer.
func (p *Pipeline) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acc.Text()
}

func (p *Pipeline) snapshotLocked(now time.Time) Snapshot {
	idle := 0
	if !p.presence.Present {
		idle = int(now.Sub(p.presence.LastSeenAt) / time.Second)
	}
	return Snapshot{
		Text:          p.acc.Text(),
		Armed:         p.armed,
		Present:       p.presence.Present,
		State:         p.spacer.State(p.presence, now).String(),
		IdleSeconds:   idle,
		SpaceInserted: p.spacer.Inserted(),
		Status:        statusLine(p.presence.Present, idle, p.spacer.Threshold()),
		Crop:          p.crop,
		LastSeenAt:    p.presence.LastSeenAt,
	}
}

func statusLine(present bool, idleSeconds int, threshold time.Duration) string {
	if present {
		return "Hand detected"
	}
	limit := int(threshold / time.Second)
	if idleSeconds < limit {
		return fmt.Sprintf("Waiting... (%ds left to insert space)", limit-idleSeconds)
	}
	return "Space inserted"
}

func (p *Pipeline) eventLocked(kind EventKind, symbol string, err error, now time.Time) Event {
	return Event{
		Kind:   kind,
		Symbol: symbol,
		Err:    err,
		At:     now,
		State:  p.snapshotLocked(now),
	}
}

func (p *Pipeline) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	p.mu.Lock()
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}
