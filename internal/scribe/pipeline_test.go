package scribe

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeClassifier replays queued responses and records every call.
type fakeClassifier struct {
	mu        sync.Mutex
	responses []response
	calls     int
	block     chan struct{}
}

type response struct {
	symbol string
	err    error
}

func (c *fakeClassifier) queue(symbols ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		c.responses = append(c.responses, response{symbol: s})
	}
}

func (c *fakeClassifier) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response{err: err})
}

func (c *fakeClassifier) Classify(ctx context.Context, jpeg []byte) (string, error) {
	c.mu.Lock()
	c.calls++
	block := c.block
	var r response
	if len(c.responses) > 0 {
		r = c.responses[0]
		c.responses = c.responses[1:]
	}
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.symbol, r.err
}

func (c *fakeClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeFrames records requested regions.
type fakeFrames struct {
	mu      sync.Mutex
	regions []image.Rectangle
	err     error
}

func (f *fakeFrames) EncodeRegion(r image.Rectangle) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions = append(f.regions, r)
	if f.err != nil {
		return nil, f.err
	}
	return []byte{0xff, 0xd8, 0xff, 0xd9}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T) (*Pipeline, *ManualClock, *fakeClassifier, *fakeFrames) {
	t.Helper()
	clock := NewManualClock(t0)
	cls := &fakeClassifier{}
	frames := &fakeFrames{}
	p := New(Config{Clock: clock, Logger: quietLogger()}, cls, frames)
	return p, clock, cls, frames
}

// hand is a small landmark set centered at (320, 240) on a 640x480 frame.
func hand() Frame {
	return Frame{
		Landmarks: LandmarkSet{{X: 0.45, Y: 0.45}, {X: 0.55, Y: 0.55}},
		Width:     640,
		Height:    480,
	}
}

func noHand() Frame {
	return Frame{Width: 640, Height: 480}
}

func TestPipeline_HandleFrame(t *testing.T) {
	p, clock, _, _ := newTestPipeline(t)

	initial := p.Snapshot().Crop
	if initial != (CropWindow{X: 10, Y: 10, Width: 200, Height: 200}) {
		t.Errorf("initial crop = %+v", initial)
	}

	clock.Advance(time.Second)
	obs := p.HandleFrame(hand())
	if !obs.Present {
		t.Fatal("expected presence")
	}

	snap := p.Snapshot()
	wantCrop := CropWindow{X: 220, Y: 140, Width: 200, Height: 200}
	if snap.Crop != wantCrop {
		t.Errorf("crop = %+v, want %+v", snap.Crop, wantCrop)
	}
	if !snap.LastSeenAt.Equal(t0.Add(time.Second)) {
		t.Errorf("LastSeenAt = %v, want %v", snap.LastSeenAt, t0.Add(time.Second))
	}

	clock.Advance(time.Second)
	p.HandleFrame(noHand())

	snap = p.Snapshot()
	if snap.Present {
		t.Error("expected no presence after empty frame")
	}
	if snap.Crop != wantCrop {
		t.Errorf("crop changed on empty frame: %+v", snap.Crop)
	}
	if !snap.LastSeenAt.Equal(t0.Add(time.Second)) {
		t.Errorf("LastSeenAt moved on empty frame: %v", snap.LastSeenAt)
	}
}

func TestPipeline_OneSeparatorPerIdleRun(t *testing.T) {
	p, clock, _, _ := newTestPipeline(t)

	p.HandleFrame(hand())
	p.HandleFrame(noHand())

	var inserted int
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		if p.EvaluateIdle() {
			inserted++
		}
	}
	if inserted != 1 {
		t.Fatalf("inserted %d separators in one idle run, want 1", inserted)
	}
	if got := p.Text(); got != " " {
		t.Errorf("Text() = %q, want %q", got, " ")
	}

	// A new presence event opens a new run.
	p.HandleFrame(hand())
	if p.Snapshot().SpaceInserted {
		t.Error("presence did not rearm the spacer")
	}
	p.HandleFrame(noHand())
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		p.EvaluateIdle()
	}
	if got := p.Text(); got != "  " {
		t.Errorf("Text() = %q, want two separators", got)
	}
}

func TestPipeline_EvaluateIdleIsIdempotent(t *testing.T) {
	p, clock, _, _ := newTestPipeline(t)

	clock.Advance(3 * time.Second)
	if !p.EvaluateIdle() {
		t.Fatal("first evaluation should insert")
	}
	if p.EvaluateIdle() {
		t.Error("second evaluation in the same run inserted again")
	}
	if got := p.Text(); got != " " {
		t.Errorf("Text() = %q", got)
	}
}

func TestPipeline_PausedFeedKeepsPresence(t *testing.T) {
	p, clock, _, _ := newTestPipeline(t)
	p.HandleFrame(hand())

	// No frames arrive at all; the last frame still had a hand.
	clock.Advance(10 * time.Second)
	if p.EvaluateIdle() {
		t.Error("separator inserted while the last frame showed a hand")
	}
}

func TestPipeline_DedupLaw(t *testing.T) {
	p, _, cls, _ := newTestPipeline(t)
	p.SetArmed(true)
	p.HandleFrame(hand())

	cls.queue("A", "A", "", "B", "", "A")

	var got []SampleResult
	for i := 0; i < 6; i++ {
		got = append(got, p.Sample(context.Background()))
	}

	want := []SampleResult{
		SampleAppended, SampleDuplicate, SampleEmpty,
		SampleAppended, SampleEmpty, SampleAppended,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if p.Text() != "ABA" {
		t.Errorf("Text() = %q, want %q", p.Text(), "ABA")
	}
}

func TestPipeline_ResetLaw(t *testing.T) {
	p, clock, cls, _ := newTestPipeline(t)
	p.SetArmed(true)
	p.HandleFrame(hand())
	cls.queue("A")
	p.Sample(context.Background())

	p.HandleFrame(noHand())
	clock.Advance(4 * time.Second)
	p.EvaluateIdle()
	if p.Text() != "A " {
		t.Fatalf("Text() = %q before reset", p.Text())
	}

	p.Reset()
	snap := p.Snapshot()
	if snap.Text != "" {
		t.Errorf("Text = %q after reset", snap.Text)
	}
	if snap.SpaceInserted {
		t.Error("SpaceInserted survived reset")
	}
	if !snap.Armed {
		t.Error("reset disarmed the pipeline")
	}

	p.HandleFrame(hand())
	cls.queue("A")
	if got := p.Sample(context.Background()); got != SampleAppended {
		t.Errorf("Sample() = %v, want %v for pre-reset symbol", got, SampleAppended)
	}
	if p.Text() != "A" {
		t.Errorf("Text() = %q, want %q", p.Text(), "A")
	}
}

func TestPipeline_ArmingGate(t *testing.T) {
	p, clock, cls, _ := newTestPipeline(t)
	p.HandleFrame(hand())
	cls.queue("A", "B")

	for i := 0; i < 3; i++ {
		clock.Advance(2 * time.Second)
		p.HandleFrame(hand())
		if got := p.Sample(context.Background()); got != SampleDisarmed {
			t.Fatalf("Sample() = %v while disarmed", got)
		}
	}
	if cls.Calls() != 0 {
		t.Fatalf("classifier called %d times while disarmed", cls.Calls())
	}

	if !p.ToggleArmed() {
		t.Fatal("ToggleArmed() = false, want true")
	}
	if got := p.Sample(context.Background()); got != SampleAppended {
		t.Errorf("Sample() = %v after arming", got)
	}

	if p.ToggleArmed() {
		t.Fatal("ToggleArmed() = true, want false")
	}
	if got := p.Sample(context.Background()); got != SampleDisarmed {
		t.Errorf("Sample() = %v after disarming", got)
	}
	if p.Text() != "A" {
		t.Errorf("disarming changed text to %q", p.Text())
	}
}

func TestPipeline_SampleWithoutHand(t *testing.T) {
	p, _, cls, frames := newTestPipeline(t)
	p.SetArmed(true)
	p.HandleFrame(hand())
	p.HandleFrame(noHand())

	if got := p.Sample(context.Background()); got != SampleAbsent {
		t.Errorf("Sample() = %v, want %v", got, SampleAbsent)
	}
	if got := p.Sample(context.Background()); got.Dispatched() {
		t.Errorf("absent sample reported a dispatch")
	}
	if cls.Calls() != 0 || len(frames.regions) != 0 {
		t.Errorf("dispatch happened without a hand: calls=%d regions=%d", cls.Calls(), len(frames.regions))
	}
}

func TestPipeline_SampleUsesCurrentCrop(t *testing.T) {
	p, _, cls, frames := newTestPipeline(t)
	p.SetArmed(true)
	p.HandleFrame(Frame{
		Landmarks: LandmarkSet{{X: 0.99, Y: 0.01}},
		Width:     640,
		Height:    480,
	})
	cls.queue("C")
	p.Sample(context.Background())

	want := []image.Rectangle{image.Rect(2, 2, 202, 202)}
	if diff := cmp.Diff(want, frames.regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_FailuresAreDropped(t *testing.T) {
	tests := []struct {
		name  string
		setup func(cls *fakeClassifier, frames *fakeFrames)
	}{
		{
			name: "classifier error",
			setup: func(cls *fakeClassifier, frames *fakeFrames) {
				cls.fail(errors.New("connection refused"))
			},
		},
		{
			name: "encode error",
			setup: func(cls *fakeClassifier, frames *fakeFrames) {
				frames.err = errors.New("no frame")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, cls, frames := newTestPipeline(t)
			p.SetArmed(true)
			p.HandleFrame(hand())
			cls.queue("A")
			p.Sample(context.Background())

			tt.setup(cls, frames)
			if got := p.Sample(context.Background()); got != SampleFailed {
				t.Fatalf("Sample() = %v, want %v", got, SampleFailed)
			}
			if p.Text() != "A" {
				t.Errorf("failure changed text to %q", p.Text())
			}

			// The next tick proceeds normally and still dedups against A.
			frames.err = nil
			cls.queue("A", "B")
			p.Sample(context.Background())
			p.Sample(context.Background())
			if p.Text() != "AB" {
				t.Errorf("Text() = %q, want %q", p.Text(), "AB")
			}
		})
	}
}

func TestPipeline_CommitReadsLastPredictionFresh(t *testing.T) {
	p, _, cls, _ := newTestPipeline(t)
	p.SetArmed(true)
	p.HandleFrame(hand())
	cls.queue("A")
	p.Sample(context.Background())

	release := make(chan struct{})
	cls.mu.Lock()
	cls.block = release
	cls.mu.Unlock()
	cls.queue("A")

	done := make(chan SampleResult, 1)
	go func() { done <- p.Sample(context.Background()) }()

	waitFor(t, func() bool { return cls.Calls() == 2 })

	// While the dispatch is in flight: a second tick is skipped, and a
	// reset clears the last symbol before the result lands.
	if got := p.Sample(context.Background()); got != SampleBusy {
		t.Errorf("concurrent Sample() = %v, want %v", got, SampleBusy)
	}
	p.Reset()
	close(release)

	if got := <-done; got != SampleAppended {
		t.Errorf("in-flight Sample() = %v, want %v", got, SampleAppended)
	}
	if p.Text() != "A" {
		t.Errorf("Text() = %q, want %q", p.Text(), "A")
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	p, clock, cls, _ := newTestPipeline(t)
	p.SetArmed(true)
	cls.queue("A", "B")

	var progression []string
	p.OnEvent(func(ev Event) {
		if ev.Kind == EventSymbol || ev.Kind == EventSeparator {
			progression = append(progression, ev.State.Text)
		}
	})

	const step = 100 * time.Millisecond
	handVisible := func(at time.Duration) bool {
		return at < 2500*time.Millisecond || at >= 6500*time.Millisecond
	}

	for at := time.Duration(0); at <= 9*time.Second; at += step {
		clock.Set(t0.Add(at))
		if handVisible(at) {
			p.HandleFrame(hand())
		} else {
			p.HandleFrame(noHand())
		}
		if at > 0 && at%time.Second == 0 {
			p.EvaluateIdle()
		}
		if at > 0 && at%(2*time.Second) == 0 {
			p.Sample(context.Background())
		}
	}

	want := []string{"A", "A ", "A B"}
	if diff := cmp.Diff(want, progression); diff != "" {
		t.Errorf("progression mismatch (-want +got):\n%s", diff)
	}
	if cls.Calls() != 2 {
		t.Errorf("classifier called %d times, want 2", cls.Calls())
	}
}

func TestPipeline_Status(t *testing.T) {
	p, clock, _, _ := newTestPipeline(t)

	tests := []struct {
		advance time.Duration
		frame   *Frame
		want    string
	}{
		{0, nil, "Waiting... (3s left to insert space)"},
		{1500 * time.Millisecond, nil, "Waiting... (2s left to insert space)"},
		{time.Second, nil, "Waiting... (1s left to insert space)"},
		{time.Second, nil, "Space inserted"},
		{0, ptr(hand()), "Hand detected"},
		{5 * time.Second, nil, "Hand detected"},
		{0, ptr(hand()), "Hand detected"},
		{0, ptr(noHand()), "Waiting... (3s left to insert space)"},
	}

	for i, tt := range tests {
		clock.Advance(tt.advance)
		if tt.frame != nil {
			p.HandleFrame(*tt.frame)
		}
		if got := p.Snapshot().Status; got != tt.want {
			t.Errorf("step %d: Status = %q, want %q", i, got, tt.want)
		}
	}
}

func TestPipeline_Events(t *testing.T) {
	p, clock, cls, _ := newTestPipeline(t)

	var kinds []EventKind
	p.OnEvent(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		// Listeners run outside the lock.
		_ = p.Snapshot()
	})

	p.ToggleArmed()
	p.HandleFrame(hand())
	p.HandleFrame(hand())
	cls.queue("A", "A", "")
	p.Sample(context.Background())
	p.Sample(context.Background())
	p.Sample(context.Background())
	cls.fail(errors.New("boom"))
	p.Sample(context.Background())
	p.HandleFrame(noHand())
	clock.Advance(3 * time.Second)
	p.EvaluateIdle()
	p.Reset()
	p.ToggleArmed()

	want := []EventKind{
		EventArmed, EventPresence, EventSymbol, EventDuplicate, EventEmpty,
		EventFailed, EventPresence, EventSeparator, EventReset, EventDisarmed,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_Run(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timer test in short mode")
	}

	cls := &fakeClassifier{}
	cls.queue("A", "B", "C", "D", "E", "F", "G", "H")
	p := New(Config{
		SampleInterval: 20 * time.Millisecond,
		IdleInterval:   10 * time.Millisecond,
		IdleThreshold:  time.Hour,
		Logger:         quietLogger(),
	}, cls, &fakeFrames{})
	p.HandleFrame(hand())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(60 * time.Millisecond)
	if cls.Calls() != 0 {
		t.Fatalf("dispatched %d times before arming", cls.Calls())
	}

	p.SetArmed(true)
	waitFor(t, func() bool { return cls.Calls() >= 1 })

	p.SetArmed(false)
	time.Sleep(30 * time.Millisecond)
	calls := cls.Calls()
	time.Sleep(80 * time.Millisecond)
	if cls.Calls() != calls {
		t.Errorf("dispatches continued after disarm: %d -> %d", calls, cls.Calls())
	}
	if p.Text() == "" {
		t.Error("expected text from armed period")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func ptr[T any](v T) *T { return &v }
