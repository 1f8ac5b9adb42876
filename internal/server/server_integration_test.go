package server

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/scribe"
	"github.com/ayusman/mudra/internal/store"
)

type stubClassifier struct {
	symbols []string
}

func (c *stubClassifier) Classify(ctx context.Context, jpeg []byte) (string, error) {
	s := c.symbols[0]
	c.symbols = c.symbols[1:]
	return s, nil
}

type stubFrames struct{}

func (stubFrames) EncodeRegion(image.Rectangle) ([]byte, error) {
	return []byte("jpeg"), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newIntegrationServer(t *testing.T) (*httptest.Server, *scribe.Pipeline, *scribe.ManualClock) {
	t.Helper()

	s, err := store.New()
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	journal, err := s.OpenJournal()
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}

	clock := scribe.NewManualClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	p := scribe.New(scribe.Config{Clock: clock, Logger: quietLogger()}, &stubClassifier{symbols: []string{"A", "B"}}, stubFrames{})
	p.OnEvent(func(ev scribe.Event) {
		if ev.Kind == scribe.EventPresence {
			return
		}
		journal.Record(ev.Kind.String(), ev.Symbol, ev.State.Text, "", ev.At)
	})

	srv := New(Config{Controller: p, History: journal, Logger: quietLogger()})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return ts, p, clock
}

func handFrame() scribe.Frame {
	return scribe.Frame{
		Landmarks: scribe.LandmarkSet{{X: 0.4, Y: 0.4}, {X: 0.6, Y: 0.6}},
		Width:     640,
		Height:    480,
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) EventMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg EventMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func post(t *testing.T, url string) scribe.Snapshot {
	t.Helper()

	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s status = %d", url, resp.StatusCode)
	}

	var snap scribe.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	return snap
}

func TestAPI_ScribeWorkflow(t *testing.T) {
	ts, p, clock := newIntegrationServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if msg := readEvent(t, conn); msg.Event != "snapshot" || msg.Snapshot.Armed {
		t.Fatalf("first message = %+v, want disarmed snapshot", msg)
	}

	// 1. Arm through the API
	if snap := post(t, ts.URL+"/api/armed"); !snap.Armed {
		t.Fatal("POST /api/armed did not arm")
	}
	if msg := readEvent(t, conn); msg.Event != "armed" {
		t.Fatalf("event = %q, want armed", msg.Event)
	}

	// 2. Hand appears and a symbol is classified
	p.HandleFrame(handFrame())
	if msg := readEvent(t, conn); msg.Event != "presence" || !msg.Snapshot.Present {
		t.Fatalf("event = %+v, want presence", msg)
	}
	if got := p.Sample(context.Background()); got != scribe.SampleAppended {
		t.Fatalf("Sample() = %v, want appended", got)
	}
	if msg := readEvent(t, conn); msg.Event != "symbol" || msg.Symbol != "A" || msg.Snapshot.Text != "A" {
		t.Fatalf("event = %+v, want symbol A", msg)
	}

	// 3. Hand leaves long enough for a separator
	p.HandleFrame(scribe.Frame{Width: 640, Height: 480})
	readEvent(t, conn)
	clock.Advance(3 * time.Second)
	p.EvaluateIdle()
	if msg := readEvent(t, conn); msg.Event != "separator" || msg.Snapshot.Text != "A " {
		t.Fatalf("event = %+v, want separator", msg)
	}

	// 4. Transcript and history agree
	resp, err := http.Get(ts.URL + "/api/transcript")
	if err != nil {
		t.Fatalf("GET /api/transcript error = %v", err)
	}
	var snap scribe.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	resp.Body.Close()
	if snap.Text != "A " || snap.Status != "Space inserted" {
		t.Errorf("transcript = %+v", snap)
	}

	resp, err = http.Get(ts.URL + "/api/history?limit=10")
	if err != nil {
		t.Fatalf("GET /api/history error = %v", err)
	}
	var history struct {
		Entries []store.Outcome `json:"entries"`
	}
	json.NewDecoder(resp.Body).Decode(&history)
	resp.Body.Close()

	var kinds []string
	for _, e := range history.Entries {
		kinds = append(kinds, e.Kind)
	}
	if got := strings.Join(kinds, ","); got != "separator,symbol,armed" {
		t.Errorf("history kinds = %s, want separator,symbol,armed", got)
	}

	// 5. Reset clears the text
	if snap := post(t, ts.URL+"/api/reset"); snap.Text != "" {
		t.Errorf("text after reset = %q", snap.Text)
	}
	if msg := readEvent(t, conn); msg.Event != "reset" {
		t.Errorf("event = %q, want reset", msg.Event)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
