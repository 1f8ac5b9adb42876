package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns fixed hands, or replays a script of per-call results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	script [][]HandLandmarks
	loop   bool
	calls  int
	err    error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
	m.script = nil
}

// SetScript makes Detect return script[i] on its i-th call. After the
// script runs out, Detect returns no hands unless loop is set.
func (m *MockDetector) SetScript(script [][]HandLandmarks, loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
	m.loop = loop
	m.calls = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.calls
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	if m.script == nil {
		return m.hands, nil
	}
	if i >= len(m.script) {
		if !m.loop || len(m.script) == 0 {
			return nil, nil
		}
		i %= len(m.script)
	}
	return m.script[i], nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// HandAt returns a synthetic open right hand whose bounding box is centered
// on (x, y) in normalized coordinates and spans size in both directions.
func HandAt(x, y, size float64) HandLandmarks {
	h := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	half := size / 2
	h.Points[Wrist] = Point3D{X: x, Y: y + half}

	// Five fingers fanned across the box, four joints each from knuckle to tip.
	for finger := 0; finger < 5; finger++ {
		fx := x - half + size*float64(finger)/4
		for joint := 0; joint < 4; joint++ {
			fy := y + half/2 - (half+half/2)*float64(joint)/3
			h.Points[1+finger*4+joint] = Point3D{X: fx, Y: fy}
		}
	}

	return h
}
