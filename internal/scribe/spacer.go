package scribe

import "time"

// DefaultIdleThreshold is how long the hand must be absent before a word
// separator is inserted.
const DefaultIdleThreshold = 3 * time.Second

// Separator is appended to the output when an idle run begins.
const Separator = " "

// PresenceState tracks whether a hand is in view.
// LastSeenAt only moves on frames where Present is true.
type PresenceState struct {
	Present    bool      `json:"present"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// IdleState is the state of the idle/space machine.
type IdleState int

const (
	// StateActive means a hand was seen within the threshold.
	StateActive IdleState = iota
	// StateIdle means no hand has been seen for at least the threshold.
	StateIdle
)

func (s IdleState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// IdleSpacer decides when an idle run earns a separator.
// At most one separator is granted per idle run; Rearm starts a new run.
type IdleSpacer struct {
	threshold time.Duration
	inserted  bool
}

// NewIdleSpacer creates a spacer. Non-positive thresholds use DefaultIdleThreshold.
func NewIdleSpacer(threshold time.Duration) *IdleSpacer {
	if threshold <= 0 {
		threshold = DefaultIdleThreshold
	}
	return &IdleSpacer{threshold: threshold}
}

// Threshold returns the idle threshold.
func (s *IdleSpacer) Threshold() time.Duration {
	return s.threshold
}

// State reports the machine state for p at now.
func (s *IdleSpacer) State(p PresenceState, now time.Time) IdleState {
	if p.Present || now.Sub(p.LastSeenAt) < s.threshold {
		return StateActive
	}
	return StateIdle
}

// Evaluate reports whether a separator should be appended now, and if so
// records that this idle run has had its separator.
func (s *IdleSpacer) Evaluate(p PresenceState, now time.Time) bool {
	if s.inserted || s.State(p, now) != StateIdle {
		return false
	}
	s.inserted = true
	return true
}

// Rearm clears the inserted flag.
func (s *IdleSpacer) Rearm() {
	s.inserted = false
}

// Inserted reports whether the current idle run already has its separator.
func (s *IdleSpacer) Inserted() bool {
	return s.inserted
}
