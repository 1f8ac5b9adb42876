package scribe

import "time"

// EventKind identifies what changed in the pipeline.
type EventKind int

const (
	EventSymbol EventKind = iota + 1
	EventSeparator
	EventDuplicate
	EventEmpty
	EventFailed
	EventReset
	EventArmed
	EventDisarmed
	EventPresence
)

var eventNames = map[EventKind]string{
	EventSymbol:    "symbol",
	EventSeparator: "separator",
	EventDuplicate: "duplicate",
	EventEmpty:     "empty",
	EventFailed:    "failed",
	EventReset:     "reset",
	EventArmed:     "armed",
	EventDisarmed:  "disarmed",
	EventPresence:  "presence",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is delivered to listeners after the pipeline state has changed.
// State is the snapshot taken at the moment of the change.
type Event struct {
	Kind   EventKind
	Symbol string
	Err    error
	At     time.Time
	State  Snapshot
}

// Listener receives pipeline events. Listeners are called outside the
// pipeline lock and may call back into the pipeline.
type Listener func(Event)
