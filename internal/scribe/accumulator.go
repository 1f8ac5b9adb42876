package scribe

import "strings"

// Offer outcomes.
type Outcome int

const (
	// OutcomeAppended means the symbol was new and was appended.
	OutcomeAppended Outcome = iota
	// OutcomeDuplicate means the symbol matched the last appended one.
	OutcomeDuplicate
	// OutcomeEmpty means the classifier had no prediction.
	OutcomeEmpty
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAppended:
		return "appended"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Accumulator builds the output text from classifier symbols.
// Consecutive identical symbols collapse into one, so a letter that really
// repeats ("LL") is written once.
type Accumulator struct {
	text strings.Builder
	last string
}

// Offer appends symbol unless it is empty or equal to the last appended symbol.
func (a *Accumulator) Offer(symbol string) Outcome {
	if symbol == "" {
		return OutcomeEmpty
	}
	if symbol == a.last {
		return OutcomeDuplicate
	}
	a.text.WriteString(symbol)
	a.last = symbol
	return OutcomeAppended
}

// AppendSeparator writes a word separator. It does not affect deduplication.
func (a *Accumulator) AppendSeparator() {
	a.text.WriteString(Separator)
}

// Text returns the accumulated output.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// Last returns the last appended symbol.
func (a *Accumulator) Last() string {
	return a.last
}

// Reset clears the output and the last symbol.
func (a *Accumulator) Reset() {
	a.text.Reset()
	a.last = ""
}
