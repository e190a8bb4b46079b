// Package speech provides live speech-to-text sessions behind a capability
// check, so callers can ask "can I dictate right now?" at the moment the user
// asks for it.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported reports that no recognizer can run in this environment.
	ErrUnsupported = errors.New("speech recognition is not supported here")

	// ErrNoSpeech is reported once when the microphone stays silent for a
	// while. The session keeps running.
	ErrNoSpeech = errors.New("no speech detected")
)

// Config describes a recognition request.
type Config struct {
	Locale          string // BCP-47, e.g. "pt-BR"
	Continuous      bool   // keep listening after the first utterance
	InterimResults  bool   // deliver revisable partial segments
	MaxAlternatives int    // per segment, at least 1
}

// Alternative is one ranked transcript hypothesis for a segment.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Segment is one unit of recognized speech. Alternatives are ranked best
// first. Non-final segments may still be revised by later events.
type Segment struct {
	Alternatives []Alternative
	Final        bool
}

// Best returns the top-ranked transcript, or "" for an empty segment.
func (s Segment) Best() string {
	if len(s.Alternatives) == 0 {
		return ""
	}
	return s.Alternatives[0].Transcript
}

// Event is either a result event carrying every segment the session knows
// about, in order, or an error event.
type Event struct {
	Results []Segment
	Err     error
}

func (e Event) IsError() bool { return e.Err != nil }

// Session is a live recognition stream. Events delivers result events and at
// most one error event; the channel is closed after Stop. A stopped session
// cannot be restarted.
type Session interface {
	Events() <-chan Event
	Stop() error
}

// Leveler is implemented by sessions that can report the current input level (0..1).
type Leveler interface {
	Level() float64
}

type Recognizer interface {
	Name() string
	Start(ctx context.Context, cfg Config) (Session, error)
}

// Capability resolves the recognizer available right now. It returns an
// error wrapping ErrUnsupported when none is.
type Capability interface {
	Lookup() (Recognizer, error)
}

type unsupported struct{}

func (unsupported) Lookup() (Recognizer, error) { return nil, ErrUnsupported }

// Unavailable is a Capability that never yields a recognizer.
var Unavailable Capability = unsupported{}
