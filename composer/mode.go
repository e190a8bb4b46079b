package composer

import (
	"time"

	"notecard/speech"
)

// Mode is the composer's interaction state. It is exactly one of Onboarding,
// Editing or Dictating.
type Mode interface {
	isMode()
}

// Onboarding shows the entry prompts. The draft is always empty here.
type Onboarding struct{}

// Editing is manual text entry.
type Editing struct{}

// Dictating owns the live session feeding the draft.
type Dictating struct {
	Session  speech.Session
	Provider string
	Started  time.Time
}

func (Onboarding) isMode() {}
func (Editing) isMode()    {}
func (Dictating) isMode()  {}

// ModeName returns a short lowercase label for logs and status lines.
func ModeName(m Mode) string {
	switch m.(type) {
	case Onboarding:
		return "onboarding"
	case Editing:
		return "editing"
	case Dictating:
		return "dictating"
	}
	return "unknown"
}
