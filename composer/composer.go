// Package composer implements the note composer: a three-mode state machine
// (onboarding, manual editing, live dictation) that builds one note at a time
// and hands finished notes to the host through a callback.
//
// A Composer is not safe for concurrent use. The host drives it from a single
// event loop and forwards session events back through HandleEvent.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notecard/log"
	"notecard/speech"
)

const (
	MsgCreated     = "Note created successfully!"
	MsgUnsupported = "Speech recognition is not available. You can still type your note."
)

// ErrBusy is returned by StartDictation outside Onboarding.
var ErrBusy = errors.New("dictation can only start from an empty note")

// Notifier is the host's transient feedback surface.
type Notifier interface {
	Success(msg string)
	Warn(msg string)
}

// CreateFunc receives each finalized note. content is never empty.
type CreateFunc func(content string)

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Warn(string)    {}

type Option func(*Composer)

// WithLocale sets the dictation language (BCP-47).
func WithLocale(locale string) Option {
	return func(c *Composer) { c.speech.Locale = locale }
}

// WithRecognition overrides the interim and alternatives settings of the
// dictation request. Dictation is always continuous.
func WithRecognition(interim bool, maxAlternatives int) Option {
	return func(c *Composer) {
		c.speech.InterimResults = interim
		c.speech.MaxAlternatives = max(maxAlternatives, 1)
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Composer) {
		if n != nil {
			c.notify = n
		}
	}
}

// WithFocus registers the hook fired when manual entry begins.
func WithFocus(fn func()) Option {
	return func(c *Composer) { c.focus = fn }
}

type Composer struct {
	create     CreateFunc
	capability speech.Capability
	notify     Notifier
	focus      func()
	speech     speech.Config
	now        func() time.Time

	mode     Mode
	draft    string
	dictated bool // draft came at least partly from speech
}

// New returns a composer in Onboarding with an empty draft. The capability is
// consulted each time dictation is requested, not here.
func New(create CreateFunc, capability speech.Capability, opts ...Option) *Composer {
	if capability == nil {
		capability = speech.Unavailable
	}
	c := &Composer{
		create:     create,
		capability: capability,
		notify:     nopNotifier{},
		speech: speech.Config{
			Locale:          "pt-BR",
			Continuous:      true,
			InterimResults:  true,
			MaxAlternatives: 1,
		},
		now:  time.Now,
		mode: Onboarding{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Composer) Mode() Mode    { return c.mode }
func (c *Composer) Draft() string { return c.draft }

// Session returns the live dictation session, or nil outside Dictating.
func (c *Composer) Session() speech.Session {
	if d, ok := c.mode.(Dictating); ok {
		return d.Session
	}
	return nil
}

// StartEditing switches from Onboarding to manual entry and fires the focus
// hook. It reports whether the mode changed.
func (c *Composer) StartEditing() bool {
	if _, ok := c.mode.(Onboarding); !ok {
		return false
	}
	c.mode = Editing{}
	if c.focus != nil {
		c.focus()
	}
	return true
}

// StartDictation looks up a recognizer and starts a continuous session. When
// no recognizer is available the user is warned, the composer stays in
// Onboarding and the returned error wraps speech.ErrUnsupported.
func (c *Composer) StartDictation(ctx context.Context) error {
	if _, ok := c.mode.(Onboarding); !ok {
		return ErrBusy
	}

	rec, err := c.capability.Lookup()
	if err != nil {
		log.Warnf("dictation unavailable: %v", err)
		c.notify.Warn(MsgUnsupported)
		return err
	}

	sess, err := rec.Start(ctx, c.speech)
	if err != nil {
		log.RecognitionError(rec.Name(), err)
		c.notify.Warn(fmt.Sprintf("Could not start dictation: %v", err))
		return fmt.Errorf("starting %s: %w", rec.Name(), err)
	}

	c.mode = Dictating{Session: sess, Provider: rec.Name(), Started: c.now()}
	device := ""
	if d, ok := sess.(interface{ DeviceName() string }); ok {
		device = d.DeviceName()
	}
	log.DictationStart(rec.Name(), device)
	return nil
}

// Edit applies text typed by the user. Clearing the text while editing
// returns to Onboarding; text typed during dictation is kept until the next
// result replaces it.
func (c *Composer) Edit(text string) {
	switch c.mode.(type) {
	case Onboarding:
		if text != "" {
			c.draft = text
			c.mode = Editing{}
		}
	case Editing:
		if text == "" {
			c.reset()
			return
		}
		c.draft = text
	case Dictating:
		c.draft = text
	}
}

// HandleEvent applies one event from sess. Events from any session other
// than the live one are ignored. It reports whether the draft changed.
func (c *Composer) HandleEvent(sess speech.Session, ev speech.Event) bool {
	d, ok := c.mode.(Dictating)
	if !ok || sess == nil || d.Session != sess {
		return false
	}
	if ev.IsError() {
		log.RecognitionError(d.Provider, ev.Err)
		return false
	}

	var b strings.Builder
	for _, seg := range ev.Results {
		b.WriteString(seg.Best())
	}
	changed := b.String() != c.draft
	c.draft = b.String()
	c.dictated = true
	return changed
}

// StopDictation ends the live session and switches to Editing with the
// draft intact. It reports whether a session was stopped.
func (c *Composer) StopDictation() bool {
	if _, ok := c.mode.(Dictating); !ok {
		return false
	}
	c.release("user")
	c.mode = Editing{}
	return true
}

// Submit hands a non-empty draft to the create callback exactly once and
// returns to Onboarding. An empty draft is ignored.
func (c *Composer) Submit() bool {
	if c.draft == "" {
		return false
	}
	c.release("submit")

	content, source := c.draft, "typed"
	if c.dictated {
		source = "dictated"
	}
	if c.create != nil {
		c.create(content)
	}
	c.reset()
	log.NoteCreated(source, len(content))
	c.notify.Success(MsgCreated)
	return true
}

// Cancel discards the draft and any live session.
func (c *Composer) Cancel() {
	c.release("cancel")
	c.reset()
}

// Close releases any live session. It is safe to call more than once.
func (c *Composer) Close() {
	c.release("close")
	c.reset()
}

func (c *Composer) reset() {
	c.mode = Onboarding{}
	c.draft = ""
	c.dictated = false
}

// release stops the live session, if any. The caller sets the next mode.
func (c *Composer) release(reason string) {
	d, ok := c.mode.(Dictating)
	if !ok {
		return
	}
	if err := d.Session.Stop(); err != nil {
		log.Warnf("%s: stop: %v", d.Provider, err)
	}
	log.DictationStop(reason, c.now().Sub(d.Started))
	c.mode = Editing{}
}
