// Package notify fans composer feedback out to desktop notifications, audio
// cues and text streams.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/beeep"

	"notecard/beep"
	"notecard/log"
)

// Notifier matches composer.Notifier.
type Notifier interface {
	Success(msg string)
	Warn(msg string)
}

var (
	desktopNotify = func(title, msg string) error { return beeep.Notify(title, msg, "") }
	desktopAlert  = func(title, msg string) error { return beeep.Alert(title, msg, "") }
)

// Desktop shows OS notifications. Delivery is asynchronous.
type Desktop struct {
	Title string
}

func (d Desktop) title() string {
	if d.Title == "" {
		return "notecard"
	}
	return d.Title
}

func (d Desktop) Success(msg string) {
	go func() {
		if err := desktopNotify(d.title(), msg); err != nil {
			log.Debug("desktop notification failed: " + err.Error())
		}
	}()
}

func (d Desktop) Warn(msg string) {
	go func() {
		if err := desktopAlert(d.title(), msg); err != nil {
			log.Debug("desktop alert failed: " + err.Error())
		}
	}()
}

// Sound plays the matching audio cue.
type Sound struct{}

func (Sound) Success(string) { beep.PlaySuccess() }
func (Sound) Warn(string)    { beep.PlayWarn() }

// Writer prints one line per notification. The headless driver uses it.
type Writer struct {
	mu sync.Mutex
	W  io.Writer
}

func (w *Writer) Success(msg string) { w.line("OK", msg) }
func (w *Writer) Warn(msg string)    { w.line("WARN", msg) }

func (w *Writer) line(kind, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.W, "%s: %s\n", kind, msg)
}

// Multi delivers to every non-nil notifier in order.
type Multi []Notifier

func (m Multi) Success(msg string) {
	for _, n := range m {
		if n != nil {
			n.Success(msg)
		}
	}
}

func (m Multi) Warn(msg string) {
	for _, n := range m {
		if n != nil {
			n.Warn(msg)
		}
	}
}
