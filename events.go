package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"notecard/speech"
)

// sessionEventMsg carries one event into the event loop, tagged with the
// session that produced it so events from a replaced session can be dropped.
type sessionEventMsg struct {
	sess speech.Session
	ev   speech.Event
}

// sessionEndMsg reports that a session's event stream has closed.
type sessionEndMsg struct {
	sess speech.Session
}

// waitForSessionEvent blocks for the next event from sess. The loop issues
// it again after each sessionEventMsg.
func waitForSessionEvent(sess speech.Session) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sess.Events()
		if !ok {
			return sessionEndMsg{sess: sess}
		}
		return sessionEventMsg{sess: sess, ev: ev}
	}
}
