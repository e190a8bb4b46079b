package doctor

import (
	"os"

	"golang.org/x/term"

	"notecard/shutdown"
)

var savedTerm *term.State

func saveTerminal() {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		savedTerm, _ = term.GetState(fd)
	}
}

// resetTerminal undoes raw mode left behind by the device picker.
func resetTerminal() {
	if savedTerm != nil {
		term.Restore(int(os.Stdin.Fd()), savedTerm)
	}
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		resetTerminal()
		println("\nInterrupted")
		os.Exit(1)
	}()
}
