package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"notecard/composer"
	"notecard/notify"
	"notecard/speech"
)

// headless drives a composer from line commands instead of a terminal UI:
//
//	OPEN, TYPE <text>, CLEAR, RECORD, STOP, SUBMIT, CANCEL,
//	WAIT_AUDIO_DONE, SLEEP <ms>, QUIT
//
// It prints MODE/DRAFT/CREATED lines as the state changes.
type headless struct {
	out       io.Writer
	c         *composer.Composer
	board     *board
	audioDone func() <-chan struct{}

	mode  string
	draft string
}

type headlessOptions struct {
	Capability      speech.Capability
	Locale          string
	InterimResults  bool
	MaxAlternatives int
	Board           *board
	// AudioDone returns a channel closed when the replayed input is exhausted.
	AudioDone func() <-chan struct{}
}

func runHeadless(ctx context.Context, in io.Reader, out io.Writer, o headlessOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifier := &notify.Writer{W: out}
	h := &headless{out: out, board: o.Board, audioDone: o.AudioDone}
	h.c = composer.New(func(content string) {
		o.Board.Create(content)
		fmt.Fprintf(out, "CREATED %s\n", strconv.Quote(content))
	}, o.Capability,
		composer.WithLocale(o.Locale),
		composer.WithRecognition(o.InterimResults, o.MaxAlternatives),
		composer.WithNotifier(notifier),
	)
	defer h.c.Close()
	h.report()

	cmds := make(chan string)
	go h.readCommands(ctx, in, cmds)

	events := make(chan any, 16)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			if cmd == "QUIT" {
				return nil
			}
			h.exec(ctx, cmd, events)

		case msg := <-events:
			switch msg := msg.(type) {
			case sessionEventMsg:
				if msg.ev.IsError() {
					fmt.Fprintf(out, "ERROR %v\n", msg.ev.Err)
				}
				h.c.HandleEvent(msg.sess, msg.ev)
			case sessionEndMsg:
				if msg.sess == h.c.Session() {
					h.c.StopDictation()
				}
			}
		}
		h.report()
	}
}

// readCommands handles the blocking commands itself so the loop keeps
// consuming session events meanwhile.
func (h *headless) readCommands(ctx context.Context, in io.Reader, cmds chan<- string) {
	defer close(cmds)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "":
		case cmd == "WAIT_AUDIO_DONE":
			if h.audioDone != nil {
				select {
				case <-h.audioDone():
				case <-ctx.Done():
					return
				}
			}
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
		default:
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *headless) exec(ctx context.Context, cmd string, events chan<- any) {
	verb, arg, _ := strings.Cut(cmd, " ")
	switch verb {
	case "OPEN":
		// the dialog always exists here; report the state it opens in
		fmt.Fprintf(h.out, "OPEN %s\n", composer.ModeName(h.c.Mode()))
	case "TYPE":
		if _, ok := h.c.Mode().(composer.Onboarding); ok {
			h.c.StartEditing()
		}
		h.c.Edit(h.c.Draft() + arg)
	case "CLEAR":
		h.c.Edit("")
	case "RECORD":
		if err := h.c.StartDictation(ctx); err != nil {
			fmt.Fprintf(h.out, "ERROR %v\n", err)
			return
		}
		go pump(ctx, h.c.Session(), events)
	case "STOP":
		h.c.StopDictation()
	case "SUBMIT":
		if !h.c.Submit() {
			fmt.Fprintln(h.out, "EMPTY")
		}
	case "CANCEL":
		h.c.Cancel()
	default:
		fmt.Fprintf(h.out, "ERROR unknown command %q\n", cmd)
	}
}

// pump forwards every event of sess, then its end, into events.
func pump(ctx context.Context, sess speech.Session, events chan<- any) {
	wait := waitForSessionEvent(sess)
	for {
		msg := wait()
		select {
		case events <- msg:
		case <-ctx.Done():
			return
		}
		if _, end := msg.(sessionEndMsg); end {
			return
		}
	}
}

func (h *headless) report() {
	if mode := composer.ModeName(h.c.Mode()); mode != h.mode {
		h.mode = mode
		fmt.Fprintf(h.out, "MODE %s\n", mode)
	}
	if d := h.c.Draft(); d != h.draft {
		h.draft = d
		fmt.Fprintf(h.out, "DRAFT %s\n", strconv.Quote(d))
	}
}
