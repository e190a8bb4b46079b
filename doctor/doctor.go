// Package doctor runs interactive checks of everything dictation needs.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"notecard/audio"
	"notecard/clipboard"
	"notecard/composer"
	"notecard/speech"
)

type Options struct {
	Capability speech.Capability
	OpenAudio  func() (audio.Context, error)
	DeviceName string
	Locale     string

	MicDuration    time.Duration // default 3s
	ListenDuration time.Duration // default 5s

	In  io.Reader // default os.Stdin
	Out io.Writer // default os.Stdout
}

type doctor struct {
	opts Options
	in   *bufio.Reader
	out  io.Writer
}

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	saveTerminal()
	defer resetTerminal()
	setupInterruptHandler()

	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.OpenAudio == nil {
		opts.OpenAudio = audio.NewContext
	}
	if opts.Capability == nil {
		opts.Capability = speech.Unavailable
	}
	if opts.MicDuration == 0 {
		opts.MicDuration = 3 * time.Second
	}
	if opts.ListenDuration == 0 {
		opts.ListenDuration = 5 * time.Second
	}
	d := &doctor{opts: opts, in: bufio.NewReader(opts.In), out: opts.Out}

	fmt.Fprintln(d.out, "notecard doctor - interactive system diagnostics")
	fmt.Fprintln(d.out, "================================================")

	allPass := d.checkCapability()
	if !d.checkMicrophone() {
		allPass = false
	}
	if allPass && !d.checkDictation() {
		allPass = false
	}
	if !d.checkClipboard() {
		allPass = false
	}

	fmt.Fprintln(d.out)
	if allPass {
		fmt.Fprintln(d.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(d.out, "Some checks failed. See details above.")
	return 1
}

func (d *doctor) pass(format string, args ...any) bool {
	fmt.Fprintf(d.out, "  PASS: "+format+"\n", args...)
	return true
}

func (d *doctor) fail(format string, args ...any) bool {
	fmt.Fprintf(d.out, "  FAIL: "+format+"\n", args...)
	return false
}

func (d *doctor) ask(prompt string) string {
	fmt.Fprint(d.out, prompt)
	line, _ := d.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (d *doctor) confirm(prompt string) bool {
	a := strings.ToLower(d.ask(prompt + " [y/n]: "))
	return a == "y" || a == "yes"
}

func (d *doctor) checkCapability() bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[1/4] Speech recognition")

	rec, err := d.opts.Capability.Lookup()
	if err != nil {
		return d.fail("%v", err)
	}
	return d.pass("%s recognizer available", rec.Name())
}

func (d *doctor) checkMicrophone() bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[2/4] Microphone")

	actx, err := d.opts.OpenAudio()
	if err != nil {
		return d.fail("cannot connect to audio: %v", err)
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		return d.fail("cannot list devices: %v", err)
	}
	if len(devices) == 0 {
		return d.fail("no capture devices found")
	}

	device := audio.FindDevice(actx, d.opts.DeviceName)
	if device == nil && len(devices) > 1 {
		fmt.Fprintln(d.out, "Select input device:")
		for i, dev := range devices {
			fmt.Fprintf(d.out, "  %d. %s\n", i+1, dev.Name)
		}
		idx := 1
		if choice := d.ask(fmt.Sprintf("Choice [1-%d]: ", len(devices))); choice != "" {
			fmt.Sscanf(choice, "%d", &idx)
		}
		if idx < 1 || idx > len(devices) {
			return d.fail("invalid choice")
		}
		device = &devices[idx-1]
	}
	name := "system default"
	if device != nil {
		name = device.Name
	}
	fmt.Fprintf(d.out, "Using device: %s\n", name)
	if audio.IsBluetooth(name) {
		fmt.Fprintln(d.out, "  Note: bluetooth headsets switch to a low-quality profile while recording")
	}

	fmt.Fprintf(d.out, "Speak for %s...\n", d.opts.MicDuration)
	bytes, peak, err := measure(actx, device, d.opts.MicDuration)
	if err != nil {
		return d.fail("recording error: %v", err)
	}
	if bytes == 0 {
		return d.fail("no audio captured")
	}
	if peak < 0.02 {
		fmt.Fprintf(d.out, "  Warning: very low input level (peak %.3f); check mute and gain\n", peak)
	}
	return d.pass("captured %.1f KB, peak level %.3f", float64(bytes)/1024, peak)
}

// measure captures for dur and returns the byte count and peak RMS level.
func measure(actx audio.Context, device *audio.DeviceInfo, dur time.Duration) (int, float64, error) {
	capture, err := actx.NewCapture(device, audio.DefaultCaptureConfig())
	if err != nil {
		return 0, 0, err
	}
	defer capture.Close()

	var mu sync.Mutex
	total, peak := 0, 0.0
	capture.SetCallback(func(pcm []byte, _ uint32) {
		lvl := audio.Level(pcm)
		mu.Lock()
		total += len(pcm)
		peak = max(peak, lvl)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		return 0, 0, err
	}
	time.Sleep(dur)
	capture.Stop()
	capture.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	return total, peak, nil
}

// checkDictation runs one real composer dictation round trip.
func (d *doctor) checkDictation() bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[3/4] Live dictation")

	var created string
	c := composer.New(func(s string) { created = s }, d.opts.Capability, composer.WithLocale(d.opts.Locale))
	defer c.Close()

	if d.ask("Press Enter and speak a short sentence...") == "q" {
		return d.fail("skipped")
	}
	if err := c.StartDictation(context.Background()); err != nil {
		return d.fail("could not start dictation: %v", err)
	}
	sess := c.Session()

	deadline := time.After(d.opts.ListenDuration)
listen:
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				break listen
			}
			if ev.IsError() {
				fmt.Fprintf(d.out, "  recognizer: %v\n", ev.Err)
				continue
			}
			if c.HandleEvent(sess, ev) {
				fmt.Fprintf(d.out, "\r  > %s", c.Draft())
			}
		case <-deadline:
			break listen
		}
	}
	fmt.Fprintln(d.out)
	c.StopDictation()

	text := c.Draft()
	if text == "" {
		return d.fail("no speech recognized")
	}
	fmt.Fprintf(d.out, "\n  Transcribed text: %s\n\n", text)
	if !d.confirm("Is this correct?") {
		return d.fail("transcription not confirmed")
	}
	if !c.Submit() || created != text {
		return d.fail("note was not created")
	}
	return d.pass("transcription verified by user")
}

func (d *doctor) checkClipboard() bool {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "[4/4] Clipboard")

	if !clipboard.Available() {
		return d.fail("%v", clipboard.ErrUnavailable)
	}
	prev, _ := clipboard.Read()
	defer clipboard.Copy(prev)

	const sentinel = "notecard-doctor-check"
	if err := clipboard.Copy(sentinel); err != nil {
		return d.fail("%v", err)
	}
	got, err := clipboard.Read()
	if err != nil {
		return d.fail("%v", err)
	}
	if got != sentinel {
		return d.fail("read back %q, want %q", got, sentinel)
	}
	return d.pass("copy and read back verified")
}
