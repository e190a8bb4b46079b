// Package beep plays the short audio cues for dictation start/stop, note
// creation and warnings.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

const sampleRate = 44100

// Cue identifies one of the audio cues.
type Cue int

const (
	CueStart   Cue = iota // dictation started
	CueStop               // dictation stopped
	CueSuccess            // note created
	CueWarn               // dictation unavailable or failed
)

var (
	cues     map[Cue][]int16
	cuesOnce sync.Once
)

// samples returns the mono PCM for c, rendering every cue on first use.
func samples(c Cue) []int16 {
	cuesOnce.Do(func() {
		cues = map[Cue][]int16{
			CueStart:   tick(1200, 0.2, 0.5, 60),
			CueStop:    tick(900, 0.2, 0.5, 40),
			CueSuccess: join(tick(880, 0.07, 0.45, 35), silence(0.03), tick(1320, 0.12, 0.45, 30)),
			CueWarn:    join(tick(350, 0.08, 0.6, 30), silence(0.05), tick(350, 0.08, 0.6, 30)),
		}
	})
	return cues[c]
}

// tick is an exponentially decaying sine.
func tick(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		out[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return out
}

func silence(duration float64) []int16 {
	return make([]int16, int(float64(sampleRate)*duration))
}

func join(parts ...[]int16) []int16 {
	var out []int16
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// stereo interleaves mono samples into L/R pairs.
func stereo(mono []int16) []int16 {
	out := make([]int16, len(mono)*2)
	for i, s := range mono {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// pcmBytes encodes samples as little-endian PCM16.
func pcmBytes(s []int16) []byte {
	buf := make([]byte, len(s)*2)
	for i, v := range s {
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}
	return buf
}

// Play starts playing c in the background. It never blocks.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	play(samples(c))
}

func PlayStart()   { Play(CueStart) }
func PlayStop()    { Play(CueStop) }
func PlaySuccess() { Play(CueSuccess) }
func PlayWarn()    { Play(CueWarn) }
