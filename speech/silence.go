package speech

import "time"

const (
	tickInterval     = 100 * time.Millisecond
	silenceWarnAfter = 8 * time.Second
	speechLevel      = 0.02 // RMS above this counts as voice for a tick
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type silenceEvent int

const (
	silenceNone      silenceEvent = iota
	silenceWarn                   // no voice in the last window
	silenceWarnClear              // speech resumed after a warning
)

// silenceMonitor watches a sliding window of per-tick speech flags.
// Dictation has no timeout, so the monitor only ever warns.
type silenceMonitor struct {
	windowSz int
	window   []bool
	ticks    int
	warned   bool
}

func newSilenceMonitor() *silenceMonitor {
	return newSilenceMonitorWindow(silenceWarnAfter, tickInterval)
}

// newSilenceMonitorWindow warns after roughly `after` of silence sampled every tick.
func newSilenceMonitorWindow(after, tick time.Duration) *silenceMonitor {
	n := max(int(after/tick), 1)
	return &silenceMonitor{windowSz: n, window: make([]bool, n)}
}

func (m *silenceMonitor) ratio() float64 {
	n := min(m.ticks, m.windowSz)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) silenceEvent {
	m.window[m.ticks%m.windowSz] = hasSpeech
	m.ticks++

	r := m.ratio()
	if m.ticks >= m.windowSz && r < speechMinRatio && !m.warned {
		m.warned = true
		return silenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return silenceWarnClear
	}
	return silenceNone
}
