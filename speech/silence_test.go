package speech

import "testing"

func feedN(m *silenceMonitor, speech bool, n int) silenceEvent {
	var last silenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := newSilenceMonitor()
	// 79 ticks of silence: no warning yet
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != silenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	if ev := m.Tick(false); ev != silenceWarn {
		t.Fatalf("expected silenceWarn at tick 80, got %d", ev)
	}
}

func TestSilenceWarnsOnce(t *testing.T) {
	m := newSilenceMonitor()
	feedN(m, false, 80)
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev != silenceNone {
			t.Fatalf("unexpected event %d at tick %d after warning", ev, 80+i)
		}
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := newSilenceMonitor()
	feedN(m, false, 80)

	// need 25% of the 80-tick window
	for i := 0; i < 80; i++ {
		if m.Tick(true) == silenceWarnClear {
			return
		}
	}
	t.Fatal("expected silenceWarnClear after speech")
}

func TestNoWarnDuringSpeech(t *testing.T) {
	m := newSilenceMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == silenceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestSparseSpeechAvoidsWarn(t *testing.T) {
	m := newSilenceMonitor()
	// one speech tick in every five keeps the ratio at 20%
	for i := 0; i < 300; i++ {
		if ev := m.Tick(i%5 == 0); ev == silenceWarn {
			t.Fatalf("unexpected warn at tick %d", i)
		}
	}
}
