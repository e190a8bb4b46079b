package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"notecard/audio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRaw struct {
	updates chan streamUpdate
	closed  chan struct{}
	sendErr error
	recvErr error

	mu        sync.Mutex
	sent      int
	closeSend bool
	closeOnce sync.Once
}

func newFakeRaw() *fakeRaw {
	return &fakeRaw{updates: make(chan streamUpdate, 16), closed: make(chan struct{})}
}

func (f *fakeRaw) Send(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent += len(pcm)
	return nil
}

func (f *fakeRaw) CloseSend() error {
	f.mu.Lock()
	f.closeSend = true
	f.mu.Unlock()
	return nil
}

func (f *fakeRaw) Recv() (streamUpdate, error) {
	if f.recvErr != nil {
		return streamUpdate{}, f.recvErr
	}
	select {
	case u := <-f.updates:
		return u, nil
	case <-f.closed:
		return streamUpdate{}, errors.New("use of closed connection")
	}
}

func (f *fakeRaw) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeRaw) sentBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

func newTestCapture(t *testing.T, seconds float64) audio.CaptureDevice {
	t.Helper()
	pcm := make([]byte, int(seconds*audio.BytesPerSecond))
	for i := 0; i+1 < len(pcm); i += 2 {
		// square wave, loud enough to count as speech
		if (i/64)%2 == 0 {
			pcm[i], pcm[i+1] = 0x00, 0x40
		} else {
			pcm[i], pcm[i+1] = 0x00, 0xc0
		}
	}
	capture, err := audio.NewFakeContextPCM(pcm, false).NewCapture(nil, audio.DefaultCaptureConfig())
	require.NoError(t, err)
	return capture
}

func startStream(t *testing.T, cfg Config, raw rawStream, dialErr error) *streamSession {
	t.Helper()
	s := newStreamSession(context.Background(), "test", cfg, newTestCapture(t, 1), func(context.Context) (rawStream, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return raw, nil
	})
	require.NoError(t, s.start())
	t.Cleanup(func() { s.Stop() })
	return s
}

func nextEvent(t *testing.T, s Session) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func waitClosed(t *testing.T, s Session) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-s.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events never closed")
		}
	}
}

var continuous = Config{Locale: "pt-BR", Continuous: true, InterimResults: true, MaxAlternatives: 1}

func TestStreamResultsAccumulate(t *testing.T) {
	raw := newFakeRaw()
	s := startStream(t, continuous, raw, nil)

	raw.updates <- upd(false, "hello")
	ev := nextEvent(t, s)
	require.False(t, ev.IsError())
	assert.Equal(t, []string{"hello"}, bests(ev.Results))
	assert.False(t, ev.Results[0].Final)

	raw.updates <- upd(true, "hello world")
	ev = nextEvent(t, s)
	assert.Equal(t, []string{"hello world"}, bests(ev.Results))
	assert.True(t, ev.Results[0].Final)

	raw.updates <- upd(false, "how are")
	ev = nextEvent(t, s)
	assert.Equal(t, []string{"hello world", " how are"}, bests(ev.Results))

	raw.updates <- streamUpdate{Control: true}
	raw.updates <- upd(false)
	ev = nextEvent(t, s)
	assert.Equal(t, []string{"hello world"}, bests(ev.Results), "empty update drops the open segment")

	require.NoError(t, s.Stop())
	waitClosed(t, s)
}

func TestStreamSendsAudioAndClosesSend(t *testing.T) {
	raw := newFakeRaw()
	s := startStream(t, continuous, raw, nil)

	require.Eventually(t, func() bool { return raw.sentBytes() >= streamChunkBytes }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Stop())
	waitClosed(t, s)

	raw.mu.Lock()
	defer raw.mu.Unlock()
	assert.True(t, raw.closeSend)
}

func TestStreamStopsAfterSpeechFinalWhenNotContinuous(t *testing.T) {
	raw := newFakeRaw()
	cfg := continuous
	cfg.Continuous = false
	s := startStream(t, cfg, raw, nil)

	u := upd(true, "done")
	u.SpeechFinal = true
	raw.updates <- u
	waitClosed(t, s)
}

func TestStreamDialFailureIsOneErrorEvent(t *testing.T) {
	s := startStream(t, continuous, nil, errors.New("refused"))

	ev := nextEvent(t, s)
	require.True(t, ev.IsError())
	assert.ErrorContains(t, ev.Err, "refused")
	assert.ErrorContains(t, ev.Err, "connecting to test")
}

func TestStreamAtMostOneErrorEvent(t *testing.T) {
	raw := newFakeRaw()
	raw.sendErr = errors.New("broken pipe")
	raw.recvErr = errors.New("reset by peer")
	s := startStream(t, continuous, raw, nil)

	ev := nextEvent(t, s)
	require.True(t, ev.IsError())

	// the receiver fails too; its error must be swallowed
	select {
	case <-s.recvDone:
	case <-time.After(3 * time.Second):
		t.Fatal("receiver never exited")
	}

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected second event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, s.Stop())
	for ev := range s.Events() {
		assert.False(t, ev.IsError(), "second error delivered before close: %v", ev.Err)
	}
}

func TestStreamSilenceWarnsOnceAndKeepsRunning(t *testing.T) {
	raw := newFakeRaw()
	capture, err := audio.NewFakeContextPCM(make([]byte, audio.BytesPerSecond), false).
		NewCapture(nil, audio.DefaultCaptureConfig())
	require.NoError(t, err)
	s := newStreamSession(context.Background(), "test", continuous, capture, func(context.Context) (rawStream, error) {
		return raw, nil
	})
	s.tick = 5 * time.Millisecond
	s.silenceAfter = 50 * time.Millisecond
	require.NoError(t, s.start())
	t.Cleanup(func() { s.Stop() })

	ev := nextEvent(t, s)
	require.True(t, ev.IsError())
	assert.ErrorIs(t, ev.Err, ErrNoSpeech)

	// several more silent windows pass without a second warning
	time.Sleep(200 * time.Millisecond)
	raw.updates <- upd(true, "still here")
	ev = nextEvent(t, s)
	require.False(t, ev.IsError(), "got %v", ev.Err)
	assert.Equal(t, []string{"still here"}, bests(ev.Results))

	require.NoError(t, s.Stop())
	waitClosed(t, s)
}

func TestStreamStopIdempotent(t *testing.T) {
	raw := newFakeRaw()
	s := startStream(t, continuous, raw, nil)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	waitClosed(t, s)

	select {
	case <-raw.closed:
	default:
		t.Error("connection not closed on Stop")
	}
}

func TestStreamStopWhileDialing(t *testing.T) {
	s := newStreamSession(context.Background(), "test", continuous, newTestCapture(t, 1), func(ctx context.Context) (rawStream, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, s.start())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a pending dial")
	}
	waitClosed(t, s)
}

func TestStreamNoEventsAfterStop(t *testing.T) {
	raw := newFakeRaw()
	s := startStream(t, continuous, raw, nil)
	require.NoError(t, s.Stop())
	s.emit(Event{Results: []Segment{{Alternatives: []Alternative{{Transcript: "late"}}}}})
	s.emitErr(errors.New("late"))
	waitClosed(t, s)
}
