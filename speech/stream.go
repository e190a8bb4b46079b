package speech

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"notecard/audio"
	"notecard/log"
)

const (
	streamChunkMs    = 200
	streamChunkBytes = audio.BytesPerSecond * streamChunkMs / 1000
	streamStopWait   = 2 * time.Second
)

// rawStream is one provider connection: PCM goes out, updates come back.
type rawStream interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Alternatives []Alternative
	IsFinal      bool
	SpeechFinal  bool
	Control      bool // metadata / VAD notices carrying no transcript
}

type streamStats struct {
	ConnectDur   time.Duration
	SentChunks   int
	SentBytes    uint64
	Dropped      int
	RecvMessages int
	RecvFinal    int
	RecvInterim  int
}

// streamSession glues a capture device to a rawStream. The connection is
// dialed in the background so capture starts immediately; audio captured
// before the dial completes is queued.
type streamSession struct {
	provider string
	cfg      Config
	capture  audio.CaptureDevice
	dial     func(ctx context.Context) (rawStream, error)

	ctx    context.Context
	cancel context.CancelFunc

	events    chan Event
	audioCh   chan []byte
	stopCh    chan struct{}
	connected chan struct{}
	sendDone  chan struct{}
	recvDone  chan struct{}
	tickDone  chan struct{}
	startedAt time.Time

	tick         time.Duration // level sampling period
	silenceAfter time.Duration // silence before ErrNoSpeech

	feedMu      sync.Mutex
	feedBuf     []byte
	audioClosed bool

	level atomic.Uint64 // float64 bits, smoothed
	peak  atomic.Uint64 // float64 bits, max since last tick

	// emitMu keeps Stop from closing events while a send is in flight.
	emitMu sync.RWMutex

	mu      sync.Mutex
	raw     rawStream
	book    segmentBook
	stopped bool
	errSent bool
	stats   streamStats

	stopOnce sync.Once
}

func newStreamSession(ctx context.Context, provider string, cfg Config, capture audio.CaptureDevice,
	dial func(ctx context.Context) (rawStream, error)) *streamSession {
	sctx, cancel := context.WithCancel(ctx)
	return &streamSession{
		provider:  provider,
		cfg:       cfg,
		capture:   capture,
		dial:      dial,
		ctx:       sctx,
		cancel:    cancel,
		events:    make(chan Event, 16),
		audioCh:   make(chan []byte, 128),
		stopCh:    make(chan struct{}),
		connected: make(chan struct{}),
		sendDone:  make(chan struct{}),
		recvDone:  make(chan struct{}),
		tickDone:  make(chan struct{}),
		startedAt: time.Now(),

		tick:         tickInterval,
		silenceAfter: silenceWarnAfter,
	}
}

// start begins capturing and dialing. On error nothing is left running.
func (s *streamSession) start() error {
	s.capture.SetCallback(s.feed)
	if err := s.capture.Start(); err != nil {
		s.capture.ClearCallback()
		s.cancel()
		return fmt.Errorf("starting capture: %w", err)
	}

	go s.connect()
	go s.watchSilence()
	return nil
}

func (s *streamSession) connect() {
	defer close(s.connected)

	connectStart := time.Now()
	raw, err := s.dial(s.ctx)

	s.mu.Lock()
	s.stats.ConnectDur = time.Since(connectStart)
	stopped := s.stopped
	if err == nil && !stopped {
		s.raw = raw
	}
	s.mu.Unlock()

	if err != nil || stopped {
		if err == nil {
			raw.Close()
		} else if !stopped {
			s.emitErr(fmt.Errorf("connecting to %s: %w", s.provider, err))
		}
		close(s.sendDone)
		close(s.recvDone)
		return
	}

	go s.runSender(raw)
	go s.runReceiver(raw)
}

func (s *streamSession) Events() <-chan Event { return s.events }

// DeviceName reports the microphone feeding the session.
func (s *streamSession) DeviceName() string { return s.capture.DeviceName() }

func (s *streamSession) Level() float64 {
	return math.Float64frombits(s.level.Load())
}

// feed runs on the capture thread.
func (s *streamSession) feed(pcm []byte, _ uint32) {
	lvl := audio.Level(pcm)
	prev := math.Float64frombits(s.level.Load())
	s.level.Store(math.Float64bits(prev*0.6 + lvl*0.4))
	for {
		old := s.peak.Load()
		if lvl <= math.Float64frombits(old) || s.peak.CompareAndSwap(old, math.Float64bits(lvl)) {
			break
		}
	}

	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.audioClosed {
		return
	}
	s.feedBuf = append(s.feedBuf, pcm...)
	for len(s.feedBuf) >= streamChunkBytes {
		chunk := make([]byte, streamChunkBytes)
		copy(chunk, s.feedBuf[:streamChunkBytes])
		s.feedBuf = s.feedBuf[streamChunkBytes:]
		select {
		case s.audioCh <- chunk:
		default:
			s.mu.Lock()
			s.stats.Dropped++
			s.mu.Unlock()
		}
	}
}

func (s *streamSession) watchSilence() {
	defer close(s.tickDone)
	mon := newSilenceMonitorWindow(s.silenceAfter, s.tick)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			peak := math.Float64frombits(s.peak.Swap(0))
			switch mon.Tick(peak >= speechLevel) {
			case silenceWarn:
				s.emitErr(ErrNoSpeech)
			case silenceWarnClear:
				log.Info("speech_resumed")
			}
		}
	}
}

func (s *streamSession) runSender(raw rawStream) {
	defer close(s.sendDone)
	for chunk := range s.audioCh {
		if err := raw.Send(chunk); err != nil {
			s.fail(fmt.Errorf("sending audio: %w", err))
			// keep draining so feed never backs up
			for range s.audioCh {
			}
			return
		}
		s.mu.Lock()
		s.stats.SentChunks++
		s.stats.SentBytes += uint64(len(chunk))
		s.mu.Unlock()
	}
	if err := raw.CloseSend(); err != nil {
		log.Debug(fmt.Sprintf("close send: %v", err))
	}
}

func (s *streamSession) runReceiver(raw rawStream) {
	defer close(s.recvDone)
	for {
		update, err := raw.Recv()
		if err != nil {
			s.fail(fmt.Errorf("receiving results: %w", err))
			return
		}
		if update.Control {
			continue
		}

		s.mu.Lock()
		s.stats.RecvMessages++
		if update.IsFinal {
			s.stats.RecvFinal++
		} else {
			s.stats.RecvInterim++
		}
		changed := s.book.apply(update)
		results := s.book.snapshot()
		s.mu.Unlock()

		if changed {
			s.emit(Event{Results: results})
		}
		if update.SpeechFinal && !s.cfg.Continuous {
			go s.Stop()
			return
		}
	}
}

// emit delivers ev unless the session has been stopped.
func (s *streamSession) emit(ev Event) {
	s.emitMu.RLock()
	defer s.emitMu.RUnlock()
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	select {
	case s.events <- ev:
	case <-s.stopCh:
	}
}

// emitErr delivers the session's single error event. Later errors are only logged.
func (s *streamSession) emitErr(err error) {
	s.mu.Lock()
	if s.errSent || s.stopped {
		s.mu.Unlock()
		log.Warnf("%s: suppressed error: %v", s.provider, err)
		return
	}
	s.errSent = true
	s.mu.Unlock()
	s.emit(Event{Err: err})
}

// fail reports a transport error unless it was caused by Stop.
func (s *streamSession) fail(err error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if !stopped {
		s.emitErr(err)
	}
}

// Stop ends capture, closes the connection and closes Events. Any event not
// yet consumed when Stop is called is discarded.
func (s *streamSession) Stop() error {
	s.stopOnce.Do(s.stop)
	return nil
}

func (s *streamSession) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	close(s.stopCh)

	s.capture.Stop()
	s.capture.ClearCallback()
	s.capture.Close()
	<-s.tickDone

	s.feedMu.Lock()
	if tail := s.feedBuf; len(tail) > 0 {
		select {
		case s.audioCh <- tail:
		default:
		}
	}
	s.feedBuf = nil
	s.audioClosed = true
	close(s.audioCh)
	s.feedMu.Unlock()

	select {
	case <-s.connected:
	default:
		// still dialing: nothing to flush
		s.cancel()
		<-s.connected
	}

	select {
	case <-s.sendDone:
	case <-time.After(streamStopWait):
		log.Warn("stream sender drain timeout")
	}

	s.mu.Lock()
	raw := s.raw
	s.mu.Unlock()
	s.cancel()
	if raw != nil {
		raw.Close()
	}

	select {
	case <-s.recvDone:
	case <-time.After(streamStopWait):
		log.Warn("stream receiver drain timeout")
	}

	s.emitMu.Lock()
	for {
		select {
		case <-s.events:
			continue
		default:
		}
		break
	}
	close(s.events)
	s.emitMu.Unlock()

	s.logMetrics()
}

func (s *streamSession) logMetrics() {
	s.mu.Lock()
	st := s.stats
	segments := s.book.finals()
	s.mu.Unlock()

	if st.Dropped > 0 {
		log.Warnf("%s: dropped %d audio chunks", s.provider, st.Dropped)
	}
	log.StreamMetrics(log.StreamMetricsData{
		ConnectMs:    float64(st.ConnectDur.Milliseconds()),
		TotalMs:      float64(time.Since(s.startedAt).Milliseconds()),
		AudioS:       float64(st.SentBytes) / audio.BytesPerSecond,
		SentChunks:   st.SentChunks,
		SentKB:       float64(st.SentBytes) / 1024,
		RecvMessages: st.RecvMessages,
		RecvFinal:    st.RecvFinal,
		RecvInterim:  st.RecvInterim,
		Segments:     segments,
	})
}
