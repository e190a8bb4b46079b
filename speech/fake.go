package speech

import (
	"context"
	"sync"
)

// FakeCapability is a Capability for tests. A nil Recognizer means unsupported.
type FakeCapability struct {
	Recognizer Recognizer

	mu      sync.Mutex
	lookups int
}

func (f *FakeCapability) Lookup() (Recognizer, error) {
	f.mu.Lock()
	f.lookups++
	f.mu.Unlock()
	if f.Recognizer == nil {
		return nil, ErrUnsupported
	}
	return f.Recognizer, nil
}

func (f *FakeCapability) Lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

const fakeQueue = 64

// FakeRecognizer hands out FakeSessions and remembers what it was asked for.
type FakeRecognizer struct {
	StartErr error

	mu       sync.Mutex
	configs  []Config
	sessions []*FakeSession
}

func NewFakeRecognizer() *FakeRecognizer { return &FakeRecognizer{} }

func (r *FakeRecognizer) Name() string { return "fake" }

func (r *FakeRecognizer) Start(_ context.Context, cfg Config) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
	if r.StartErr != nil {
		return nil, r.StartErr
	}
	s := &FakeSession{events: make(chan Event, fakeQueue)}
	r.sessions = append(r.sessions, s)
	return s, nil
}

// Last returns the most recently started session, or nil.
func (r *FakeRecognizer) Last() *FakeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) == 0 {
		return nil
	}
	return r.sessions[len(r.sessions)-1]
}

func (r *FakeRecognizer) Sessions() []*FakeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FakeSession(nil), r.sessions...)
}

func (r *FakeRecognizer) Configs() []Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Config(nil), r.configs...)
}

// FakeSession is driven by the test: Emit and Fail queue events, Stop closes
// the stream. Nothing is queued after Stop.
type FakeSession struct {
	mu      sync.Mutex
	events  chan Event
	stops   int
	errSent bool
}

func (s *FakeSession) Events() <-chan Event { return s.events }

// Emit queues a result event and reports whether it was accepted. Events
// are refused after Stop and while the queue is full.
func (s *FakeSession) Emit(results ...Segment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stops > 0 {
		return false
	}
	return s.offer(Event{Results: append([]Segment(nil), results...)})
}

// offer never blocks, so Stop can always take the lock.
func (s *FakeSession) offer(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// EmitText queues a result event with one single-alternative segment per text.
func (s *FakeSession) EmitText(texts ...string) bool {
	segs := make([]Segment, len(texts))
	for i, t := range texts {
		segs[i] = Segment{Alternatives: []Alternative{{Transcript: t, Confidence: 1}}, Final: true}
	}
	return s.Emit(segs...)
}

// Fail queues the session's single error event.
func (s *FakeSession) Fail(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stops > 0 || s.errSent {
		return false
	}
	if !s.offer(Event{Err: err}) {
		return false
	}
	s.errSent = true
	return true
}

func (s *FakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	if s.stops == 1 {
		close(s.events)
	}
	return nil
}

func (s *FakeSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops > 0
}

func (s *FakeSession) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
