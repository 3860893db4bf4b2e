package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/interview/transport"
	"github.com/haivivi/interviewer/pkg/realtime"
	"github.com/haivivi/interviewer/pkg/voice"
)

var errFakeClosed = errors.New("fake: closed")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// micFrame is one scripted microphone frame: its amplitude level and the
// clock reading at which it is captured.
type micFrame struct {
	level float32
	at    time.Duration
}

type fakeMic struct {
	clock *fakeClock
	base  time.Time

	frames    chan micFrame
	done      chan struct{}
	closeOnce sync.Once
}

func (m *fakeMic) ReadFrame() ([]float32, error) {
	select {
	case f := <-m.frames:
		m.clock.Set(m.base.Add(f.at))
		return []float32{f.level}, nil
	case <-m.done:
		return nil, errFakeClosed
	}
}

func (m *fakeMic) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *fakeMic) closed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

type fakeSpeaker struct {
	mu      sync.Mutex
	written int
	aborts  int
	closed  bool

	// hold keeps every Write blocked until the speaker is aborted or closed.
	hold     bool
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *fakeSpeaker) Write(data []byte) error {
	if s.hold {
		<-s.stop
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written += len(data)
	return nil
}

func (s *fakeSpeaker) Abort() error {
	s.mu.Lock()
	s.aborts++
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *fakeSpeaker) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *fakeSpeaker) abortCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborts
}

func (s *fakeSpeaker) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDevice struct {
	mic     *fakeMic
	speaker *fakeSpeaker
	micErr  error
}

func newFakeDevice(clock *fakeClock) *fakeDevice {
	return &fakeDevice{
		mic: &fakeMic{
			clock:  clock,
			base:   clock.Now(),
			frames: make(chan micFrame, 64),
			done:   make(chan struct{}),
		},
		speaker: &fakeSpeaker{stop: make(chan struct{})},
	}
}

func (d *fakeDevice) OpenMicrophone(pcm.Format, int) (voice.Microphone, error) {
	if d.micErr != nil {
		return nil, d.micErr
	}
	return d.mic, nil
}

func (d *fakeDevice) OpenSpeaker(pcm.Format) (voice.Speaker, error) {
	return d.speaker, nil
}

// fakeStreaming behaves like transport.Streaming: a connect failure is also
// reported on FallbackRequired.
type fakeStreaming struct {
	connectErr error

	events   chan realtime.Event
	fallback chan error

	mu        sync.Mutex
	sessionID string
	texts     []string
	responses int
	audio     int
	closed    bool
}

func newFakeStreaming() *fakeStreaming {
	return &fakeStreaming{
		events:   make(chan realtime.Event, 16),
		fallback: make(chan error, 1),
	}
}

func (s *fakeStreaming) Connect(_ context.Context, _ interview.Stage, sessionID string) (<-chan realtime.Event, error) {
	s.mu.Lock()
	s.sessionID = sessionID
	s.mu.Unlock()
	if s.connectErr != nil {
		s.fallback <- s.connectErr
		return nil, s.connectErr
	}
	return s.events, nil
}

func (s *fakeStreaming) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return realtime.ErrClosed
	}
	s.audio += len(pcm)
	return nil
}

func (s *fakeStreaming) SendText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return realtime.ErrClosed
	}
	s.texts = append(s.texts, text)
	s.responses++
	return nil
}

func (s *fakeStreaming) RequestResponse() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses++
	return nil
}

func (s *fakeStreaming) FallbackRequired() <-chan error {
	return s.fallback
}

func (s *fakeStreaming) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStreaming) id() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *fakeStreaming) sentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *fakeStreaming) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// drop simulates an unexpected disconnect.
func (s *fakeStreaming) drop(err error) {
	s.fallback <- err
	close(s.events)
}

type turnCall struct {
	audio []byte
	tc    transport.TurnContext
	reply chan turnReply
}

type turnReply struct {
	res *transport.TurnResult
	err error
}

type fakeFallback struct {
	begin    *transport.BeginResult
	beginErr error

	mu         sync.Mutex
	beginCalls []string

	turns chan turnCall
}

func newFakeFallback(begin *transport.BeginResult) *fakeFallback {
	return &fakeFallback{begin: begin, turns: make(chan turnCall)}
}

func (f *fakeFallback) Begin(_ context.Context, _ interview.Stage, sessionID string) (*transport.BeginResult, error) {
	f.mu.Lock()
	f.beginCalls = append(f.beginCalls, sessionID)
	f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.begin, nil
}

func (f *fakeFallback) Turn(ctx context.Context, audio []byte, tc transport.TurnContext) (*transport.TurnResult, error) {
	call := turnCall{audio: audio, tc: tc, reply: make(chan turnReply, 1)}
	select {
	case f.turns <- call:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-call.reply:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeFallback) begins() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.beginCalls...)
}

// syncBuffer is a log sink safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
