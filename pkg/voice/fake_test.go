package voice

import (
	"errors"
	"sync"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
)

var errFakeClosed = errors.New("fake: closed")

type fakeMic struct {
	frames    chan []float32
	closeOnce sync.Once
	done      chan struct{}
}

func newFakeMic() *fakeMic {
	return &fakeMic{frames: make(chan []float32, 64), done: make(chan struct{})}
}

func (m *fakeMic) ReadFrame() ([]float32, error) {
	select {
	case f := <-m.frames:
		return f, nil
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
	written []byte
	aborts  int
	closed  bool
	// gate, when set, blocks each Write until a value is received.
	gate chan struct{}
	err  error
}

func (s *fakeSpeaker) Write(data []byte) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.written = append(s.written, data...)
	return nil
}

func (s *fakeSpeaker) Abort() error {
	s.mu.Lock()
	s.aborts++
	s.mu.Unlock()
	return nil
}

func (s *fakeSpeaker) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSpeaker) bytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

type fakeDevice struct {
	mic     *fakeMic
	speaker *fakeSpeaker
	micErr  error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{mic: newFakeMic(), speaker: &fakeSpeaker{}}
}

func (d *fakeDevice) OpenMicrophone(pcm.Format, int) (Microphone, error) {
	if d.micErr != nil {
		return nil, d.micErr
	}
	return d.mic, nil
}

func (d *fakeDevice) OpenSpeaker(pcm.Format) (Speaker, error) {
	return d.speaker, nil
}
