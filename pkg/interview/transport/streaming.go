package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/realtime"
)

// ErrNotConnected is returned when sending before Connect succeeded.
var ErrNotConnected = errors.New("transport: streaming not connected")

// Dialer opens realtime connections. *realtime.Client implements it.
type Dialer interface {
	Connect(ctx context.Context) (*realtime.Conn, error)
}

// StreamingConfig describes the one-time configure message.
type StreamingConfig struct {
	// Instructions is the agent persona per stage.
	Instructions map[interview.Stage]string `yaml:"instructions,omitempty"`

	Voice string `yaml:"voice,omitempty"`

	// TranscriptionModel enables candidate transcription when set.
	TranscriptionModel string `yaml:"transcription_model,omitempty"`

	TurnDetection *realtime.TurnDetection `yaml:"turn_detection,omitempty"`

	Temperature *float64 `yaml:"temperature,omitempty"`
}

// DefaultStreamingConfig returns server VAD turn detection with candidate
// transcription enabled.
func DefaultStreamingConfig() StreamingConfig {
	return StreamingConfig{
		Voice:              realtime.VoiceAlloy,
		TranscriptionModel: "whisper-1",
		TurnDetection:      realtime.DefaultTurnDetection(),
	}
}

func (c StreamingConfig) session(stage interview.Stage) *realtime.SessionConfig {
	cfg := &realtime.SessionConfig{
		Modalities:        []string{realtime.ModalityText, realtime.ModalityAudio},
		Instructions:      c.Instructions[stage],
		Voice:             c.Voice,
		InputAudioFormat:  realtime.AudioFormatPCM16,
		OutputAudioFormat: realtime.AudioFormatPCM16,
		TurnDetection:     c.TurnDetection,
		Temperature:       c.Temperature,
	}
	if c.TranscriptionModel != "" {
		cfg.InputAudioTranscription = &realtime.TranscriptionConfig{Model: c.TranscriptionModel}
	}
	return cfg
}

// Streaming is the realtime transport for one session.
//
// It never retries. Authentication failures, unclean closes and agent
// errors that indicate an auth or connection problem are reported once on
// FallbackRequired, after which the event channel closes.
type Streaming struct {
	dialer Dialer
	config StreamingConfig
	logger *slog.Logger

	fallback     chan error
	fallbackOnce sync.Once

	mu     sync.Mutex
	conn   *realtime.Conn
	closed bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewStreaming returns an unconnected Streaming transport.
func NewStreaming(d Dialer, cfg StreamingConfig, logger *slog.Logger) *Streaming {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streaming{
		dialer:   d,
		config:   cfg,
		logger:   logger,
		fallback: make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the agent, sends the configure message and returns the
// inbound event stream. A failure here is a transport error and is also
// reported on FallbackRequired.
func (s *Streaming) Connect(ctx context.Context, stage interview.Stage, sessionID string) (<-chan realtime.Event, error) {
	conn, err := s.dialer.Connect(ctx)
	if err != nil {
		terr := interview.NewError(interview.KindTransport, "connect", err)
		s.requireFallback(terr)
		return nil, terr
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return nil, interview.NewError(interview.KindTransport, "connect", realtime.ErrClosed)
	}
	s.conn = conn
	s.mu.Unlock()

	if err := conn.Configure(s.config.session(stage)); err != nil {
		terr := interview.NewError(interview.KindTransport, "configure", err)
		s.requireFallback(terr)
		conn.Close()
		return nil, terr
	}

	out := make(chan realtime.Event, 64)
	s.wg.Add(1)
	go s.pump(conn, out, sessionID)
	s.logger.Debug("streaming connected", "session_id", sessionID, "stage", stage)
	return out, nil
}

// FallbackRequired delivers at most one error: the reason to switch to the
// fallback transport.
func (s *Streaming) FallbackRequired() <-chan error {
	return s.fallback
}

// SendAudio appends PCM audio to the agent input buffer.
func (s *Streaming) SendAudio(pcm []byte) error {
	conn, err := s.current()
	if err != nil {
		return err
	}
	return conn.AppendAudio(pcm)
}

// SendText submits typed candidate input and asks the agent to respond.
func (s *Streaming) SendText(text string) error {
	conn, err := s.current()
	if err != nil {
		return err
	}
	if err := conn.CreateTextItem(text); err != nil {
		return err
	}
	return conn.RequestResponse()
}

// RequestResponse asks the agent to respond now.
func (s *Streaming) RequestResponse() error {
	conn, err := s.current()
	if err != nil {
		return err
	}
	return conn.RequestResponse()
}

// Close closes the connection and waits for the event pump to stop. It is
// safe to call more than once.
func (s *Streaming) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		conn := s.conn
		s.mu.Unlock()
		close(s.done)
		if conn != nil {
			err = conn.Close()
		}
		s.wg.Wait()
	})
	return err
}

func (s *Streaming) current() (*realtime.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, realtime.ErrClosed
	}
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	return s.conn, nil
}

func (s *Streaming) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Streaming) requireFallback(err error) {
	s.fallbackOnce.Do(func() {
		s.logger.Warn("streaming transport failed, fallback required", "err", err)
		s.fallback <- err
	})
}

func (s *Streaming) pump(conn *realtime.Conn, out chan<- realtime.Event, sessionID string) {
	defer s.wg.Done()
	defer close(out)

	for ev, err := range conn.Events() {
		if err != nil {
			if errors.Is(err, realtime.ErrUnknownEvent) || errors.Is(err, realtime.ErrMalformedEvent) {
				s.logger.Warn("ignoring agent event", "session_id", sessionID,
					"err", interview.NewError(interview.KindProtocol, "read event", err))
				continue
			}
			if s.isClosed() {
				return
			}
			if realtime.IsCleanClose(err) {
				s.logger.Info("agent closed the connection", "session_id", sessionID)
				return
			}
			s.requireFallback(interview.NewError(interview.KindTransport, "read", err))
			return
		}

		if e, ok := ev.(*realtime.ErrorEvent); ok {
			if e.Err.IsAuth() {
				s.requireFallback(interview.NewError(interview.KindTransport, "agent error", e.Err))
				conn.Close()
				return
			}
			s.logger.Warn("agent error", "session_id", sessionID,
				"err", interview.NewError(interview.KindProtocol, "agent error", e.Err))
		}

		select {
		case out <- ev:
		case <-s.done:
			return
		}
	}
}
