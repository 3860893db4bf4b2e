package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/interview/ending"
	"github.com/haivivi/interviewer/pkg/interview/transport"
	"github.com/haivivi/interviewer/pkg/realtime"
	"github.com/haivivi/interviewer/pkg/voice"
)

// Streaming is the realtime transport. *transport.Streaming implements it.
type Streaming interface {
	Connect(ctx context.Context, stage interview.Stage, sessionID string) (<-chan realtime.Event, error)
	SendAudio(pcm []byte) error
	SendText(text string) error
	RequestResponse() error
	FallbackRequired() <-chan error
	Close() error
}

// Fallback is the turn-based transport. *transport.Fallback implements it.
type Fallback interface {
	Begin(ctx context.Context, stage interview.Stage, sessionID string) (*transport.BeginResult, error)
	Turn(ctx context.Context, audio []byte, tc transport.TurnContext) (*transport.TurnResult, error)
}

// Defaults.
const (
	DefaultStatusInterval  = time.Second
	DefaultMaxTurnFailures = 3
)

// Config configures an Engine.
type Config struct {
	User  string
	Stage interview.Stage

	Manager *interview.Manager
	Device  voice.Device

	// Streaming is tried first. Nil means fallback only.
	Streaming Streaming
	Fallback  Fallback

	Audio    voice.AdapterConfig
	Monitor  voice.MonitorConfig
	Analyser voice.AnalyserConfig

	// Level overrides the analyser as the amplitude meter.
	Level func(frame []float32) float64

	Ending      ending.Evaluator
	GracePeriod time.Duration

	// StatusInterval is the period of OnStatus updates.
	StatusInterval time.Duration

	// MaxTurnFailures ends the interview after this many consecutive
	// failed fallback turns.
	MaxTurnFailures int

	// OnStatus is called from the engine goroutine; it must not block.
	OnStatus func(Status)
	// OnUtterance is called for every finalized utterance; it must not block.
	OnUtterance func(interview.Utterance)

	Now    func() time.Time
	Logger *slog.Logger
}

// DefaultConfig returns a Config with every tunable at its default. The
// caller fills in the session and collaborators.
func DefaultConfig() Config {
	return Config{
		Stage:           interview.StagePhoneScreen,
		Audio:           voice.DefaultAdapterConfig(),
		Monitor:         voice.DefaultMonitorConfig(),
		Analyser:        voice.DefaultAnalyserConfig(),
		Ending:          ending.Default(),
		GracePeriod:     ending.GracePeriod,
		StatusInterval:  DefaultStatusInterval,
		MaxTurnFailures: DefaultMaxTurnFailures,
	}
}

func (c *Config) validate() error {
	switch {
	case c.Manager == nil:
		return errors.New("engine: Manager is required")
	case c.Device == nil:
		return errors.New("engine: Device is required")
	case c.Fallback == nil:
		return errors.New("engine: Fallback is required")
	}
	if c.Ending == nil {
		c.Ending = ending.Default()
	}
	if c.GracePeriod < 0 {
		c.GracePeriod = 0
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.MaxTurnFailures <= 0 {
		c.MaxTurnFailures = DefaultMaxTurnFailures
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
