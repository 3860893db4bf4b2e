package voice

import (
	"sync"
	"time"
)

// DefaultVoiceThreshold is the average spectrum magnitude (0..255) above which
// a frame counts as voice.
const DefaultVoiceThreshold = 30

// DefaultSilenceTimeout is how long the candidate must be silent before a
// turn-based recording is stopped and sent.
const DefaultSilenceTimeout = 2000 * time.Millisecond

// Decision is the action the monitor asks the session to take after a sample.
type Decision int

const (
	// DecisionNone means nothing changes.
	DecisionNone Decision = iota
	// DecisionStopAndSend means recording stopped; hand the buffer to the transport.
	DecisionStopAndSend
	// DecisionRestart means the silence timeout fired on an empty buffer;
	// restart capture instead of sending nothing.
	DecisionRestart
	// DecisionBargeIn means the candidate spoke over agent audio; cancel
	// playback and give the turn to the candidate.
	DecisionBargeIn
)

// String returns a human-readable decision.
func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionStopAndSend:
		return "stop_and_send"
	case DecisionRestart:
		return "restart"
	case DecisionBargeIn:
		return "barge_in"
	default:
		return "unknown"
	}
}

// MonitorConfig configures the Voice Activity Monitor.
type MonitorConfig struct {
	// Threshold is the level above which a sample counts as voice.
	Threshold float64
	// SilenceTimeout is the silence duration that ends a recording.
	SilenceTimeout time.Duration
	// AutoStop enables auto-stop-on-silence. Only the turn-based path uses
	// it; the streaming path leaves end-of-turn detection to the agent.
	AutoStop bool
}

// DefaultMonitorConfig returns the default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Threshold:      DefaultVoiceThreshold,
		SilenceTimeout: DefaultSilenceTimeout,
	}
}

// State is a snapshot of the voice activity state.
type State struct {
	LastVoiceActivity time.Time
	Recording         bool
	PlayingAgentAudio bool
	// Suppressed is set after a barge-in until the interrupted agent turn ends.
	Suppressed bool
}

// Monitor tracks voice activity and owns the recording/playing flags.
// Recording and PlayingAgentAudio are never both true.
// All methods are safe for concurrent use.
type Monitor struct {
	mu    sync.Mutex
	cfg   MonitorConfig
	state State
}

// NewMonitor returns a Monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultVoiceThreshold
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultSilenceTimeout
	}
	return &Monitor{cfg: cfg}
}

// SetAutoStop switches auto-stop-on-silence on or off.
func (m *Monitor) SetAutoStop(on bool) {
	m.mu.Lock()
	m.cfg.AutoStop = on
	m.mu.Unlock()
}

// Sample feeds one amplitude level taken at now. buffered is the number of
// captured frames worth sending; zero makes a silence timeout restart the
// capture instead of stopping it.
func (m *Monitor) Sample(level float64, buffered int, now time.Time) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	voice := level > m.cfg.Threshold
	if voice {
		m.state.LastVoiceActivity = now
	}

	if m.state.PlayingAgentAudio {
		if !voice {
			return DecisionNone
		}
		m.state.PlayingAgentAudio = false
		m.state.Suppressed = true
		return DecisionBargeIn
	}

	if !m.state.Recording || !m.cfg.AutoStop {
		return DecisionNone
	}
	if now.Sub(m.state.LastVoiceActivity) <= m.cfg.SilenceTimeout {
		return DecisionNone
	}
	if buffered == 0 {
		m.state.LastVoiceActivity = now
		return DecisionRestart
	}
	m.state.Recording = false
	return DecisionStopAndSend
}

// StartRecording marks recording active and resets the silence clock.
// It refuses while agent audio is playing.
func (m *Monitor) StartRecording(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.PlayingAgentAudio {
		return false
	}
	m.state.Recording = true
	m.state.LastVoiceActivity = now
	return true
}

// StopRecording marks recording inactive. It reports whether recording was
// active.
func (m *Monitor) StopRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.state.Recording
	m.state.Recording = false
	return was
}

// BeginPlayback marks agent audio as playing and stops recording. It returns
// false when audio for the current agent turn is suppressed by a barge-in.
func (m *Monitor) BeginPlayback() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Suppressed {
		return false
	}
	m.state.Recording = false
	m.state.PlayingAgentAudio = true
	return true
}

// PlaybackFinished marks agent audio as no longer playing. It reports whether
// the session is ready to resume recording, which is false when playback had
// already been interrupted.
func (m *Monitor) PlaybackFinished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.state.PlayingAgentAudio
	m.state.PlayingAgentAudio = false
	return was
}

// EndAgentTurn clears barge-in suppression once the interrupted turn is over.
func (m *Monitor) EndAgentTurn() {
	m.mu.Lock()
	m.state.Suppressed = false
	m.mu.Unlock()
}

// Reset clears all state.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()
}

// State returns a snapshot of the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
