package commands

import (
	"fmt"
	"time"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
	"github.com/haivivi/interviewer/pkg/cli"
	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/interview/engine"
	"github.com/haivivi/interviewer/pkg/interview/transport"
)

// Profile tunes one interview run. It is loaded with -f from YAML or JSON.
//
//	stage: phone_screen
//	streaming:
//	  voice: sage
//	  instructions:
//	    phone_screen: You are a friendly recruiter...
//	  turn_detection:
//	    type: server_vad
//	    silence_duration_ms: 700
//	vad_threshold: 25
//	silence_timeout: 2s
//	grace_period: 3s
//	sample_rate: 48000
type Profile struct {
	Stage string `yaml:"stage,omitempty"`

	Streaming transport.StreamingConfig `yaml:"streaming,omitempty"`

	// VADThreshold is the amplitude level (0-255) that counts as voice.
	VADThreshold float64 `yaml:"vad_threshold,omitempty"`
	// SilenceTimeout ends a turn-based recording after this much silence.
	SilenceTimeout time.Duration `yaml:"silence_timeout,omitempty"`
	// GracePeriod lets the closing remark play before the session completes.
	GracePeriod *time.Duration `yaml:"grace_period,omitempty"`
	// SampleRate is the playback device rate. Agent audio is resampled.
	SampleRate int `yaml:"sample_rate,omitempty"`

	MaxTurnFailures int `yaml:"max_turn_failures,omitempty"`
}

// DefaultProfile returns a phone screen with the default streaming setup.
func DefaultProfile() Profile {
	return Profile{
		Stage:     string(interview.StagePhoneScreen),
		Streaming: transport.DefaultStreamingConfig(),
	}
}

func loadProfile(path string, p *Profile) error {
	if err := cli.LoadRequest(path, p); err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	return nil
}

// stage returns the parsed stage, letting override win when set.
func (p Profile) stage(override string) (interview.Stage, error) {
	s := p.Stage
	if override != "" {
		s = override
	}
	return interview.ParseStage(s)
}

// apply copies the profile's tunables onto cfg.
func (p Profile) apply(cfg *engine.Config) error {
	if p.VADThreshold < 0 || p.VADThreshold > 255 {
		return fmt.Errorf("vad_threshold %v out of range 0-255", p.VADThreshold)
	}
	if p.VADThreshold > 0 {
		cfg.Monitor.Threshold = p.VADThreshold
	}
	if p.SilenceTimeout > 0 {
		cfg.Monitor.SilenceTimeout = p.SilenceTimeout
	}
	if p.GracePeriod != nil {
		cfg.GracePeriod = *p.GracePeriod
	}
	if p.SampleRate > 0 {
		f, err := pcm.FormatForRate(p.SampleRate)
		if err != nil {
			return err
		}
		cfg.Audio.PlaybackFormat = f
	}
	if p.MaxTurnFailures > 0 {
		cfg.MaxTurnFailures = p.MaxTurnFailures
	}
	return nil
}
