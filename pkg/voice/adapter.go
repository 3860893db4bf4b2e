package voice

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
	"github.com/haivivi/interviewer/pkg/audio/resampler"
)

// Mode selects how captured audio is delivered.
type Mode int

const (
	// ModeStreaming delivers fixed-size chunks to the chunk hook as they fill.
	ModeStreaming Mode = iota
	// ModeTurn accumulates one blob per turn, returned by StopRecording.
	ModeTurn
)

func (m Mode) String() string {
	switch m {
	case ModeStreaming:
		return "streaming"
	case ModeTurn:
		return "turn"
	default:
		return "unknown"
	}
}

// Default capture parameters.
const (
	DefaultFrameSize = 1024
	DefaultChunkSize = 4096
)

var (
	// ErrAdapterClosed is returned by operations on a closed adapter.
	ErrAdapterClosed = errors.New("voice: adapter closed")
	// ErrNotOpen is returned when recording starts before Open.
	ErrNotOpen = errors.New("voice: adapter not open")
)

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	// CaptureFormat is the microphone and wire capture format.
	CaptureFormat pcm.Format
	// WireFormat is the format of audio handed to Enqueue.
	WireFormat pcm.Format
	// PlaybackFormat is the speaker format. Wire audio is resampled to it.
	PlaybackFormat pcm.Format
	// FrameSize is the number of samples per microphone read.
	FrameSize int
	// ChunkSize is the number of samples per streaming chunk.
	ChunkSize int
}

// DefaultAdapterConfig returns 24 kHz mono everywhere with the default
// frame and chunk sizes.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		CaptureFormat:  pcm.L16Mono24K,
		WireFormat:     pcm.L16Mono24K,
		PlaybackFormat: pcm.L16Mono24K,
		FrameSize:      DefaultFrameSize,
		ChunkSize:      DefaultChunkSize,
	}
}

// Hooks connect the adapter to the session. Any hook may be nil.
type Hooks struct {
	// Active is rechecked before any captured audio is forwarded or any
	// playback is queued. A nil Active always allows.
	Active func() bool
	// Chunk receives encoded chunks in ModeStreaming.
	Chunk func(chunk []byte)
	// Frame receives every captured frame while active, recording or not.
	Frame func(frame []float32)
	// PlaybackEnded reports the end of each stretch of playback.
	PlaybackEnded func(end PlaybackEnd, err error)
}

// Adapter exclusively owns the microphone and speaker of a session.
type Adapter struct {
	device Device
	cfg    AdapterConfig
	hooks  Hooks

	conv   *resampler.Converter
	mic    Microphone
	player *Player

	mu        sync.Mutex
	open      bool
	closed    bool
	recording bool
	mode      Mode
	chunker   *pcm.Chunker
	blob      bytes.Buffer
	frames    int

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// NewAdapter returns an unopened Adapter. Start from DefaultAdapterConfig;
// the zero Format is a valid 16 kHz format, not "unset".
func NewAdapter(device Device, cfg AdapterConfig, hooks Hooks) *Adapter {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Adapter{
		device:  device,
		cfg:     cfg,
		hooks:   hooks,
		chunker: pcm.NewChunker(cfg.ChunkSize),
	}
}

// Open acquires the microphone and speaker and starts the capture loop.
// Microphone failures wrap ErrMicrophoneUnavailable. Whatever was acquired
// before a failure is released.
func (a *Adapter) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrAdapterClosed
	}
	if a.open {
		return nil
	}

	conv, err := resampler.New(a.cfg.WireFormat.SampleRate(), a.cfg.PlaybackFormat.SampleRate())
	if err != nil {
		return fmt.Errorf("voice: %w", err)
	}
	mic, err := a.device.OpenMicrophone(a.cfg.CaptureFormat, a.cfg.FrameSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMicrophoneUnavailable, err)
	}
	speaker, err := a.device.OpenSpeaker(a.cfg.PlaybackFormat)
	if err != nil {
		mic.Close()
		return fmt.Errorf("voice: open speaker: %w", err)
	}

	a.conv = conv
	a.mic = mic
	a.player = NewPlayer(speaker, a.cfg.PlaybackFormat, a.hooks.PlaybackEnded)
	a.open = true

	a.wg.Add(1)
	go a.captureLoop(mic)
	return nil
}

// StartRecording clears the capture buffer and starts recording in mode.
func (a *Adapter) StartRecording(mode Mode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrAdapterClosed
	}
	if !a.open {
		return ErrNotOpen
	}
	a.mode = mode
	a.recording = true
	a.frames = 0
	a.blob.Reset()
	a.chunker.Reset()
	return nil
}

// StopRecording stops recording and returns the audio captured since the
// last StartRecording that was not already delivered as a chunk.
func (a *Adapter) StopRecording() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recording = false
	a.frames = 0
	if a.mode == ModeStreaming {
		a.chunker.Reset()
		return nil
	}
	if a.blob.Len() == 0 {
		return nil
	}
	out := bytes.Clone(a.blob.Bytes())
	a.blob.Reset()
	return out
}

// Recording reports whether captured audio is being kept.
func (a *Adapter) Recording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording
}

// BufferedFrames returns the number of frames captured since recording
// started. In ModeStreaming most of them have already left as chunks.
func (a *Adapter) BufferedFrames() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames
}

// Enqueue decodes wire audio to the playback format and queues it.
// Audio arriving while the session is inactive is dropped.
func (a *Adapter) Enqueue(data []byte) error {
	if !a.active() {
		return nil
	}
	a.mu.Lock()
	if a.closed || !a.open {
		a.mu.Unlock()
		return ErrAdapterClosed
	}
	player, conv := a.player, a.conv
	a.mu.Unlock()

	out, err := conv.Convert(data)
	if err != nil {
		return fmt.Errorf("voice: resample: %w", err)
	}
	player.Enqueue(out)
	return nil
}

// CancelPlayback discards queued audio. It reports whether anything was
// playing.
func (a *Adapter) CancelPlayback() bool {
	a.mu.Lock()
	player := a.player
	a.mu.Unlock()
	if player == nil {
		return false
	}
	return player.Cancel()
}

// Playing reports whether agent audio is playing.
func (a *Adapter) Playing() bool {
	a.mu.Lock()
	player := a.player
	a.mu.Unlock()
	return player != nil && player.Playing()
}

// Close stops playback, releases the microphone and speaker and waits for
// the capture loop to exit. Only the first call does anything.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.recording = false
		mic, player := a.mic, a.player
		a.mu.Unlock()

		var errs []error
		if player != nil {
			player.Cancel()
			if err := player.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close speaker: %w", err))
			}
		}
		if mic != nil {
			if err := mic.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close microphone: %w", err))
			}
		}
		a.wg.Wait()
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func (a *Adapter) active() bool {
	return a.hooks.Active == nil || a.hooks.Active()
}

func (a *Adapter) captureLoop(mic Microphone) {
	defer a.wg.Done()
	for {
		frame, err := mic.ReadFrame()
		if err != nil {
			a.mu.Lock()
			closed := a.closed
			a.mu.Unlock()
			if !closed {
				slog.Warn("voice: capture stopped", "err", err)
			}
			return
		}
		if !a.active() {
			continue
		}
		a.capture(frame)
		if a.hooks.Frame != nil {
			a.hooks.Frame(frame)
		}
	}
}

func (a *Adapter) capture(frame []float32) {
	a.mu.Lock()
	if !a.recording || a.closed {
		a.mu.Unlock()
		return
	}
	data := pcm.EncodeFloat32(frame)
	a.frames++
	var chunks [][]byte
	switch a.mode {
	case ModeStreaming:
		chunks = a.chunker.Push(data)
	case ModeTurn:
		a.blob.Write(data)
	}
	a.mu.Unlock()

	if a.hooks.Chunk == nil {
		return
	}
	for _, c := range chunks {
		if !a.active() {
			return
		}
		a.hooks.Chunk(c)
	}
}
