// Package portaudio provides the microphone and speaker used by interview
// sessions, backed by the PortAudio C library.
//
// For go build: requires portaudio installed via pkg-config (brew install portaudio)
package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

static PaError pa_open_stream(void **stream,
                              const PaStreamParameters *inputParams,
                              const PaStreamParameters *outputParams,
                              double sampleRate,
                              unsigned long framesPerBuffer) {
    return Pa_OpenStream((PaStream**)stream, inputParams, outputParams, sampleRate,
                         framesPerBuffer, paClipOff, NULL, NULL);
}

static PaError pa_start_stream(void *stream) { return Pa_StartStream((PaStream*)stream); }
static PaError pa_abort_stream(void *stream) { return Pa_AbortStream((PaStream*)stream); }
static PaError pa_close_stream(void *stream) { return Pa_CloseStream((PaStream*)stream); }

static PaError pa_read_stream(void *stream, void *buffer, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buffer, frames);
}

static PaError pa_write_stream(void *stream, const void *buffer, unsigned long frames) {
    return Pa_WriteStream((PaStream*)stream, buffer, frames);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
	"github.com/haivivi/interviewer/pkg/voice"
)

var (
	initOnce sync.Once
	initErr  error
)

// ErrClosed is returned by reads and writes on a closed stream.
var ErrClosed = errors.New("portaudio: stream closed")

func paError(code C.PaError) error {
	if code == C.paNoError {
		return nil
	}
	return errors.New(C.GoString(C.Pa_GetErrorText(code)))
}

// Initialize initializes the PortAudio library.
// It is safe to call multiple times.
func Initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// DeviceInfo contains information about an audio device.
type DeviceInfo struct {
	Index             int     `json:"index" yaml:"index"`
	Name              string  `json:"name" yaml:"name"`
	MaxInputChannels  int     `json:"max_input_channels" yaml:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels" yaml:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate" yaml:"default_sample_rate"`
	IsDefaultInput    bool    `json:"default_input,omitempty" yaml:"default_input,omitempty"`
	IsDefaultOutput   bool    `json:"default_output,omitempty" yaml:"default_output,omitempty"`
}

// Devices returns a list of available audio devices.
func Devices() ([]DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, paError(C.PaError(count))
	}

	defaultInput := int(C.Pa_GetDefaultInputDevice())
	defaultOutput := int(C.Pa_GetDefaultOutputDevice())

	devices := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			MaxInputChannels:  int(info.maxInputChannels),
			MaxOutputChannels: int(info.maxOutputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defaultInput,
			IsDefaultOutput:   i == defaultOutput,
		})
	}
	return devices, nil
}

// Device opens streams on the default input and output devices.
type Device struct{}

var _ voice.Device = Device{}

// OpenMicrophone opens the default input device delivering float32 frames of
// the given number of samples.
func (Device) OpenMicrophone(format pcm.Format, frames int) (voice.Microphone, error) {
	s, err := openStream(true, format, frames)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input: %w", err)
	}
	return &microphone{stream: s, frames: frames}, nil
}

// OpenSpeaker opens the default output device for 16-bit playback.
func (Device) OpenSpeaker(format pcm.Format) (voice.Speaker, error) {
	frames := int(format.SamplesInDuration(voice.PlaybackSlice))
	s, err := openStream(false, format, frames)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open output: %w", err)
	}
	return &speaker{stream: s}, nil
}

type stream struct {
	mu     sync.Mutex
	ptr    unsafe.Pointer
	buf    unsafe.Pointer
	size   int
	closed bool
}

func openStream(input bool, format pcm.Format, frames int) (*stream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	var params C.PaStreamParameters
	params.channelCount = C.int(format.Channels())
	params.hostApiSpecificStreamInfo = nil

	var inputParams, outputParams *C.PaStreamParameters
	sampleBytes := 2
	if input {
		params.device = C.Pa_GetDefaultInputDevice()
		if params.device == C.paNoDevice {
			return nil, errors.New("no default input device")
		}
		params.sampleFormat = C.paFloat32
		params.suggestedLatency = C.Pa_GetDeviceInfo(params.device).defaultLowInputLatency
		inputParams = &params
		sampleBytes = 4
	} else {
		params.device = C.Pa_GetDefaultOutputDevice()
		if params.device == C.paNoDevice {
			return nil, errors.New("no default output device")
		}
		params.sampleFormat = C.paInt16
		params.suggestedLatency = C.Pa_GetDeviceInfo(params.device).defaultLowOutputLatency
		outputParams = &params
	}

	var ptr unsafe.Pointer
	if err := paError(C.pa_open_stream(&ptr, inputParams, outputParams,
		C.double(format.SampleRate()), C.ulong(frames))); err != nil {
		return nil, err
	}
	if err := paError(C.pa_start_stream(ptr)); err != nil {
		C.pa_close_stream(ptr)
		return nil, err
	}
	size := frames * format.Channels() * sampleBytes
	return &stream{ptr: ptr, buf: C.malloc(C.size_t(size)), size: size}, nil
}

func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	C.pa_abort_stream(s.ptr)
	err := paError(C.pa_close_stream(s.ptr))
	C.free(s.buf)
	return err
}

type microphone struct {
	stream *stream
	frames int
}

func (m *microphone) ReadFrame() ([]float32, error) {
	s := m.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := paError(C.pa_read_stream(s.ptr, s.buf, C.ulong(m.frames))); err != nil {
		return nil, err
	}
	out := make([]float32, m.frames)
	C.memcpy(unsafe.Pointer(&out[0]), s.buf, C.size_t(m.frames*4))
	return out, nil
}

func (m *microphone) Close() error { return m.stream.close() }

type speaker struct {
	stream *stream
}

func (sp *speaker) Write(data []byte) error {
	s := sp.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for len(data) >= 2 {
		n := min(len(data), s.size)
		n -= n % 2
		C.memcpy(s.buf, unsafe.Pointer(&data[0]), C.size_t(n))
		if err := paError(C.pa_write_stream(s.ptr, s.buf, C.ulong(n/2))); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Abort drops audio already queued in the device and restarts the stream.
func (sp *speaker) Abort() error {
	s := sp.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := paError(C.pa_abort_stream(s.ptr)); err != nil {
		return err
	}
	return paError(C.pa_start_stream(s.ptr))
}

func (sp *speaker) Close() error { return sp.stream.close() }
