package voice

import (
	"errors"
	"time"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
)

// PlaybackSlice is the granularity at which queued audio is written to the
// speaker. Cancellation takes effect between slices.
const PlaybackSlice = 20 * time.Millisecond

// ErrMicrophoneUnavailable wraps failures to open the capture device.
// Callers treat it as a permission failure.
var ErrMicrophoneUnavailable = errors.New("voice: microphone unavailable")

// Microphone yields captured frames of normalized float samples.
// ReadFrame blocks until a frame is available and fails once closed.
type Microphone interface {
	ReadFrame() ([]float32, error)
	Close() error
}

// Speaker plays 16-bit little-endian PCM.
type Speaker interface {
	// Write blocks until data has been handed to the device.
	Write(data []byte) error
	// Abort discards audio already queued in the device.
	Abort() error
	Close() error
}

// Device opens capture and playback streams.
type Device interface {
	OpenMicrophone(format pcm.Format, frames int) (Microphone, error)
	OpenSpeaker(format pcm.Format) (Speaker, error)
}
