package voice

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// AnalyserConfig configures the spectrum analyser. The defaults mirror a
// browser AnalyserNode so thresholds carry over between clients.
type AnalyserConfig struct {
	FFTSize     int
	MinDecibels float64
	MaxDecibels float64
	Smoothing   float64
}

// DefaultAnalyserConfig returns the default analyser configuration.
func DefaultAnalyserConfig() AnalyserConfig {
	return AnalyserConfig{
		FFTSize:     256,
		MinDecibels: -100,
		MaxDecibels: -30,
		Smoothing:   0.8,
	}
}

// Analyser computes a frequency-domain amplitude snapshot of captured audio.
// It keeps smoothing state between frames and is not safe for concurrent use.
type Analyser struct {
	cfg  AnalyserConfig
	fft  *fourier.FFT
	seq  []float64
	prev []float64
}

// NewAnalyser returns an Analyser. FFTSize must be a power of two.
func NewAnalyser(cfg AnalyserConfig) *Analyser {
	if cfg.FFTSize <= 0 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		panic("voice: analyser FFT size must be a power of two")
	}
	return &Analyser{
		cfg:  cfg,
		fft:  fourier.NewFFT(cfg.FFTSize),
		seq:  make([]float64, cfg.FFTSize),
		prev: make([]float64, cfg.FFTSize/2),
	}
}

// Spectrum returns byte-scaled magnitudes (0..255) of the most recent
// FFTSize samples of frame. Short frames are zero padded at the front.
func (a *Analyser) Spectrum(frame []float32) []uint8 {
	n := a.cfg.FFTSize
	clear(a.seq)
	src := frame
	if len(src) > n {
		src = src[len(src)-n:]
	}
	off := n - len(src)
	for i, s := range src {
		a.seq[off+i] = float64(s)
	}
	window.Blackman(a.seq)

	coeffs := a.fft.Coefficients(nil, a.seq)
	bins := make([]uint8, n/2)
	scale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)
	for k := range bins {
		mag := cmplx.Abs(coeffs[k]) / float64(n)
		mag = a.cfg.Smoothing*a.prev[k] + (1-a.cfg.Smoothing)*mag
		a.prev[k] = mag
		db := 20 * math.Log10(mag)
		v := scale * (db - a.cfg.MinDecibels)
		switch {
		case math.IsNaN(v) || v < 0:
			bins[k] = 0
		case v > 255:
			bins[k] = 255
		default:
			bins[k] = uint8(v)
		}
	}
	return bins
}

// Level returns the average byte magnitude of the frame's spectrum.
func (a *Analyser) Level(frame []float32) float64 {
	bins := a.Spectrum(frame)
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins))
}

// Reset clears the smoothing state.
func (a *Analyser) Reset() {
	clear(a.prev)
}

