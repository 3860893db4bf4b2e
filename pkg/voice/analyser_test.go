package voice

import (
	"math"
	"testing"
)

func sine(n int, freq, rate, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

func TestAnalyserSilence(t *testing.T) {
	a := NewAnalyser(DefaultAnalyserConfig())
	if got := a.Level(make([]float32, 1024)); got != 0 {
		t.Fatalf("Level(silence) = %v, want 0", got)
	}
}

// noise returns deterministic broadband noise, which spreads energy across
// the spectrum the way speech does.
func noise(n int, amp float32) []float32 {
	out := make([]float32, n)
	x := uint32(2463534242)
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = amp * (float32(x)/float32(math.MaxUint32)*2 - 1)
	}
	return out
}

func TestAnalyserSpeechAboveThreshold(t *testing.T) {
	a := NewAnalyser(DefaultAnalyserConfig())
	frame := noise(1024, 0.3)
	var level float64
	for range 20 {
		level = a.Level(frame)
	}
	if level <= DefaultVoiceThreshold {
		t.Fatalf("Level(noise) = %v, want > %v", level, DefaultVoiceThreshold)
	}
}

func TestAnalyserSpectrumShape(t *testing.T) {
	a := NewAnalyser(DefaultAnalyserConfig())
	bins := a.Spectrum(sine(100, 1000, 24000, 1))
	if len(bins) != 128 {
		t.Fatalf("len(bins) = %d, want 128", len(bins))
	}
}

func TestAnalyserReset(t *testing.T) {
	a := NewAnalyser(DefaultAnalyserConfig())
	a.Level(sine(256, 440, 24000, 0.8))
	a.Reset()
	if got := a.Level(make([]float32, 256)); got != 0 {
		t.Fatalf("Level after Reset = %v, want 0", got)
	}
}

func TestNewAnalyserRejectsBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewAnalyser(AnalyserConfig{FFTSize: 300})
}
