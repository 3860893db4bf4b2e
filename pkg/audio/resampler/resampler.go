package resampler

import (
	"fmt"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
)

// Converter resamples a stream of 16-bit mono PCM chunks.
// It is safe for concurrent use; chunks are processed in call order.
type Converter struct {
	srcRate int
	dstRate int

	mu        sync.Mutex
	resampler resampling.Resampler
	odd       []byte
}

// New returns a Converter from srcRate to dstRate. When the rates are equal
// Convert returns its input unchanged.
func New(srcRate, dstRate int) (*Converter, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	c := &Converter{srcRate: srcRate, dstRate: dstRate}
	if srcRate == dstRate {
		return c, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create: %w", err)
	}
	c.resampler = r
	return c, nil
}

// Passthrough reports whether the converter leaves audio untouched.
func (c *Converter) Passthrough() bool {
	return c.resampler == nil
}

// Convert resamples one chunk. An odd trailing byte is carried over to the
// next call so samples never split across chunks.
func (c *Converter) Convert(data []byte) ([]byte, error) {
	if c.resampler == nil {
		return data, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.odd) > 0 {
		data = append(c.odd, data...)
		c.odd = nil
	}
	if len(data)%2 == 1 {
		c.odd = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}

	samples := pcm.DecodeFloat32(data)
	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}

	output, err := c.resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}

	out := make([]float32, len(output))
	for i, s := range output {
		out[i] = float32(s)
	}
	return pcm.EncodeFloat32(out), nil
}
