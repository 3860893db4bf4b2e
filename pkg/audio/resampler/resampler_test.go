package resampler

import (
	"bytes"
	"testing"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
)

func TestNewInvalidRates(t *testing.T) {
	if _, err := New(0, 24000); err == nil {
		t.Fatal("New(0, 24000) should fail")
	}
	if _, err := New(24000, -1); err == nil {
		t.Fatal("New(24000, -1) should fail")
	}
}

func TestPassthrough(t *testing.T) {
	c, err := New(24000, 24000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.Passthrough() {
		t.Fatal("equal rates should pass through")
	}
	in := pcm.EncodeInt16([]int16{1, 2, 3})
	out, err := c.Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("passthrough changed data")
	}
}

func TestConvertKeepsSampleAlignment(t *testing.T) {
	c, err := New(24000, 48000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Passthrough() {
		t.Fatal("different rates should not pass through")
	}
	in := make([]byte, 2401)
	out, err := c.Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(out)%2 != 0 {
		t.Errorf("output length %d is not sample aligned", len(out))
	}
	if len(c.odd) != 1 {
		t.Errorf("odd byte not carried over")
	}
}
