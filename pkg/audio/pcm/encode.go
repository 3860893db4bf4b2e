package pcm

import "encoding/binary"

// EncodeFloat32 converts normalized float samples in [-1, 1] to 16-bit
// signed little-endian PCM. Out-of-range samples are clipped.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

// floatToInt16 scales negative samples by 0x8000 and positive ones by 0x7FFF
// so both ends of the range map exactly.
func floatToInt16(s float32) int16 {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	case s < 0:
		return int16(s * 32768)
	default:
		return int16(s * 32767)
	}
}

// DecodeFloat32 converts 16-bit signed little-endian PCM to normalized float
// samples. A trailing odd byte is ignored.
func DecodeFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// EncodeInt16 converts samples to 16-bit signed little-endian PCM.
func EncodeInt16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// DecodeInt16 converts 16-bit signed little-endian PCM to samples.
func DecodeInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
