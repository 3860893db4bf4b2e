// Package pcm provides types and utilities for working with PCM (Pulse Code Modulation) audio data.
//
// The package defines the 16-bit mono formats used on the interview wire and
// the conversions between device samples and wire bytes.
//
// Key types:
//   - Format: Represents audio format (sample rate, channels, bit depth)
//   - Chunker: Splits a capture stream into fixed-size wire chunks
//
// Example usage:
//
//	// 24kHz mono is the streaming wire format
//	format := pcm.L16Mono24K
//
//	// Encode a captured frame of float samples
//	data := pcm.EncodeFloat32(frame)
//
//	// Bytes needed for 20ms of audio
//	n := format.BytesInDuration(20 * time.Millisecond)
package pcm
