// Package audio groups the audio sub-packages used by interview sessions:
//
//   - pcm: 16-bit PCM formats, float/int16 conversion and wire chunking
//   - portaudio: microphone and speaker devices (cgo)
//   - resampler: sample-rate conversion for agent playback
//
// Capture and playback orchestration lives in the voice package.
package audio
