// Package voice implements the audio side of an interview session: the
// Audio I/O Adapter that exclusively owns the microphone and speaker, the
// spectrum analyser that turns captured frames into an amplitude level, and
// the Voice Activity Monitor that decides silence auto-stop and barge-in.
//
// Devices are abstracted behind Device so the session engine can run against
// PortAudio in the CLI and against in-memory fakes in tests.
package voice
