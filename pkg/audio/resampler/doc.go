// Package resampler converts mono 16-bit PCM between sample rates using the
// pure Go go-audio-resampling library.
//
// Agent audio arrives at the wire rate while the playback device may run at a
// different rate; a Converter is stateful so consecutive deltas of one stream
// resample without discontinuities.
//
//	conv, err := resampler.New(24000, 48000)
//	if err != nil {
//	    return err
//	}
//	out, err := conv.Convert(delta)
package resampler
