// ABOUTME: Sample rate conversion for sources that do not match a stream
// ABOUTME: Linear interpolation that stays continuous across Resample calls
// Package resample converts interleaved samples between rates.
//
// A Resampler keeps the last input frame between calls, so a source read
// in stream-sized windows resamples without clicks at window edges.
//
//	r := resample.New(44100, 48000, 2)
//	in := make([]int32, r.InputSamplesNeeded(1920))
//	n := r.Resample(in, out)
package resample
