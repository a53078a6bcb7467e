// ABOUTME: Audio sources for feeding proxy streams
// ABOUTME: Test tones, file decoders, resampling and a paced stream feeder
// Package source produces PCM audio and plays it into proxy streams.
//
// Sources yield interleaved int32 samples in 24-bit range. Open picks a
// decoder from a path (MP3, FLAC, WAV, or an HTTP MP3 stream) and returns a
// test tone for an empty path. A Feeder converts a source to a stream's
// config and writes one buffer window at a time.
//
// Example:
//
//	src, err := source.Open("song.flac")
//	feeder, err := source.NewFeeder(src, streamOut)
//	err = feeder.Run(ctx)
package source
