// ABOUTME: Audio decoder package for bus transport payloads
// ABOUTME: Provides Decoder interface and implementations for PCM and Opus
// Package decode turns bus transport payloads back into samples.
//
// Supports: PCM (8, 16, 24 and 32-bit), Opus
//
// All decoders implement the Decoder interface and output int32 samples
// in 24-bit range. Bus devices use them to feed local outputs.
//
// Example:
//
//	decoder, err := decode.NewPCM(format)
//	samples, err := decoder.Decode(payload)
package decode
