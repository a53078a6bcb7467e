// ABOUTME: Audio encoder package for bus transport payloads
// ABOUTME: Provides Encoder interface and implementations for PCM, Opus
// Package encode produces bus transport payloads from samples.
//
// Supports: PCM (8, 16, 24 and 32-bit), Opus
//
// All encoders accept int32 samples in 24-bit range. The proxy uses Opus
// to compress PCM16/48kHz streams when a bus device negotiates it; sources
// use PCM to render into stream buffers.
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	data, err := encoder.Encode(samples)
package encode
