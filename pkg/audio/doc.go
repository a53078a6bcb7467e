// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines stream configs, format codes and sample conversions
// Package audio provides the audio types shared by the proxy and bus devices.
//
// This package defines:
//   - StreamConfig: the immutable configuration of an opened output stream
//   - FormatType, ChannelMask, OutputFlags: platform codes and their parsers
//   - Format: codec description used by the encode and decode packages
//
// Example:
//
//	cfg := audio.StreamConfig{
//	    SampleRateHz: 48000,
//	    ChannelMask:  audio.ChannelOutStereo,
//	    Format:       audio.FormatPCM16Bit,
//	}
//
//	cfg.FrameSize()      // 4
//	cfg.FrameCount(20)   // 960
//	cfg.BufferSize(20)   // 3840
package audio
