// ABOUTME: Codec negotiation for stream audio
// ABOUTME: Chooses Opus for eligible PCM streams when the device supports it
package protocol

import (
	"slices"

	"github.com/Sendspin/audio-proxy/pkg/audio"
)

// OpusEligible reports whether a stream config can be carried as Opus
// without changing what the device receives
func OpusEligible(c audio.StreamConfig) bool {
	if c.Format != audio.FormatPCM16Bit || c.SampleRateHz != 48000 {
		return false
	}
	n := c.Channels()
	return n == 1 || n == 2
}

// NegotiateCodec picks the codec for a stream given the device's codecs
func NegotiateCodec(supported []string, c audio.StreamConfig) string {
	if OpusEligible(c) && slices.Contains(supported, CodecOpus) {
		return CodecOpus
	}
	return CodecPCM
}
