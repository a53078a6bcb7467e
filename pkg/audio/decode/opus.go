// ABOUTME: Opus decoder for compressed bus streams
// ABOUTME: Decodes one packet per call and conceals lost packets
package decode

import (
	"fmt"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxFrameMs is the longest duration a single Opus packet can carry
const maxFrameMs = 120

var opusRates = map[int]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

// OpusDecoder decodes Opus packets produced by the proxy's encoder
type OpusDecoder struct {
	decoder  *opus.Decoder
	channels int
	scratch  []int16
	lastLen  int // samples in the last decoded packet, sizes concealment
}

// NewOpus accepts the rates Opus defines, mono or stereo
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("%w: %q for opus decoder", ErrUnsupportedCodec, format.Codec)
	}
	if !opusRates[format.SampleRate] || format.Channels < 1 || format.Channels > 2 {
		return nil, fmt.Errorf("%w: opus at %dHz/%dch", ErrUnsupportedFormat, format.SampleRate, format.Channels)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:  dec,
		channels: format.Channels,
		scratch:  make([]int16, format.SampleRate*maxFrameMs/1000*format.Channels),
	}, nil
}

// Decode converts one packet to samples. An empty packet stands for a lost
// one and yields concealment audio the length of the previous packet.
func (d *OpusDecoder) Decode(data []byte) ([]int32, error) {
	if len(data) == 0 {
		return d.conceal()
	}

	n, err := d.decoder.Decode(data, d.scratch)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	d.lastLen = n * d.channels
	return widen(d.scratch[:d.lastLen]), nil
}

func (d *OpusDecoder) conceal() ([]int32, error) {
	if d.lastLen == 0 {
		return nil, nil
	}
	buf := d.scratch[:d.lastLen]
	if err := d.decoder.DecodePLC(buf); err != nil {
		return nil, fmt.Errorf("opus concealment failed: %w", err)
	}
	return widen(buf), nil
}

func widen(pcm []int16) []int32 {
	out := make([]int32, len(pcm))
	for i, s := range pcm {
		out[i] = audio.SampleFromInt16(s)
	}
	return out
}

func (d *OpusDecoder) Close() error {
	return nil
}
