// ABOUTME: Decoder interface and constructor by codec name
// ABOUTME: Bus devices pick a decoder from the codec negotiated for a stream
package decode

import (
	"errors"
	"fmt"

	"github.com/Sendspin/audio-proxy/pkg/audio"
)

var (
	ErrUnsupportedCodec  = errors.New("unsupported codec")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Decoder turns one transport payload into interleaved samples in 24-bit range
type Decoder interface {
	Decode(data []byte) ([]int32, error)
	Close() error
}

// New returns the decoder for format.Codec
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, format.Codec)
	}
}
