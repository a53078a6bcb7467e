// ABOUTME: Encoder interface and constructor by codec name
// ABOUTME: Produces the payload codec negotiated for a bus stream
package encode

import (
	"errors"
	"fmt"

	"github.com/Sendspin/audio-proxy/pkg/audio"
)

var (
	ErrUnsupportedCodec  = errors.New("unsupported codec")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Encoder turns interleaved samples in 24-bit range into a payload
type Encoder interface {
	Encode(samples []int32) ([]byte, error)
	Close() error
}

// New returns the encoder for format.Codec
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, format.Codec)
	}
}
