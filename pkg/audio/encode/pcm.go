// ABOUTME: PCM encoder for stream buffers
// ABOUTME: Writes 24-bit range samples as 8, 16, 24 or 32-bit little-endian PCM
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Sendspin/audio-proxy/pkg/audio"
)

type sampleWriter struct {
	width int
	write func(b []byte, s int32)
}

var pcmWriters = map[int]sampleWriter{
	8: {1, func(b []byte, s int32) { b[0] = audio.SampleToInt8(s) }},
	16: {2, func(b []byte, s int32) {
		binary.LittleEndian.PutUint16(b, uint16(audio.SampleToInt16(s)))
	}},
	24: {3, func(b []byte, s int32) {
		packed := audio.SampleTo24Bit(s)
		copy(b, packed[:])
	}},
	32: {4, func(b []byte, s int32) {
		binary.LittleEndian.PutUint32(b, uint32(audio.SampleToInt32(s)))
	}},
}

// PCMEncoder writes packed integer PCM
type PCMEncoder struct {
	writer sampleWriter
}

func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("%w: %q for pcm encoder", ErrUnsupportedCodec, format.Codec)
	}
	w, ok := pcmWriters[format.BitDepth]
	if !ok {
		return nil, fmt.Errorf("%w: %d-bit pcm", ErrUnsupportedFormat, format.BitDepth)
	}
	return &PCMEncoder{writer: w}, nil
}

func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	w := e.writer.width
	out := make([]byte, len(samples)*w)
	for i, s := range samples {
		e.writer.write(out[i*w:], s)
	}
	return out, nil
}

func (e *PCMEncoder) Close() error {
	return nil
}
