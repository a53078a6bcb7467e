// ABOUTME: PCM decoder for uncompressed bus streams
// ABOUTME: Reads 8, 16, 24 and 32-bit little-endian PCM into 24-bit range samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Sendspin/audio-proxy/pkg/audio"
)

type sampleReader struct {
	width int
	read  func(b []byte) int32
}

var pcmReaders = map[int]sampleReader{
	8: {1, func(b []byte) int32 { return audio.SampleFromInt8(b[0]) }},
	16: {2, func(b []byte) int32 {
		return audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(b)))
	}},
	24: {3, func(b []byte) int32 { return audio.SampleFrom24Bit([3]byte{b[0], b[1], b[2]}) }},
	32: {4, func(b []byte) int32 {
		return audio.SampleFromInt32(int32(binary.LittleEndian.Uint32(b)))
	}},
}

// PCMDecoder reads packed integer PCM
type PCMDecoder struct {
	reader sampleReader
}

func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("%w: %q for pcm decoder", ErrUnsupportedCodec, format.Codec)
	}
	r, ok := pcmReaders[format.BitDepth]
	if !ok {
		return nil, fmt.Errorf("%w: %d-bit pcm", ErrUnsupportedFormat, format.BitDepth)
	}
	return &PCMDecoder{reader: r}, nil
}

// Decode ignores trailing bytes that do not form a whole sample
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	w := d.reader.width
	samples := make([]int32, len(data)/w)
	for i := range samples {
		samples[i] = d.reader.read(data[i*w:])
	}
	return samples, nil
}

func (d *PCMDecoder) Close() error {
	return nil
}
