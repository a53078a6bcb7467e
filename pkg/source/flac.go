// ABOUTME: FLAC file source
// ABOUTME: Decodes frames with mewkiz/flac and loops at end of file
package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mewkiz/flac"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file       *os.File
	stream     *flac.Stream
	sampleRate int
	channels   int
	bitDepth   int
	title      string

	// decoded samples not yet returned
	pending []int32
}

// NewFLAC opens a FLAC file
func NewFLAC(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	s := &FLACSource{
		file:       f,
		stream:     stream,
		sampleRate: int(stream.Info.SampleRate),
		channels:   int(stream.Info.NChannels),
		bitDepth:   int(stream.Info.BitsPerSample),
		title:      titleFromPath(path),
	}
	slog.Info("loaded FLAC", "title", s.title, "sample_rate", s.sampleRate,
		"channels", s.channels, "bit_depth", s.bitDepth)
	return s, nil
}

func (s *FLACSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to loop FLAC: %w", err)
	}
	stream, err := flac.New(s.file)
	if err != nil {
		return fmt.Errorf("failed to loop FLAC: %w", err)
	}
	s.stream = stream
	return nil
}

func (s *FLACSource) Read(samples []int32) (int, error) {
	read := copy(samples, s.pending)
	s.pending = s.pending[read:]
	looped := false

	for read < len(samples) {
		frame, err := s.stream.ParseNext()
		if errors.Is(err, io.EOF) {
			// An empty file would loop forever
			if looped {
				return read, io.EOF
			}
			if err := s.rewind(); err != nil {
				return read, err
			}
			looped = true
			continue
		}
		if err != nil {
			return read, err
		}
		looped = false

		block := int(frame.BlockSize)
		decoded := make([]int32, 0, block*s.channels)
		for i := 0; i < block; i++ {
			for ch := 0; ch < s.channels; ch++ {
				decoded = append(decoded, scaleTo24(frame.Subframes[ch].Samples[i], s.bitDepth))
			}
		}

		n := copy(samples[read:], decoded)
		read += n
		s.pending = append(s.pending, decoded[n:]...)
	}

	return read, nil
}

func (s *FLACSource) SampleRate() int { return s.sampleRate }
func (s *FLACSource) Channels() int   { return s.channels }
func (s *FLACSource) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}
func (s *FLACSource) Close() error { return s.file.Close() }
