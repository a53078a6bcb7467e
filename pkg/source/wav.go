// ABOUTME: WAV file source
// ABOUTME: Decodes PCM WAV with go-audio/wav and loops at end of file
package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource reads from a PCM WAV file
type WAVSource struct {
	file       *os.File
	decoder    *wav.Decoder
	buf        *audio.IntBuffer
	sampleRate int
	channels   int
	bitDepth   int
	title      string
}

// NewWAV opens a WAV file
func NewWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}
	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to find WAV data: %w", err)
	}

	s := &WAVSource{
		file:       f,
		decoder:    decoder,
		sampleRate: int(decoder.SampleRate),
		channels:   int(decoder.NumChans),
		bitDepth:   int(decoder.BitDepth),
		title:      titleFromPath(path),
	}
	s.buf = &audio.IntBuffer{Format: decoder.Format(), SourceBitDepth: s.bitDepth}

	slog.Info("loaded WAV", "title", s.title, "sample_rate", s.sampleRate,
		"channels", s.channels, "bit_depth", s.bitDepth)
	return s, nil
}

func (s *WAVSource) fill(samples []int32) (int, error) {
	if cap(s.buf.Data) < len(samples) {
		s.buf.Data = make([]int, len(samples))
	}
	s.buf.Data = s.buf.Data[:len(samples)]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	for i := 0; i < n; i++ {
		samples[i] = scaleTo24(int32(s.buf.Data[i]), s.bitDepth)
	}
	return n, nil
}

func (s *WAVSource) Read(samples []int32) (int, error) {
	n, err := s.fill(samples)
	if err != nil || n > 0 {
		return n, err
	}

	// Rewind positions the decoder back at the PCM chunk
	if err := s.decoder.Rewind(); err != nil {
		return 0, fmt.Errorf("failed to loop WAV: %w", err)
	}
	return s.fill(samples)
}

func (s *WAVSource) SampleRate() int { return s.sampleRate }
func (s *WAVSource) Channels() int   { return s.channels }
func (s *WAVSource) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}
func (s *WAVSource) Close() error { return s.file.Close() }
