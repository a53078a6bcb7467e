// ABOUTME: MP3 file and HTTP stream sources
// ABOUTME: Decodes with go-mp3, which always yields 16-bit stereo
package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// readMP3 decodes up to len(samples) samples from d into 24-bit range
func readMP3(d *mp3.Decoder, buf []byte, samples []int32) (int, []byte, error) {
	if need := len(samples) * 2; cap(buf) < need {
		buf = make([]byte, need)
	} else {
		buf = buf[:need]
	}

	n, err := io.ReadFull(d, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	count := n / 2
	for i := 0; i < count; i++ {
		samples[i] = int32(int16(binary.LittleEndian.Uint16(buf[i*2:]))) << 8
	}
	return count, buf, err
}

// MP3Source reads from an MP3 file and loops at the end
type MP3Source struct {
	file       *os.File
	decoder    *mp3.Decoder
	buf        []byte
	sampleRate int
	title      string
}

// NewMP3 opens an MP3 file
func NewMP3(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	s := &MP3Source{
		file:       f,
		decoder:    decoder,
		sampleRate: decoder.SampleRate(),
		title:      titleFromPath(path),
	}
	slog.Info("loaded MP3", "title", s.title, "sample_rate", s.sampleRate)
	return s, nil
}

func (s *MP3Source) Read(samples []int32) (int, error) {
	n, buf, err := readMP3(s.decoder, s.buf, samples)
	s.buf = buf
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, io.EOF) {
		return n, err
	}

	if _, err := s.decoder.Seek(0, io.SeekStart); err != nil {
		return n, fmt.Errorf("failed to loop MP3: %w", err)
	}
	return n, nil
}

func (s *MP3Source) SampleRate() int { return s.sampleRate }
func (s *MP3Source) Channels() int   { return 2 }
func (s *MP3Source) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}
func (s *MP3Source) Close() error { return s.file.Close() }

// HTTPMP3Source streams MP3 from an HTTP URL. It ends at end of stream.
type HTTPMP3Source struct {
	url        string
	body       io.ReadCloser
	decoder    *mp3.Decoder
	buf        []byte
	sampleRate int
}

// NewHTTPMP3 starts streaming from url
func NewHTTPMP3(url string) (*HTTPMP3Source, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	decoder, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}

	slog.Info("streaming MP3 over HTTP", "url", url, "sample_rate", decoder.SampleRate())

	return &HTTPMP3Source{
		url:        url,
		body:       resp.Body,
		decoder:    decoder,
		sampleRate: decoder.SampleRate(),
	}, nil
}

func (s *HTTPMP3Source) Read(samples []int32) (int, error) {
	n, buf, err := readMP3(s.decoder, s.buf, samples)
	s.buf = buf
	if n > 0 && errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (s *HTTPMP3Source) SampleRate() int { return s.sampleRate }
func (s *HTTPMP3Source) Channels() int   { return 2 }
func (s *HTTPMP3Source) Metadata() (string, string, string) {
	return "HTTP Stream", s.url, ""
}
func (s *HTTPMP3Source) Close() error { return s.body.Close() }
