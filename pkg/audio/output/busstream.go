// ABOUTME: Bus output stream backed by a local audio output
// ABOUTME: Lets a bus device play opened streams through a playback backend
package output

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/audio/decode"
	"github.com/Sendspin/audio-proxy/pkg/bus"
)

// ErrStreamClosed is returned by BusStream calls after Close
var ErrStreamClosed = errors.New("stream closed")

// BusStream adapts an Output into a bus.OutputStream
type BusStream struct {
	mu           sync.Mutex
	out          Output
	decoder      decode.Decoder
	address      string
	config       audio.StreamConfig
	flags        audio.OutputFlags
	bufferSize   int
	framesPlayed uint64
	paused       bool
	closed       bool
}

// NewBusStream opens out for a linear PCM config. windowMs sizes the
// capacity reported by AvailableToWrite.
func NewBusStream(out Output, address string, config audio.StreamConfig, flags audio.OutputFlags, windowMs int) (*BusStream, error) {
	format, err := config.PCMFormat()
	if err != nil {
		return nil, err
	}

	decoder, err := decode.NewPCM(format)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := out.Open(format.SampleRate, format.Channels, format.BitDepth); err != nil {
		decoder.Close()
		return nil, fmt.Errorf("failed to open output: %w", err)
	}

	return &BusStream{
		out:        out,
		decoder:    decoder,
		address:    address,
		config:     config,
		flags:      flags,
		bufferSize: config.BufferSize(windowMs),
	}, nil
}

func (s *BusStream) Address() string            { return s.address }
func (s *BusStream) Config() audio.StreamConfig { return s.config }
func (s *BusStream) Flags() audio.OutputFlags   { return s.flags }

func (s *BusStream) setPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.paused = paused
	return nil
}

// Standby stops accepting data until the next write or Resume
func (s *BusStream) Standby() error { return s.setPaused(true) }
func (s *BusStream) Pause() error   { return s.setPaused(true) }
func (s *BusStream) Resume() error  { return s.setPaused(false) }

// Drain returns immediately; writes already block until handed to the backend
func (s *BusStream) Drain(bus.DrainType) error {
	return s.check()
}

// Flush resets the played frame counter
func (s *BusStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.framesPlayed = 0
	return nil
}

func (s *BusStream) SetVolume(left, right float32) error {
	if err := s.check(); err != nil {
		return err
	}
	s.out.SetVolume(left, right)
	return nil
}

func (s *BusStream) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	return nil
}

// AvailableToWrite reports one buffer window while open
func (s *BusStream) AvailableToWrite() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.paused {
		return 0
	}
	return s.bufferSize
}

// Write decodes PCM bytes and plays them. Writing while paused resumes.
func (s *BusStream) Write(data []byte) (bus.WriteStatus, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return bus.WriteStatus{}, ErrStreamClosed
	}
	s.paused = false
	s.mu.Unlock()

	samples, err := s.decoder.Decode(data)
	if err != nil {
		return bus.WriteStatus{}, fmt.Errorf("decode failed: %w", err)
	}

	if err := s.out.Write(samples); err != nil {
		return bus.WriteStatus{}, err
	}

	frameSize := s.config.FrameSize()
	frames := len(data) / frameSize

	s.mu.Lock()
	s.framesPlayed += uint64(frames)
	played := s.framesPlayed
	s.mu.Unlock()

	return bus.WriteStatus{
		Written:      frames * frameSize,
		FramesPlayed: played,
		Timestamp:    time.Now(),
	}, nil
}

// Close closes the backend once; later calls are no-ops
func (s *BusStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.decoder.Close()
	if err := s.out.Close(); err != nil {
		slog.Warn("output close failed", "address", s.address, "error", err)
		return err
	}
	return nil
}
