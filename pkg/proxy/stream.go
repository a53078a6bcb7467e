// ABOUTME: Output stream facade with a replaceable transport
// ABOUTME: Keeps stream identity and config fixed while transports are swapped
package proxy

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/bus"
)

// StreamOut is the per-stream handle held by the platform-facing layer
type StreamOut struct {
	mu     sync.RWMutex
	stream bus.OutputStream
	closed bool

	// position of the last successful write on the current transport
	lastStatus bus.WriteStatus
	hasStatus  bool

	config       audio.StreamConfig
	address      string
	flags        audio.OutputFlags
	bufferSizeMs int
	latencyMs    int
}

// NewStreamOut wraps stream. The stream's config becomes the facade's
// config for its whole life.
func NewStreamOut(stream bus.OutputStream, bufferSizeMs, latencyMs int) *StreamOut {
	return &StreamOut{
		stream:       stream,
		config:       stream.Config(),
		address:      stream.Address(),
		flags:        stream.Flags(),
		bufferSizeMs: bufferSizeMs,
		latencyMs:    latencyMs,
	}
}

func (s *StreamOut) Address() string            { return s.address }
func (s *StreamOut) Flags() audio.OutputFlags   { return s.flags }
func (s *StreamOut) Config() audio.StreamConfig { return s.config }
func (s *StreamOut) SampleRate() uint32         { return s.config.SampleRateHz }
func (s *StreamOut) ChannelMask() audio.ChannelMask {
	return s.config.ChannelMask
}
func (s *StreamOut) Format() audio.FormatType { return s.config.Format }

// FrameSize returns bytes per frame, 1 for compressed formats
func (s *StreamOut) FrameSize() int { return s.config.FrameSize() }

// FrameCount returns frames per buffer window
func (s *StreamOut) FrameCount() int { return s.config.FrameCount(s.bufferSizeMs) }

// BufferSize returns bytes per buffer window
func (s *StreamOut) BufferSize() int { return s.config.BufferSize(s.bufferSizeMs) }

// Latency returns the configured output latency
func (s *StreamOut) Latency() time.Duration {
	return time.Duration(s.latencyMs) * time.Millisecond
}

func (s *StreamOut) SupportsPauseAndResume() (pause, resume bool) { return true, true }
func (s *StreamOut) SupportsDrain() bool                          { return true }

// The config is fixed once the transport is open
func (s *StreamOut) SetSampleRate(uint32) error             { return ErrNotSupported }
func (s *StreamOut) SetChannelMask(audio.ChannelMask) error { return ErrNotSupported }
func (s *StreamOut) SetFormat(audio.FormatType) error       { return ErrNotSupported }

// OutputStream returns the current transport
func (s *StreamOut) OutputStream() bus.OutputStream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream
}

// Closed reports whether Close has been called
func (s *StreamOut) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// transport returns the current transport. Callers use it without holding
// the lock so a slow transport never stalls UpdateTransport.
func (s *StreamOut) transport() (bus.OutputStream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: stream closed", ErrInvalidState)
	}
	return s.stream, nil
}

func (s *StreamOut) forward(op string, call func(bus.OutputStream) error) error {
	t, err := s.transport()
	if err != nil {
		return err
	}
	if err := call(t); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidState, op, err)
	}
	return nil
}

func (s *StreamOut) Standby() error {
	return s.forward("standby", bus.OutputStream.Standby)
}

func (s *StreamOut) Pause() error {
	return s.forward("pause", bus.OutputStream.Pause)
}

func (s *StreamOut) Resume() error {
	return s.forward("resume", bus.OutputStream.Resume)
}

func (s *StreamOut) Flush() error {
	return s.forward("flush", bus.OutputStream.Flush)
}

func (s *StreamOut) Drain(t bus.DrainType) error {
	return s.forward("drain", func(o bus.OutputStream) error { return o.Drain(t) })
}

func (s *StreamOut) SetVolume(left, right float32) error {
	return s.forward("set volume", func(o bus.OutputStream) error { return o.SetVolume(left, right) })
}

// AvailableToWrite returns the current transport's capacity, 0 once closed
func (s *StreamOut) AvailableToWrite() int {
	t, err := s.transport()
	if err != nil {
		return 0
	}
	return t.AvailableToWrite()
}

// Write forwards data to the current transport and records its position
func (s *StreamOut) Write(data []byte) (bus.WriteStatus, error) {
	t, err := s.transport()
	if err != nil {
		return bus.WriteStatus{}, err
	}

	status, err := t.Write(data)
	if err != nil {
		// UpdateTransport may close t mid-write; the buffer is dropped
		// like any write that raced the swap.
		if s.swappedOut(t) {
			slog.Debug("write dropped on replaced transport", "address", s.address, "error", err)
			return bus.WriteStatus{}, nil
		}
		return bus.WriteStatus{}, fmt.Errorf("%w: write: %v", ErrInvalidState, err)
	}

	// The fallback presents nothing, so its zero status is not a position
	if status.Written == 0 && bus.IsFallback(t) {
		return status, nil
	}

	s.mu.Lock()
	// A write racing a swap reports the old transport's position; drop it
	if s.stream == t {
		s.lastStatus = status
		s.hasStatus = true
	}
	s.mu.Unlock()

	return status, nil
}

// swappedOut reports whether t was replaced while the stream stays open
func (s *StreamOut) swappedOut(t bus.OutputStream) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.stream != t
}

// PresentationPosition returns the frames presented and when, as reported
// by the last write. It is not supported until the current transport has
// accepted a write.
func (s *StreamOut) PresentationPosition() (uint64, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, time.Time{}, fmt.Errorf("%w: stream closed", ErrInvalidState)
	}
	if !s.hasStatus {
		return 0, time.Time{}, ErrNotSupported
	}
	return s.lastStatus.FramesPlayed, s.lastStatus.Timestamp, nil
}

// UpdateTransport replaces the current transport with next when next has
// exactly the stream's config. The previous transport is closed before
// returning. On error nothing changes and the caller still owns next.
func (s *StreamOut) UpdateTransport(next bus.OutputStream) error {
	if next == nil {
		return fmt.Errorf("%w: nil transport", ErrInvalidArguments)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: stream closed", ErrInvalidState)
	}
	if got := next.Config(); got != s.config {
		s.mu.Unlock()
		slog.Warn("rejected transport update",
			"address", s.address, "have", s.config.String(), "got", got.String())
		return fmt.Errorf("%w: have %s, got %s", ErrConfigMismatch, s.config, got)
	}
	prev := s.stream
	s.stream = next
	s.hasStatus = false
	s.mu.Unlock()

	if prev != next {
		if err := prev.Close(); err != nil {
			slog.Warn("closing replaced transport failed", "address", s.address, "error", err)
		}
	}

	slog.Info("stream transport updated", "address", s.address, "config", s.config.String())
	return nil
}

// Close closes the transport. The stream is closed afterwards even if the
// transport reports a failure.
func (s *StreamOut) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: stream already closed", ErrInvalidState)
	}
	s.closed = true
	t := s.stream
	s.mu.Unlock()

	if err := t.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrInvalidState, err)
	}
	return nil
}
