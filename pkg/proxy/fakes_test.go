// ABOUTME: Test doubles for bus devices and output streams
// ABOUTME: Record calls and simulate transport failures and device death
package proxy

import (
	"errors"
	"sync"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/bus"
)

var errTransport = errors.New("transport failure")

type fakeStream struct {
	mu        sync.Mutex
	address   string
	config    audio.StreamConfig
	flags     audio.OutputFlags
	calls     []string
	fail      bool
	closed    int
	written   int
	available int
}

func newFakeStream(address string, config audio.StreamConfig) *fakeStream {
	return &fakeStream{address: address, config: config, available: 1024}
}

func (s *fakeStream) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
	if op == "close" {
		s.closed++
	}
	if s.fail {
		return errTransport
	}
	return nil
}

func (s *fakeStream) Address() string            { return s.address }
func (s *fakeStream) Config() audio.StreamConfig { return s.config }
func (s *fakeStream) Flags() audio.OutputFlags   { return s.flags }

func (s *fakeStream) Standby() error                      { return s.record("standby") }
func (s *fakeStream) Pause() error                        { return s.record("pause") }
func (s *fakeStream) Resume() error                       { return s.record("resume") }
func (s *fakeStream) Drain(bus.DrainType) error           { return s.record("drain") }
func (s *fakeStream) Flush() error                        { return s.record("flush") }
func (s *fakeStream) Close() error                        { return s.record("close") }
func (s *fakeStream) SetVolume(left, right float32) error { return s.record("volume") }

func (s *fakeStream) AvailableToWrite() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

func (s *fakeStream) Write(data []byte) (bus.WriteStatus, error) {
	if err := s.record("write"); err != nil {
		return bus.WriteStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written += len(data)
	frames := uint64(s.written / s.config.FrameSize())
	return bus.WriteStatus{Written: len(data), FramesPlayed: frames, Timestamp: time.Unix(0, int64(frames))}, nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) lastCall() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return ""
	}
	return s.calls[len(s.calls)-1]
}

// fakeDevice opens fakeStreams and can be killed to fire death recipients
type fakeDevice struct {
	mu         sync.Mutex
	opened     []*fakeStream
	openErr    error
	recipients map[uint64]func(uint64)
	dead       bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{recipients: make(map[uint64]func(uint64))}
}

func (d *fakeDevice) OpenOutputStream(address string, config audio.StreamConfig, flags audio.OutputFlags) (bus.OutputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := newFakeStream(address, config)
	s.flags = flags
	d.opened = append(d.opened, s)
	return s, nil
}

func (d *fakeDevice) LinkToDeath(token uint64, recipient func(uint64)) {
	d.mu.Lock()
	if d.dead {
		d.mu.Unlock()
		recipient(token)
		return
	}
	d.recipients[token] = recipient
	d.mu.Unlock()
}

func (d *fakeDevice) die() {
	d.mu.Lock()
	d.dead = true
	recipients := d.recipients
	d.recipients = make(map[uint64]func(uint64))
	d.mu.Unlock()

	for token, r := range recipients {
		r(token)
	}
}

func (d *fakeDevice) tokens() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var tokens []uint64
	for t := range d.recipients {
		tokens = append(tokens, t)
	}
	return tokens
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened)
}

// plainDevice has no death notification capability
type plainDevice struct{}

func (plainDevice) OpenOutputStream(address string, config audio.StreamConfig, flags audio.OutputFlags) (bus.OutputStream, error) {
	return newFakeStream(address, config), nil
}

func pcm16Stereo48k() audio.StreamConfig {
	return audio.StreamConfig{SampleRateHz: 48000, ChannelMask: audio.ChannelOutStereo, Format: audio.FormatPCM16Bit}
}
