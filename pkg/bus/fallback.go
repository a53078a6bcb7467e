// ABOUTME: Null-object bus device and output stream
// ABOUTME: Stands in for devices that have not registered yet
package bus

import (
	"github.com/Sendspin/audio-proxy/pkg/audio"
)

// FallbackOutputStream accepts no data and succeeds on every control call
type FallbackOutputStream struct {
	address string
	config  audio.StreamConfig
	flags   audio.OutputFlags
}

// NewFallbackOutputStream creates a placeholder stream for the given config
func NewFallbackOutputStream(address string, config audio.StreamConfig, flags audio.OutputFlags) *FallbackOutputStream {
	return &FallbackOutputStream{
		address: address,
		config:  config,
		flags:   flags,
	}
}

func (s *FallbackOutputStream) Address() string            { return s.address }
func (s *FallbackOutputStream) Config() audio.StreamConfig { return s.config }
func (s *FallbackOutputStream) Flags() audio.OutputFlags   { return s.flags }

func (s *FallbackOutputStream) Standby() error                      { return nil }
func (s *FallbackOutputStream) Pause() error                        { return nil }
func (s *FallbackOutputStream) Resume() error                       { return nil }
func (s *FallbackOutputStream) Drain(DrainType) error               { return nil }
func (s *FallbackOutputStream) Flush() error                        { return nil }
func (s *FallbackOutputStream) Close() error                        { return nil }
func (s *FallbackOutputStream) SetVolume(left, right float32) error { return nil }

// AvailableToWrite is always zero
func (s *FallbackOutputStream) AvailableToWrite() int { return 0 }

// Write accepts nothing
func (s *FallbackOutputStream) Write(data []byte) (WriteStatus, error) {
	return WriteStatus{}, nil
}

// IsFallback reports whether a stream is the placeholder transport
func IsFallback(s OutputStream) bool {
	_, ok := s.(*FallbackOutputStream)
	return ok
}

// FallbackDevice opens FallbackOutputStreams. It is returned for addresses
// whose device has not registered, so callers probing early get a harmless
// stream instead of an error.
type FallbackDevice struct{}

// OpenOutputStream never fails
func (FallbackDevice) OpenOutputStream(address string, config audio.StreamConfig, flags audio.OutputFlags) (OutputStream, error) {
	return NewFallbackOutputStream(address, config, flags), nil
}
