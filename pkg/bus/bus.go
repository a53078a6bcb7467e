// ABOUTME: Bus device and output stream interfaces
// ABOUTME: The transport contract between the proxy and a bus device
package bus

import (
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audio"
)

// DrainType selects how a drain completes
type DrainType int

const (
	// DrainAll waits until all written data has been played
	DrainAll DrainType = iota
	// DrainEarlyNotify returns shortly before the last track ends
	DrainEarlyNotify
)

func (d DrainType) String() string {
	switch d {
	case DrainAll:
		return "all"
	case DrainEarlyNotify:
		return "early_notify"
	default:
		return "unknown"
	}
}

// WriteStatus reports the result of a write and the playback position
type WriteStatus struct {
	Written      int       // bytes accepted by this write
	FramesPlayed uint64    // frames presented so far
	Timestamp    time.Time // when FramesPlayed was observed
}

// OutputStream is the transport a bus device provides for one opened output
type OutputStream interface {
	// Address returns the bus address the stream was opened on
	Address() string

	// Config returns the stream's audio configuration
	Config() audio.StreamConfig

	// Flags returns the output flags the stream was opened with
	Flags() audio.OutputFlags

	Standby() error
	Pause() error
	Resume() error
	Drain(DrainType) error
	Flush() error
	SetVolume(left, right float32) error

	// Close releases the stream; the device stops backing it
	Close() error

	// AvailableToWrite returns how many bytes a Write can accept right now
	AvailableToWrite() int

	// Write sends PCM (or compressed) bytes to the device
	Write(data []byte) (WriteStatus, error)
}

// Device is a bus device able to open output streams
type Device interface {
	OpenOutputStream(address string, config audio.StreamConfig, flags audio.OutputFlags) (OutputStream, error)
}

// DeathNotifier is implemented by devices that can report their own loss.
// The recipient is invoked at most once per link, with the token it was
// linked with. Linking after the device has died invokes the recipient
// immediately.
type DeathNotifier interface {
	LinkToDeath(token uint64, recipient func(token uint64))
}
