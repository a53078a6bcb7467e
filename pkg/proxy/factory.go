// ABOUTME: Factory opening output devices for the proxy service
// ABOUTME: Validates service options and binds devices to one stream provider
package proxy

import (
	"fmt"
)

// PrimaryDeviceName is accepted by OpenDevice in addition to the service name
const PrimaryDeviceName = "primary"

// Options configures the devices a factory opens
type Options struct {
	Name         string // service name
	BufferSizeMs int    // buffer window reported by streams
	LatencyMs    int    // latency reported by streams
}

// DevicesFactory opens OutputDevices sharing one StreamProvider
type DevicesFactory struct {
	provider *StreamProvider
	opts     Options
}

// NewDevicesFactory validates opts and creates a factory
func NewDevicesFactory(provider *StreamProvider, opts Options) (*DevicesFactory, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: service name is required", ErrInvalidArguments)
	}
	if opts.BufferSizeMs <= 0 {
		return nil, fmt.Errorf("%w: buffer size must be positive, got %d", ErrInvalidArguments, opts.BufferSizeMs)
	}
	if opts.LatencyMs <= 0 {
		return nil, fmt.Errorf("%w: latency must be positive, got %d", ErrInvalidArguments, opts.LatencyMs)
	}
	return &DevicesFactory{provider: provider, opts: opts}, nil
}

// Provider returns the shared stream provider
func (f *DevicesFactory) Provider() *StreamProvider {
	return f.provider
}

// Options returns the factory's options
func (f *DevicesFactory) Options() Options {
	return f.opts
}

// OpenDevice opens a new OutputDevice for the service name or "primary"
func (f *DevicesFactory) OpenDevice(name string) (*OutputDevice, error) {
	if name != f.opts.Name && name != PrimaryDeviceName {
		return nil, fmt.Errorf("%w: unknown device %q", ErrInvalidArguments, name)
	}
	return NewOutputDevice(f.provider, f.opts.BufferSizeMs, f.opts.LatencyMs), nil
}
