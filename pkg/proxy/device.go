// ABOUTME: Output device facade for bus-backed outputs
// ABOUTME: Validates stream opens, issues patch handles and gates close
package proxy

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Sendspin/audio-proxy/pkg/audio"
)

// DeviceTypeOutBus is the only device type this proxy opens streams on
const DeviceTypeOutBus = "AUDIO_DEVICE_OUT_BUS"

// DeviceAddress identifies the target of an open request
type DeviceAddress struct {
	Type    string
	Address string
}

// RequestedConfig is an audio config as named by the platform
type RequestedConfig struct {
	Format       string
	SampleRateHz uint32
	ChannelMask  string
}

// PortConfig describes one end of an audio patch. Patches perform no
// routing, so the fields are only carried for logging.
type PortConfig struct {
	ID      int32
	Address string
}

// OutputDevice is the per-device entry point of the proxy
type OutputDevice struct {
	provider     *StreamProvider
	bufferSizeMs int
	latencyMs    int

	mu         sync.Mutex
	patches    map[int32]struct{}
	nextHandle int32
}

// NewOutputDevice creates a device over provider. Patch handles start at 1.
func NewOutputDevice(provider *StreamProvider, bufferSizeMs, latencyMs int) *OutputDevice {
	return &OutputDevice{
		provider:     provider,
		bufferSizeMs: bufferSizeMs,
		latencyMs:    latencyMs,
		patches:      make(map[int32]struct{}),
		nextHandle:   1,
	}
}

func (d *OutputDevice) InitCheck() error           { return nil }
func (d *OutputDevice) SupportsAudioPatches() bool { return true }

// Mixing happens upstream; master volume and mic controls are unavailable
func (d *OutputDevice) SetMasterVolume(float32) error { return ErrNotSupported }
func (d *OutputDevice) SetMicMute(bool) error         { return ErrNotSupported }

// OpenInputStream is not supported: bus devices are outputs only
func (d *OutputDevice) OpenInputStream(DeviceAddress, RequestedConfig) error {
	return ErrNotSupported
}

// SetConnectedState accepts and ignores connection changes
func (d *OutputDevice) SetConnectedState(DeviceAddress, bool) error { return nil }

// decodeRequest translates a platform open request. It touches no shared state.
func decodeRequest(dev DeviceAddress, req RequestedConfig, flagNames []string) (audio.StreamConfig, audio.OutputFlags, error) {
	if dev.Type != DeviceTypeOutBus {
		return audio.StreamConfig{}, 0, fmt.Errorf("%w: device type %q is not %s", ErrInvalidArguments, dev.Type, DeviceTypeOutBus)
	}

	format, err := audio.ParseFormat(req.Format)
	if err != nil {
		return audio.StreamConfig{}, 0, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if format == audio.FormatDefault {
		return audio.StreamConfig{}, 0, fmt.Errorf("%w: format %s has no frame size", ErrInvalidArguments, req.Format)
	}

	mask, err := audio.ParseChannelMask(req.ChannelMask)
	if err != nil {
		return audio.StreamConfig{}, 0, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	if req.SampleRateHz == 0 {
		return audio.StreamConfig{}, 0, fmt.Errorf("%w: sample rate must be positive", ErrInvalidArguments)
	}

	flags, err := audio.ParseOutputFlags(flagNames)
	if err != nil {
		return audio.StreamConfig{}, 0, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	config := audio.StreamConfig{
		SampleRateHz: req.SampleRateHz,
		ChannelMask:  mask,
		Format:       format,
	}
	return config, flags, nil
}

// OpenOutputStream validates the request, opens a transport for the bus
// address and wraps it in a StreamOut. Invalid requests fail with
// ErrInvalidArguments before any device lookup.
func (d *OutputDevice) OpenOutputStream(dev DeviceAddress, req RequestedConfig, flags []string) (*StreamOut, error) {
	config, outFlags, err := decodeRequest(dev, req, flags)
	if err != nil {
		slog.Warn("rejected output stream request", "address", dev.Address, "error", err)
		return nil, err
	}

	stream := d.provider.OpenOutputStream(dev.Address, config, outFlags)
	out := NewStreamOut(stream, d.bufferSizeMs, d.latencyMs)
	d.provider.OnStreamOutCreated(out)

	slog.Info("output stream opened", "address", dev.Address, "config", config.String())
	return out, nil
}

// CreatePatch records a new patch and returns its handle
func (d *OutputDevice) CreatePatch(sources, sinks []PortConfig) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocPatchLocked()
}

func (d *OutputDevice) allocPatchLocked() int32 {
	h := d.nextHandle
	d.nextHandle++
	d.patches[h] = struct{}{}
	return h
}

// ReleasePatch forgets handle; unknown handles are ErrInvalidArguments
func (d *OutputDevice) ReleasePatch(handle int32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.patches[handle]; !ok {
		return fmt.Errorf("%w: unknown patch handle %d", ErrInvalidArguments, handle)
	}
	delete(d.patches, handle)
	return nil
}

// UpdatePatch replaces prev with a new handle. If prev is not open nothing
// is allocated.
func (d *OutputDevice) UpdatePatch(prev int32, sources, sinks []PortConfig) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.patches[prev]; !ok {
		return 0, fmt.Errorf("%w: unknown patch handle %d", ErrInvalidArguments, prev)
	}
	delete(d.patches, prev)
	return d.allocPatchLocked(), nil
}

// PatchCount returns the number of open patches
func (d *OutputDevice) PatchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.patches)
}

// Close succeeds only when no stream opened through the provider is still open
func (d *OutputDevice) Close() error {
	if n := d.provider.CleanAndCountStreamOuts(); n > 0 {
		return fmt.Errorf("%w: %d output streams still open", ErrInvalidState, n)
	}
	return nil
}
