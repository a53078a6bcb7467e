// ABOUTME: Stream provider tying the registry to open stream facades
// ABOUTME: Opens transports, counts open streams and hot-swaps on re-registration
package proxy

import (
	"log/slog"
	"sync"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/bus"
)

// StreamProvider opens transports through a Registry and tracks the
// StreamOut facades created on top of them
type StreamProvider struct {
	registry *Registry

	mu      sync.Mutex
	streams []*StreamOut
}

// NewStreamProvider creates a provider over registry
func NewStreamProvider(registry *Registry) *StreamProvider {
	return &StreamProvider{registry: registry}
}

// Registry returns the underlying registry
func (p *StreamProvider) Registry() *Registry {
	return p.registry
}

// OpenOutputStream opens a transport for address. It never returns nil: if
// the device fails to open a stream, a fallback stream with the requested
// config is returned and a later RegisterDevice can swap in a real one.
func (p *StreamProvider) OpenOutputStream(address string, config audio.StreamConfig, flags audio.OutputFlags) bus.OutputStream {
	device := p.registry.Get(address)

	stream, err := device.OpenOutputStream(address, config, flags)
	if err != nil || stream == nil {
		slog.Warn("bus device failed to open stream, using fallback",
			"address", address, "config", config.String(), "error", err)
		return bus.NewFallbackOutputStream(address, config, flags)
	}
	return stream
}

// OnStreamOutCreated records a newly created facade. A facade still on the
// fallback is rechecked against the registry afterwards: a device that
// registered between OpenOutputStream and this call took its snapshot of
// open streams before s was recorded.
func (p *StreamProvider) OnStreamOutCreated(s *StreamOut) {
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()

	if !bus.IsFallback(s.OutputStream()) || !p.registry.Has(s.Address()) {
		return
	}
	device := p.registry.Get(s.Address())
	if _, fallback := device.(bus.FallbackDevice); fallback {
		return
	}
	slog.Info("device registered while stream was opening, reattaching", "address", s.Address())
	p.reopen(s, device)
}

// CleanAndCountStreamOuts drops closed facades and returns how many remain open
func (p *StreamProvider) CleanAndCountStreamOuts() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	open := p.streams[:0]
	for _, s := range p.streams {
		if !s.Closed() {
			open = append(open, s)
		}
	}
	clear(p.streams[len(open):])
	p.streams = open
	return len(open)
}

// StreamOuts returns a snapshot of the facades that are still open
func (p *StreamProvider) StreamOuts() []*StreamOut {
	p.mu.Lock()
	defer p.mu.Unlock()

	streams := make([]*StreamOut, 0, len(p.streams))
	for _, s := range p.streams {
		if !s.Closed() {
			streams = append(streams, s)
		}
	}
	return streams
}

// RegisterDevice adds device to the registry. On success every open stream
// bound to address gets a fresh transport from device, so streams opened
// before the device (re)appeared start using it.
func (p *StreamProvider) RegisterDevice(address string, device bus.Device) bool {
	if !p.registry.Add(address, device) {
		return false
	}

	for _, s := range p.StreamOuts() {
		if s.Address() == address {
			p.reopen(s, device)
		}
	}
	return true
}

// reopen opens a transport for s on device and swaps it in
func (p *StreamProvider) reopen(s *StreamOut, device bus.Device) {
	address := s.Address()
	next, err := device.OpenOutputStream(address, s.Config(), s.Flags())
	if err != nil {
		slog.Warn("failed to reopen stream on registered device",
			"address", address, "config", s.Config().String(), "error", err)
		return
	}

	if err := s.UpdateTransport(next); err != nil {
		if cerr := next.Close(); cerr != nil {
			slog.Debug("closing rejected transport failed", "address", address, "error", cerr)
		}
	}
}
