// ABOUTME: Registry of live bus devices keyed by address
// ABOUTME: Rejects duplicates, falls back for unknown addresses, evicts on death
package proxy

import (
	"log/slog"
	"sync"
	"weak"

	"github.com/Sendspin/audio-proxy/pkg/bus"
)

type deviceEntry struct {
	device  bus.Device
	address string
	token   uint64
}

// Registry maps bus addresses to registered devices
type Registry struct {
	mu        sync.Mutex
	entries   []deviceEntry
	nextToken uint64
}

// NewRegistry creates an empty registry. Liveness tokens start at 1.
func NewRegistry() *Registry {
	return &Registry{nextToken: 1}
}

// Add registers device under address. It returns false if the address is
// already taken. Devices implementing bus.DeathNotifier are evicted when
// they report their death.
func (r *Registry) Add(address string, device bus.Device) bool {
	r.mu.Lock()
	for _, e := range r.entries {
		if e.address == address {
			r.mu.Unlock()
			slog.Warn("duplicate bus device registration", "address", address)
			return false
		}
	}

	token := r.nextToken
	r.nextToken++
	r.entries = append(r.entries, deviceEntry{device: device, address: address, token: token})
	r.mu.Unlock()

	// Linked outside the lock: a device that is already dead calls back
	// into RemoveByToken immediately.
	if notifier, ok := device.(bus.DeathNotifier); ok {
		ref := weak.Make(r)
		notifier.LinkToDeath(token, func(token uint64) {
			if reg := ref.Value(); reg != nil {
				reg.RemoveByToken(token)
			}
		})
	}

	slog.Info("bus device registered", "address", address, "token", token)
	return true
}

// Get returns the device registered for address, or a fallback device
// whose streams accept nothing when no device has registered yet
func (r *Registry) Get(address string) bus.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.address == address {
			return e.device
		}
	}
	return bus.FallbackDevice{}
}

// Has reports whether a device is registered for address
func (r *Registry) Has(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.address == address {
			return true
		}
	}
	return false
}

// RemoveByToken evicts the entry holding token. Unknown tokens are ignored,
// so a stale death notice never evicts a newer registration of the same
// address.
func (r *Registry) RemoveByToken(token uint64) {
	r.mu.Lock()
	var (
		removed string
		found   bool
	)
	for i, e := range r.entries {
		if e.token == token {
			removed, found = e.address, true
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if found {
		slog.Info("bus device removed", "address", removed, "token", token)
	}
}

// RemoveAll clears every entry
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	n := len(r.entries)
	r.entries = nil
	r.mu.Unlock()

	slog.Info("bus devices cleared", "count", n)
}

// Addresses returns a snapshot of the registered addresses in
// registration order
func (r *Registry) Addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	addrs := make([]string, len(r.entries))
	for i, e := range r.entries {
		addrs[i] = e.address
	}
	return addrs
}

// Len returns the number of registered devices
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
