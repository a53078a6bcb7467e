// ABOUTME: JSON status endpoint for the audio proxy
// ABOUTME: Reports connected devices, registered addresses and open streams
package audioproxy

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/bus"
)

// StreamInfo describes an open proxy stream
type StreamInfo struct {
	Address    string `json:"address"`
	Config     string `json:"config"`
	BufferSize int    `json:"buffer_size"`
	Transport  string `json:"transport"` // "remote", "fallback" or "local"
	Available  int    `json:"available"`
}

// Status is the /status response
type Status struct {
	ServerID   string       `json:"server_id"`
	Name       string       `json:"name"`
	Uptime     string       `json:"uptime"`
	Registered []string     `json:"registered"`
	Devices    []DeviceInfo `json:"devices"`
	Streams    []StreamInfo `json:"streams"`
}

// TransportKind names the kind of transport behind a stream
func TransportKind(s bus.OutputStream) string {
	switch s.(type) {
	case *remoteStream:
		return "remote"
	case *bus.FallbackOutputStream:
		return "fallback"
	default:
		return "local"
	}
}

// Status snapshots the proxy state
func (s *Server) Status() Status {
	provider := s.config.Provider

	st := Status{
		ServerID:   s.serverID,
		Name:       s.config.Name,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Registered: provider.Registry().Addresses(),
		Devices:    s.Devices(),
	}

	for _, out := range provider.StreamOuts() {
		st.Streams = append(st.Streams, StreamInfo{
			Address:    out.Address(),
			Config:     out.Config().String(),
			BufferSize: out.BufferSize(),
			Transport:  TransportKind(out.OutputStream()),
			Available:  out.AvailableToWrite(),
		})
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		slog.Warn("failed to write status", "error", err)
	}
}
