// ABOUTME: WebSocket server registering remote bus devices with the proxy
// ABOUTME: Handles device handshakes, connection lifecycle, status and mDNS
package audioproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Sendspin/audio-proxy/internal/discovery"
	"github.com/Sendspin/audio-proxy/pkg/protocol"
	"github.com/Sendspin/audio-proxy/pkg/proxy"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultPort           = 8928
	DefaultName           = "Audio Proxy"
	DefaultRequestTimeout = 2 * time.Second

	helloTimeout  = 5 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Reject reasons sent in server/reject
const (
	RejectDuplicateAddress = "duplicate_address"
	RejectInvalidHello     = "invalid_hello"
	RejectShuttingDown     = "shutting_down"
)

// ServerConfig configures an audio proxy server
type ServerConfig struct {
	// Port to listen on (default: 8928)
	Port int

	// Name of the server for identification
	Name string

	// Provider receives device registrations (required)
	Provider *proxy.StreamProvider

	// RequestTimeout bounds each control request to a device (default: 2s)
	RequestTimeout time.Duration

	// EnableMDNS enables mDNS service advertisement
	EnableMDNS bool
}

// Server accepts remote bus devices
type Server struct {
	config   ServerConfig
	serverID string
	started  time.Time

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	devices   map[string]*remoteDevice
	devicesMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// DeviceInfo describes a connected bus device
type DeviceInfo struct {
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	Codecs      []string  `json:"codecs"`
	Streams     int       `json:"streams"`
	ConnectedAt time.Time `json:"connected_at"`
}

// NewServer creates a new audio proxy server
func NewServer(config ServerConfig) (*Server, error) {
	if config.Provider == nil {
		return nil, fmt.Errorf("stream provider is required")
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = DefaultName
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		started:  time.Now(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Bus devices are local network peers, not browsers
				return true
			},
		},
		devices:  make(map[string]*remoteDevice),
		stopChan: make(chan struct{}),
	}

	s.mux.HandleFunc(protocol.DefaultPath, s.handleWebSocket)
	s.mux.HandleFunc("/status", s.handleStatus)

	return s, nil
}

// ServerID returns the server's unique id
func (s *Server) ServerID() string {
	return s.serverID
}

// Handler returns the HTTP handler serving /busproxy and /status
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens for devices and blocks until Stop is called
func (s *Server) Start() error {
	slog.Info("audio proxy starting", "name", s.config.Name, "server_id", s.serverID, "port", s.config.Port)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			slog.Warn("failed to start mDNS advertisement", "error", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("websocket server listening", "addr", addr, "path", protocol.DefaultPath)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serveErr error
	select {
	case <-s.stopChan:
		slog.Info("audio proxy shutting down")
	case serveErr = <-errChan:
		slog.Error("http server error", "error", serveErr)
	}

	s.shutdown()
	return serveErr
}

// shutdown refuses new devices and drops every connected one
func (s *Server) shutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "error", err)
		}
	}

	// Hijacked websocket connections are not closed by Shutdown
	s.devicesMu.RLock()
	for _, d := range s.devices {
		d.conn.Close()
	}
	s.devicesMu.RUnlock()

	s.wg.Wait()
	slog.Info("audio proxy stopped")
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Devices returns information about all connected devices
func (s *Server) Devices() []DeviceInfo {
	s.devicesMu.RLock()
	defer s.devicesMu.RUnlock()

	devices := make([]DeviceInfo, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, d.info())
	}
	slices.SortFunc(devices, func(a, b DeviceInfo) int {
		if a.Address < b.Address {
			return -1
		}
		if a.Address > b.Address {
			return 1
		}
		return 0
	})
	return devices
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade error", "error", err)
		return
	}

	slog.Debug("new websocket connection", "remote", r.RemoteAddr)

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(conn)
}

func (s *Server) reject(conn *websocket.Conn, reason string) {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	conn.WriteJSON(protocol.Message{Type: protocol.TypeServerReject, Payload: protocol.ServerReject{Reason: reason}})
}

func (s *Server) readHello(conn *websocket.Conn) (protocol.DeviceHello, error) {
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.DeviceHello{}, fmt.Errorf("failed to read hello: %w", err)
	}

	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		return protocol.DeviceHello{}, err
	}
	if env.Type != protocol.TypeDeviceHello {
		return protocol.DeviceHello{}, fmt.Errorf("expected %s, got %s", protocol.TypeDeviceHello, env.Type)
	}

	var hello protocol.DeviceHello
	if err := env.Decode(&hello); err != nil {
		return protocol.DeviceHello{}, err
	}
	if hello.Address == "" {
		return protocol.DeviceHello{}, fmt.Errorf("device hello missing address")
	}
	return hello, nil
}

// handleConnection manages one device connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	shuttingDown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shuttingDown {
		s.reject(conn, RejectShuttingDown)
		return
	}

	hello, err := s.readHello(conn)
	if err != nil {
		slog.Warn("rejecting device", "error", err)
		s.reject(conn, RejectInvalidHello)
		return
	}

	d := newRemoteDevice(conn, hello, s.config.RequestTimeout)

	s.devicesMu.Lock()
	if _, exists := s.devices[hello.Address]; exists {
		s.devicesMu.Unlock()
		slog.Warn("bus address already connected, rejecting duplicate", "address", hello.Address)
		s.reject(conn, RejectDuplicateAddress)
		return
	}
	// A device registered in-process holds the address too
	if s.config.Provider.Registry().Has(hello.Address) {
		s.devicesMu.Unlock()
		slog.Warn("bus address already registered, rejecting device", "address", hello.Address)
		s.reject(conn, RejectDuplicateAddress)
		return
	}
	s.devices[hello.Address] = d
	s.devicesMu.Unlock()

	// Eviction and removal happen together so a reconnect never sees one
	// without the other
	defer func() {
		s.devicesMu.Lock()
		d.markDead()
		delete(s.devices, hello.Address)
		s.devicesMu.Unlock()
		slog.Info("bus device disconnected", "address", hello.Address, "name", hello.Name)
	}()

	slog.Info("bus device hello", "address", hello.Address, "name", hello.Name, "codecs", hello.SupportedCodecs)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		d.writer()
	}()

	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.ProtocolVersion,
	}
	if err := d.send(protocol.Message{Type: protocol.TypeServerHello, Payload: serverHello}); err != nil {
		slog.Warn("failed to send server hello", "address", hello.Address, "error", err)
		return
	}

	// Registration reopens existing streams on this device and waits for
	// replies, so it runs beside the read loop
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if !s.config.Provider.RegisterDevice(hello.Address, d) {
			d.rejectAndClose(RejectDuplicateAddress)
		}
	}()

	d.readLoop()
}
