// ABOUTME: Tests for the audio proxy server
// ABOUTME: Connects real protocol clients over httptest and drives proxy streams
package audioproxy

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/bus"
	"github.com/Sendspin/audio-proxy/pkg/protocol"
	"github.com/Sendspin/audio-proxy/pkg/proxy"
	"github.com/gorilla/websocket"
)

var cd44k = audio.StreamConfig{SampleRateHz: 44100, ChannelMask: audio.ChannelOutStereo, Format: audio.FormatPCM16Bit}

// sink records what a device-side stream receives
type sink struct {
	*bus.FallbackOutputStream
	mu      sync.Mutex
	written []byte
	calls   []string
	closed  bool
}

func (s *sink) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return nil
}

func (s *sink) Pause() error  { return s.record("pause") }
func (s *sink) Resume() error { return s.record("resume") }
func (s *sink) Flush() error  { return s.record("flush") }

func (s *sink) Drain(t bus.DrainType) error { return s.record("drain:" + t.String()) }

func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sink) AvailableToWrite() int { return 512 }

func (s *sink) Write(data []byte) (bus.WriteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, data...)
	return bus.WriteStatus{
		Written:      len(data),
		FramesPlayed: uint64(len(s.written) / 4),
		Timestamp:    time.UnixMicro(int64(len(s.written))),
	}, nil
}

func (s *sink) bytesWritten() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

func (s *sink) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *sink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// testDevice is a protocol client whose handler keeps every sink it opens
type testDevice struct {
	client *protocol.Client
	mu     sync.Mutex
	sinks  []*sink
}

func (d *testDevice) lastSink() *sink {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sinks) == 0 {
		return nil
	}
	return d.sinks[len(d.sinks)-1]
}

type harness struct {
	t        *testing.T
	registry *proxy.Registry
	provider *proxy.StreamProvider
	server   *Server
	http     *httptest.Server
}

func newHarness(t *testing.T, timeout time.Duration) *harness {
	t.Helper()
	registry := proxy.NewRegistry()
	provider := proxy.NewStreamProvider(registry)

	server, err := NewServer(ServerConfig{Name: "Test Proxy", Provider: provider, RequestTimeout: timeout})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &harness{t: t, registry: registry, provider: provider, server: server, http: ts}
}

func (h *harness) addr() string {
	return strings.TrimPrefix(h.http.URL, "http://")
}

func (h *harness) connect(address string) (*testDevice, error) {
	d := &testDevice{}
	d.client = protocol.NewClient(protocol.Config{
		ProxyAddr:       h.addr(),
		Address:         address,
		Name:            "Test " + address,
		SupportedCodecs: []string{protocol.CodecPCM},
		Handler: protocol.HandlerFunc(func(addr string, config audio.StreamConfig, flags audio.OutputFlags) (bus.OutputStream, error) {
			s := &sink{FallbackOutputStream: bus.NewFallbackOutputStream(addr, config, flags)}
			d.mu.Lock()
			d.sinks = append(d.sinks, s)
			d.mu.Unlock()
			return s, nil
		}),
	})
	if err := d.client.Connect(); err != nil {
		return nil, err
	}
	h.t.Cleanup(d.client.Close)
	return d, nil
}

func (h *harness) mustConnect(address string) *testDevice {
	h.t.Helper()
	d, err := h.connect(address)
	if err != nil {
		h.t.Fatalf("connect %s failed: %v", address, err)
	}
	h.waitFor("device registered", func() bool {
		_, fallback := h.registry.Get(address).(bus.FallbackDevice)
		return !fallback
	})
	return d
}

func (h *harness) waitFor(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %s", what)
}

func TestNewServerRequiresProvider(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("expected error without a stream provider")
	}

	s, err := NewServer(ServerConfig{Provider: proxy.NewStreamProvider(proxy.NewRegistry())})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.config.Port != DefaultPort || s.config.Name != DefaultName || s.config.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("defaults not applied: %+v", s.config)
	}
	if s.ServerID() == "" {
		t.Error("expected a server id")
	}
}

func TestDeviceRegistersAndServesStream(t *testing.T) {
	h := newHarness(t, time.Second)
	dev := h.mustConnect("bus0")

	if hello := dev.client.ServerHello(); hello.ServerID != h.server.ServerID() || hello.Name != "Test Proxy" {
		t.Errorf("unexpected server hello %+v", hello)
	}

	stream, err := h.registry.Get("bus0").OpenOutputStream("bus0", cd44k, audio.OutputFlagPrimary)
	if err != nil {
		t.Fatalf("OpenOutputStream failed: %v", err)
	}
	if TransportKind(stream) != "remote" {
		t.Fatalf("expected remote transport, got %s", TransportKind(stream))
	}
	if stream.AvailableToWrite() != 512 {
		t.Errorf("expected available 512 from open reply, got %d", stream.AvailableToWrite())
	}

	s := dev.lastSink()
	if s == nil || s.Config() != cd44k || s.Flags() != audio.OutputFlagPrimary {
		t.Fatalf("device sink not opened with stream config: %+v", s)
	}

	status, err := stream.Write(make([]byte, 400))
	if err != nil || status.Written != 400 {
		t.Fatalf("Write = %+v, %v", status, err)
	}
	h.waitFor("audio delivered", func() bool { return s.bytesWritten() == 400 })

	rs := stream.(*remoteStream)
	h.waitFor("status refresh", func() bool {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		return rs.status.FramesPlayed == 100
	})
	if stream.AvailableToWrite() != 512 {
		t.Errorf("expected credit refreshed to 512, got %d", stream.AvailableToWrite())
	}

	status, _ = stream.Write(make([]byte, 4))
	if status.FramesPlayed != 100 {
		t.Errorf("expected last reported position 100, got %d", status.FramesPlayed)
	}

	for _, call := range []func() error{stream.Pause, stream.Resume, stream.Flush, func() error { return stream.Drain(bus.DrainEarlyNotify) }} {
		if err := call(); err != nil {
			t.Fatalf("command failed: %v", err)
		}
	}
	want := []string{"pause", "resume", "flush", "drain:early_notify"}
	if got := s.callLog(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("sink calls = %v, want %v", got, want)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !s.isClosed() || dev.client.StreamCount() != 0 {
		t.Error("expected device stream closed")
	}
	if stream.AvailableToWrite() != 0 {
		t.Error("closed stream should report no capacity")
	}
}

func TestDuplicateAddressRejected(t *testing.T) {
	h := newHarness(t, time.Second)
	h.mustConnect("bus0")

	_, err := h.connect("bus0")
	if !errors.Is(err, protocol.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), RejectDuplicateAddress) {
		t.Errorf("expected reason %q in %v", RejectDuplicateAddress, err)
	}
	if len(h.server.Devices()) != 1 {
		t.Errorf("expected one connected device, got %d", len(h.server.Devices()))
	}
}

func TestInProcessDeviceBlocksRemote(t *testing.T) {
	h := newHarness(t, time.Second)
	h.registry.Add("bus0", bus.FallbackDevice{})

	if _, err := h.connect("bus0"); !errors.Is(err, protocol.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func dialRaw(t *testing.T, h *harness) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+h.addr()+protocol.DefaultPath, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return env
}

func TestInvalidHelloRejected(t *testing.T) {
	h := newHarness(t, time.Second)

	tests := []struct {
		name string
		msg  protocol.Message
	}{
		{"missing address", protocol.Message{Type: protocol.TypeDeviceHello, Payload: protocol.DeviceHello{Name: "x"}}},
		{"wrong type", protocol.Message{Type: protocol.TypeStreamStatus, Payload: protocol.StreamStatus{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := dialRaw(t, h)
			if err := conn.WriteJSON(tt.msg); err != nil {
				t.Fatalf("write failed: %v", err)
			}

			env := readEnvelope(t, conn)
			if env.Type != protocol.TypeServerReject {
				t.Fatalf("expected server/reject, got %s", env.Type)
			}
			var rej protocol.ServerReject
			env.Decode(&rej)
			if rej.Reason != RejectInvalidHello {
				t.Errorf("expected reason %q, got %q", RejectInvalidHello, rej.Reason)
			}
		})
	}
}

func TestDisconnectEvictsDevice(t *testing.T) {
	h := newHarness(t, time.Second)
	dev := h.mustConnect("bus0")

	stream, err := h.registry.Get("bus0").OpenOutputStream("bus0", cd44k, audio.OutputFlagNone)
	if err != nil {
		t.Fatalf("OpenOutputStream failed: %v", err)
	}

	dev.client.Close()

	h.waitFor("device evicted", func() bool {
		_, fallback := h.registry.Get("bus0").(bus.FallbackDevice)
		return fallback
	})
	h.waitFor("device removed", func() bool { return len(h.server.Devices()) == 0 })

	// A stream on a lost device behaves like the fallback
	if err := stream.Pause(); err != nil {
		t.Errorf("Pause on lost device = %v, want nil", err)
	}
	if status, err := stream.Write(make([]byte, 16)); err != nil || status.Written != 0 {
		t.Errorf("Write on lost device = %+v, %v", status, err)
	}
	if stream.AvailableToWrite() != 0 {
		t.Error("lost device stream should report no capacity")
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Close on lost device = %v, want nil", err)
	}
}

func TestGoodbyeEvictsDevice(t *testing.T) {
	h := newHarness(t, time.Second)
	dev := h.mustConnect("bus0")

	if err := dev.client.SendGoodbye("shutdown"); err != nil {
		t.Fatalf("SendGoodbye failed: %v", err)
	}

	h.waitFor("device evicted", func() bool { return h.registry.Len() == 0 })
	select {
	case <-dev.client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected the proxy to close the connection after goodbye")
	}
}

func TestReconnectSwapsOpenStreams(t *testing.T) {
	h := newHarness(t, time.Second)
	device := proxy.NewOutputDevice(h.provider, 20, 10)

	out, err := device.OpenOutputStream(
		proxy.DeviceAddress{Type: proxy.DeviceTypeOutBus, Address: "bus0"},
		proxy.RequestedConfig{Format: "AUDIO_FORMAT_PCM_16_BIT", SampleRateHz: 44100, ChannelMask: "AUDIO_CHANNEL_OUT_STEREO"},
		nil,
	)
	if err != nil {
		t.Fatalf("OpenOutputStream failed: %v", err)
	}
	if TransportKind(out.OutputStream()) != "fallback" {
		t.Fatalf("expected fallback before the device connects, got %s", TransportKind(out.OutputStream()))
	}

	first := h.mustConnect("bus0")
	h.waitFor("swap to first device", func() bool {
		return TransportKind(out.OutputStream()) == "remote" && first.client.StreamCount() == 1
	})

	first.client.Close()
	h.waitFor("first device evicted", func() bool { return h.registry.Len() == 0 })

	second := h.mustConnect("bus0")
	h.waitFor("swap to second device", func() bool {
		rs, ok := out.OutputStream().(*remoteStream)
		return ok && !rs.device.isDead() && second.client.StreamCount() == 1
	})

	if _, err := out.Write(make([]byte, 64)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	s := second.lastSink()
	h.waitFor("audio on second device", func() bool { return s.bytesWritten() == 64 })
	if first.lastSink().bytesWritten() != 0 {
		t.Error("first device should not receive audio after the swap")
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := device.Close(); err != nil {
		t.Errorf("device Close after stream close = %v", err)
	}
	h.waitFor("second sink closed", s.isClosed)
}

func TestRequestTimeout(t *testing.T) {
	h := newHarness(t, 100*time.Millisecond)

	conn := dialRaw(t, h)
	conn.WriteJSON(protocol.Message{Type: protocol.TypeDeviceHello, Payload: protocol.DeviceHello{Address: "slow", SupportedCodecs: []string{protocol.CodecPCM}}})
	if env := readEnvelope(t, conn); env.Type != protocol.TypeServerHello {
		t.Fatalf("expected server/hello, got %s", env.Type)
	}
	conn.SetReadDeadline(time.Time{})

	// Read and ignore every request
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.waitFor("device registered", func() bool { return h.registry.Len() == 1 })

	start := time.Now()
	_, err := h.registry.Get("slow").OpenOutputStream("slow", cd44k, audio.OutputFlagNone)
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := newHarness(t, time.Second)
	h.mustConnect("bus0")

	out := proxy.NewStreamOut(h.provider.OpenOutputStream("bus7", cd44k, audio.OutputFlagNone), 20, 10)
	h.provider.OnStreamOutCreated(out)

	resp, err := http.Get(h.http.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	defer resp.Body.Close()

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if st.ServerID != h.server.ServerID() {
		t.Errorf("unexpected server id %q", st.ServerID)
	}
	if len(st.Devices) != 1 || st.Devices[0].Address != "bus0" {
		t.Errorf("unexpected devices %+v", st.Devices)
	}
	if len(st.Registered) != 1 || st.Registered[0] != "bus0" {
		t.Errorf("unexpected registered addresses %v", st.Registered)
	}
	if len(st.Streams) != 1 || st.Streams[0].Address != "bus7" || st.Streams[0].Transport != "fallback" {
		t.Errorf("unexpected streams %+v", st.Streams)
	}

	post, err := http.Post(h.http.URL+"/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", post.StatusCode)
	}
}
