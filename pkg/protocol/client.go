// ABOUTME: WebSocket client for bus devices
// ABOUTME: Registers an address with the proxy and serves its stream requests
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/audio/decode"
	"github.com/Sendspin/audio-proxy/pkg/audio/encode"
	"github.com/Sendspin/audio-proxy/pkg/bus"
	"github.com/gorilla/websocket"
)

// DefaultPath is the proxy's WebSocket endpoint
const DefaultPath = "/busproxy"

// ErrRejected is returned by Connect when the proxy refuses the address
var ErrRejected = errors.New("registration rejected")

// Handler opens the local sinks that back proxy streams
type Handler interface {
	OpenStream(address string, config audio.StreamConfig, flags audio.OutputFlags) (bus.OutputStream, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(address string, config audio.StreamConfig, flags audio.OutputFlags) (bus.OutputStream, error)

func (f HandlerFunc) OpenStream(address string, config audio.StreamConfig, flags audio.OutputFlags) (bus.OutputStream, error) {
	return f(address, config, flags)
}

// Config holds client configuration
type Config struct {
	ProxyAddr        string // host:port of the proxy
	Path             string // defaults to DefaultPath
	Address          string // bus address to register
	Name             string
	DeviceInfo       DeviceInfo
	SupportedCodecs  []string // defaults to pcm and opus
	Handler          Handler
	HandshakeTimeout time.Duration
}

type clientStream struct {
	sink    bus.OutputStream
	decoder decode.Decoder // set for opus streams
	encoder encode.Encoder // re-encodes decoded opus to the sink's PCM
}

// Client is a bus device's connection to the proxy
type Client struct {
	config Config
	conn   *websocket.Conn

	mu          sync.RWMutex
	connected   bool
	serverHello ServerHello
	streams     map[uint32]*clientStream

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a new client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if len(config.SupportedCodecs) == 0 {
		config.SupportedCodecs = []string{CodecPCM, CodecOpus}
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:  config,
		streams: make(map[uint32]*clientStream),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Connect dials the proxy, registers the address and starts serving requests
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ProxyAddr, Path: c.config.Path}
	slog.Info("connecting to proxy", "url", u.String(), "address", c.config.Address)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		close(c.done)
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		close(c.done)
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

func (c *Client) handshake() error {
	hello := DeviceHello{
		Address:         c.config.Address,
		Name:            c.config.Name,
		Version:         ProtocolVersion,
		SupportedCodecs: c.config.SupportedCodecs,
		DeviceInfo:      &c.config.DeviceInfo,
	}

	if err := c.sendJSON(Message{Type: TypeDeviceHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send device/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	env, err := DecodeEnvelope(data)
	if err != nil {
		return err
	}

	switch env.Type {
	case TypeServerHello:
		var sh ServerHello
		if err := env.Decode(&sh); err != nil {
			return err
		}
		c.mu.Lock()
		c.serverHello = sh
		c.mu.Unlock()
		slog.Info("registered with proxy", "server", sh.Name, "server_id", sh.ServerID, "address", c.config.Address)
		return nil

	case TypeServerReject:
		var rej ServerReject
		if err := env.Decode(&rej); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrRejected, rej.Reason)

	default:
		return fmt.Errorf("expected server/hello, got %s", env.Type)
	}
}

func (c *Client) sendJSON(msg Message) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages until the connection ends
func (c *Client) readMessages() {
	defer close(c.done)
	defer c.closeStreams()
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				slog.Warn("proxy connection lost", "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		default:
			slog.Debug("ignoring websocket message", "type", messageType)
		}
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		slog.Warn("invalid message from proxy", "error", err)
		return
	}

	switch env.Type {
	case TypeStreamOpen:
		var req StreamOpen
		if err := env.Decode(&req); err != nil {
			slog.Warn("invalid stream/open", "error", err)
			return
		}
		c.reply(req.RequestID, c.openStream(req))

	case TypeStreamCommand:
		var cmd StreamCommand
		if err := env.Decode(&cmd); err != nil {
			slog.Warn("invalid stream/command", "error", err)
			return
		}
		c.reply(cmd.RequestID, c.command(cmd))

	case TypeServerReject:
		var rej ServerReject
		env.Decode(&rej)
		slog.Warn("proxy rejected registration", "address", c.config.Address, "reason", rej.Reason)
		c.Close()

	default:
		slog.Debug("unknown message type", "type", env.Type)
	}
}

// replyResult is the outcome of a request; available is the sink's
// capacity when known
type replyResult struct {
	available int
	err       error
}

func (c *Client) reply(requestID string, res replyResult) {
	msg := StreamReply{
		RequestID: requestID,
		OK:        res.err == nil,
		Available: res.available,
	}
	if res.err != nil {
		msg.Error = res.err.Error()
	}
	if err := c.sendJSON(Message{Type: TypeStreamReply, Payload: msg}); err != nil {
		slog.Warn("failed to send stream/reply", "request_id", requestID, "error", err)
	}
}

func (c *Client) openStream(req StreamOpen) replyResult {
	config, err := req.Config.Audio()
	if err != nil {
		return replyResult{err: err}
	}
	flags, err := audio.ParseOutputFlags(req.Flags)
	if err != nil {
		return replyResult{err: err}
	}

	c.mu.RLock()
	_, exists := c.streams[req.StreamID]
	c.mu.RUnlock()
	if exists {
		return replyResult{err: fmt.Errorf("stream %d already open", req.StreamID)}
	}

	cs := &clientStream{}
	if req.Codec == CodecOpus {
		if !OpusEligible(config) {
			return replyResult{err: fmt.Errorf("opus not usable for %s", config)}
		}
		pcm, _ := config.PCMFormat()
		opusFormat := pcm
		opusFormat.Codec = CodecOpus
		if cs.decoder, err = decode.New(opusFormat); err != nil {
			return replyResult{err: err}
		}
		if cs.encoder, err = encode.NewPCM(pcm); err != nil {
			return replyResult{err: err}
		}
	} else if req.Codec != CodecPCM {
		return replyResult{err: fmt.Errorf("unsupported codec: %s", req.Codec)}
	}

	sink, err := c.config.Handler.OpenStream(req.Address, config, flags)
	if err != nil {
		return replyResult{err: fmt.Errorf("failed to open sink: %w", err)}
	}
	cs.sink = sink

	c.mu.Lock()
	c.streams[req.StreamID] = cs
	c.mu.Unlock()

	slog.Info("stream opened", "stream_id", req.StreamID, "address", req.Address,
		"config", config.String(), "codec", req.Codec)
	return replyResult{available: sink.AvailableToWrite()}
}

func (c *Client) stream(id uint32) (*clientStream, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cs, ok := c.streams[id]
	return cs, ok
}

func (c *Client) command(cmd StreamCommand) replyResult {
	cs, ok := c.stream(cmd.StreamID)
	if !ok {
		return replyResult{err: fmt.Errorf("unknown stream %d", cmd.StreamID)}
	}

	var err error
	switch cmd.Command {
	case CommandStandby:
		err = cs.sink.Standby()
	case CommandPause:
		err = cs.sink.Pause()
	case CommandResume:
		err = cs.sink.Resume()
	case CommandFlush:
		err = cs.sink.Flush()
	case CommandDrain:
		dt := bus.DrainAll
		if cmd.DrainType == bus.DrainEarlyNotify.String() {
			dt = bus.DrainEarlyNotify
		}
		err = cs.sink.Drain(dt)
	case CommandVolume:
		err = cs.sink.SetVolume(cmd.Left, cmd.Right)
	case CommandClose:
		c.mu.Lock()
		delete(c.streams, cmd.StreamID)
		c.mu.Unlock()
		err = cs.close()
		slog.Info("stream closed", "stream_id", cmd.StreamID)
		return replyResult{err: err}
	default:
		return replyResult{err: fmt.Errorf("unknown command: %s", cmd.Command)}
	}

	return replyResult{available: cs.sink.AvailableToWrite(), err: err}
}

func (cs *clientStream) close() error {
	if cs.decoder != nil {
		cs.decoder.Close()
	}
	return cs.sink.Close()
}

func (c *Client) handleBinaryMessage(data []byte) {
	id, payload, err := DecodeAudioFrame(data)
	if err != nil {
		slog.Warn("invalid audio frame", "error", err)
		return
	}

	cs, ok := c.stream(id)
	if !ok {
		slog.Debug("audio for unknown stream", "stream_id", id)
		return
	}

	if cs.decoder != nil {
		samples, err := cs.decoder.Decode(payload)
		if err != nil {
			slog.Warn("opus decode failed", "stream_id", id, "error", err)
			return
		}
		if payload, err = cs.encoder.Encode(samples); err != nil {
			slog.Warn("pcm encode failed", "stream_id", id, "error", err)
			return
		}
	}

	status, err := cs.sink.Write(payload)
	if err != nil {
		slog.Warn("sink write failed", "stream_id", id, "error", err)
		return
	}

	report := StreamStatus{
		StreamID:     id,
		Available:    cs.sink.AvailableToWrite(),
		FramesPlayed: status.FramesPlayed,
		Timestamp:    status.Timestamp.UnixMicro(),
	}
	if err := c.sendJSON(Message{Type: TypeStreamStatus, Payload: report}); err != nil {
		slog.Debug("failed to send stream/status", "stream_id", id, "error", err)
	}
}

func (c *Client) closeStreams() {
	c.mu.Lock()
	streams := c.streams
	c.streams = make(map[uint32]*clientStream)
	c.mu.Unlock()

	for id, cs := range streams {
		if err := cs.close(); err != nil {
			slog.Warn("failed to close stream", "stream_id", id, "error", err)
		}
	}
}

// StreamCount returns the number of streams the proxy has open on this device
func (c *Client) StreamCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.streams)
}

// ServerHello returns the proxy's hello
func (c *Client) ServerHello() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverHello
}

// Done is closed once the connection has ended and all sinks are closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendGoodbye sends a device/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.sendJSON(Message{Type: TypeDeviceGoodbye, Payload: DeviceGoodbye{Reason: reason}})
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		slog.Info("proxy connection closed", "address", c.config.Address)
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
