// ABOUTME: Remote bus device and stream backed by a WebSocket connection
// ABOUTME: Turns bus.Device and bus.OutputStream calls into protocol requests
package audioproxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/audio/decode"
	"github.com/Sendspin/audio-proxy/pkg/audio/encode"
	"github.com/Sendspin/audio-proxy/pkg/bus"
	"github.com/Sendspin/audio-proxy/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrDeviceGone is returned when the device connection has ended
	ErrDeviceGone = errors.New("bus device disconnected")

	// ErrRequestTimeout is returned when a device does not answer in time
	ErrRequestTimeout = errors.New("bus device request timed out")
)

// closeAfterSend tells the writer to close the connection once drained up to it
type closeAfterSend struct{}

// remoteDevice is a connected bus device
type remoteDevice struct {
	conn        *websocket.Conn
	hello       protocol.DeviceHello
	timeout     time.Duration
	connectedAt time.Time

	sendChan chan interface{}
	done     chan struct{}
	deadOnce sync.Once

	mu           sync.Mutex
	dead         bool
	recipients   map[uint64]func(uint64)
	pending      map[string]chan protocol.StreamReply
	streams      map[uint32]*remoteStream
	nextStreamID uint32
}

func newRemoteDevice(conn *websocket.Conn, hello protocol.DeviceHello, timeout time.Duration) *remoteDevice {
	return &remoteDevice{
		conn:         conn,
		hello:        hello,
		timeout:      timeout,
		connectedAt:  time.Now(),
		sendChan:     make(chan interface{}, 100),
		done:         make(chan struct{}),
		recipients:   make(map[uint64]func(uint64)),
		pending:      make(map[string]chan protocol.StreamReply),
		streams:      make(map[uint32]*remoteStream),
		nextStreamID: 1,
	}
}

func (d *remoteDevice) info() DeviceInfo {
	d.mu.Lock()
	n := len(d.streams)
	d.mu.Unlock()

	return DeviceInfo{
		Address:     d.hello.Address,
		Name:        d.hello.Name,
		Codecs:      d.hello.SupportedCodecs,
		Streams:     n,
		ConnectedAt: d.connectedAt,
	}
}

// LinkToDeath registers a recipient for the loss of the connection
func (d *remoteDevice) LinkToDeath(token uint64, recipient func(uint64)) {
	d.mu.Lock()
	if d.dead {
		d.mu.Unlock()
		recipient(token)
		return
	}
	d.recipients[token] = recipient
	d.mu.Unlock()
}

// markDead ends the device: pending requests fail and death recipients run
func (d *remoteDevice) markDead() {
	d.deadOnce.Do(func() {
		d.mu.Lock()
		d.dead = true
		close(d.done)
		recipients := d.recipients
		d.recipients = nil
		d.pending = make(map[string]chan protocol.StreamReply)
		d.mu.Unlock()

		d.conn.Close()

		for token, recipient := range recipients {
			recipient(token)
		}
	})
}

func (d *remoteDevice) isDead() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// writer owns all writes to the connection
func (d *remoteDevice) writer() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return

		case msg := <-d.sendChan:
			switch v := msg.(type) {
			case closeAfterSend:
				d.conn.Close()
				return
			case []byte:
				d.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := d.conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					d.conn.Close()
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					slog.Warn("failed to marshal message", "address", d.hello.Address, "error", err)
					continue
				}
				d.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := d.conn.WriteMessage(websocket.TextMessage, data); err != nil {
					d.conn.Close()
					return
				}
			}

		case <-ticker.C:
			if err := d.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				d.conn.Close()
				return
			}
		}
	}
}

// send queues a message or binary frame for the writer
func (d *remoteDevice) send(msg interface{}) error {
	select {
	case <-d.done:
		return ErrDeviceGone
	default:
	}

	select {
	case d.sendChan <- msg:
		return nil
	case <-d.done:
		return ErrDeviceGone
	}
}

// rejectAndClose queues a rejection followed by the end of the connection
func (d *remoteDevice) rejectAndClose(reason string) {
	d.send(protocol.Message{Type: protocol.TypeServerReject, Payload: protocol.ServerReject{Reason: reason}})
	d.send(closeAfterSend{})
}

// request sends a message carrying requestID and waits for its reply
func (d *remoteDevice) request(requestID string, msg protocol.Message) (protocol.StreamReply, error) {
	ch := make(chan protocol.StreamReply, 1)

	d.mu.Lock()
	if d.dead {
		d.mu.Unlock()
		return protocol.StreamReply{}, ErrDeviceGone
	}
	d.pending[requestID] = ch
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, requestID)
		d.mu.Unlock()
	}()

	if err := d.send(msg); err != nil {
		return protocol.StreamReply{}, err
	}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		if !reply.OK {
			return reply, fmt.Errorf("device %s: %s", d.hello.Address, reply.Error)
		}
		return reply, nil
	case <-timer.C:
		return protocol.StreamReply{}, fmt.Errorf("%w: %s", ErrRequestTimeout, msg.Type)
	case <-d.done:
		return protocol.StreamReply{}, ErrDeviceGone
	}
}

// OpenOutputStream opens a stream on the device
func (d *remoteDevice) OpenOutputStream(address string, config audio.StreamConfig, flags audio.OutputFlags) (bus.OutputStream, error) {
	codec := protocol.NegotiateCodec(d.hello.SupportedCodecs, config)

	s := &remoteStream{
		device:  d,
		address: address,
		config:  config,
		flags:   flags,
		codec:   codec,
	}

	if codec == protocol.CodecOpus {
		pcm, err := config.PCMFormat()
		if err != nil {
			return nil, err
		}
		if s.decoder, err = decode.New(pcm); err != nil {
			return nil, err
		}
		opusFormat := pcm
		opusFormat.Codec = protocol.CodecOpus
		if s.encoder, err = encode.NewOpus(opusFormat); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	if d.dead {
		d.mu.Unlock()
		return nil, ErrDeviceGone
	}
	s.id = d.nextStreamID
	d.nextStreamID++
	d.streams[s.id] = s
	d.mu.Unlock()

	requestID := uuid.New().String()
	reply, err := d.request(requestID, protocol.Message{
		Type: protocol.TypeStreamOpen,
		Payload: protocol.StreamOpen{
			RequestID: requestID,
			StreamID:  s.id,
			Address:   address,
			Config:    protocol.ConfigFromAudio(config),
			Flags:     flags.Names(),
			Codec:     codec,
		},
	})
	if err != nil {
		d.forget(s.id)
		return nil, fmt.Errorf("failed to open stream on %s: %w", address, err)
	}

	s.mu.Lock()
	s.available = reply.Available
	s.mu.Unlock()

	slog.Info("remote stream opened", "address", address, "stream_id", s.id,
		"config", config.String(), "codec", codec)
	return s, nil
}

func (d *remoteDevice) forget(id uint32) {
	d.mu.Lock()
	delete(d.streams, id)
	d.mu.Unlock()
}

// readLoop routes device messages until the connection ends
func (d *remoteDevice) readLoop() {
	for {
		messageType, data, err := d.conn.ReadMessage()
		if err != nil {
			if !d.isDead() {
				slog.Debug("device read ended", "address", d.hello.Address, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			slog.Debug("ignoring non-text message from device", "address", d.hello.Address)
			continue
		}

		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			slog.Warn("invalid message from device", "address", d.hello.Address, "error", err)
			continue
		}

		switch env.Type {
		case protocol.TypeStreamReply:
			var reply protocol.StreamReply
			if err := env.Decode(&reply); err != nil {
				slog.Warn("invalid stream/reply", "error", err)
				continue
			}
			d.resolve(reply)

		case protocol.TypeStreamStatus:
			var status protocol.StreamStatus
			if err := env.Decode(&status); err != nil {
				slog.Warn("invalid stream/status", "error", err)
				continue
			}
			d.mu.Lock()
			s, ok := d.streams[status.StreamID]
			d.mu.Unlock()
			if ok {
				s.updateStatus(status)
			}

		case protocol.TypeDeviceGoodbye:
			var bye protocol.DeviceGoodbye
			env.Decode(&bye)
			slog.Info("device goodbye", "address", d.hello.Address, "reason", bye.Reason)
			return

		default:
			slog.Debug("unknown message type from device", "type", env.Type)
		}
	}
}

func (d *remoteDevice) resolve(reply protocol.StreamReply) {
	d.mu.Lock()
	ch, ok := d.pending[reply.RequestID]
	d.mu.Unlock()

	if !ok {
		slog.Debug("reply for unknown request", "request_id", reply.RequestID)
		return
	}
	select {
	case ch <- reply:
	default:
	}
}

// remoteStream is an output stream carried over a device connection.
// Once the device is gone it behaves like the fallback stream.
type remoteStream struct {
	device  *remoteDevice
	id      uint32
	address string
	config  audio.StreamConfig
	flags   audio.OutputFlags
	codec   string

	decoder decode.Decoder      // PCM bytes to samples, opus streams only
	encoder *encode.OpusEncoder // opus streams only

	mu         sync.Mutex
	closed     bool
	available  int
	pendingPCM []int32
	status     bus.WriteStatus
}

func (s *remoteStream) Address() string            { return s.address }
func (s *remoteStream) Config() audio.StreamConfig { return s.config }
func (s *remoteStream) Flags() audio.OutputFlags   { return s.flags }

func (s *remoteStream) updateStatus(st protocol.StreamStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = st.Available
	s.status.FramesPlayed = st.FramesPlayed
	s.status.Timestamp = st.Time()
}

func (s *remoteStream) command(cmd protocol.StreamCommand) error {
	if s.device.isDead() {
		return nil
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("stream %d is closed", s.id)
	}

	cmd.RequestID = uuid.New().String()
	cmd.StreamID = s.id
	reply, err := s.device.request(cmd.RequestID, protocol.Message{Type: protocol.TypeStreamCommand, Payload: cmd})
	if errors.Is(err, ErrDeviceGone) {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.available = reply.Available
	s.mu.Unlock()
	return nil
}

func (s *remoteStream) Standby() error {
	return s.command(protocol.StreamCommand{Command: protocol.CommandStandby})
}

func (s *remoteStream) Pause() error {
	return s.command(protocol.StreamCommand{Command: protocol.CommandPause})
}

func (s *remoteStream) Resume() error {
	return s.command(protocol.StreamCommand{Command: protocol.CommandResume})
}

func (s *remoteStream) Flush() error {
	s.mu.Lock()
	s.pendingPCM = s.pendingPCM[:0]
	s.mu.Unlock()
	return s.command(protocol.StreamCommand{Command: protocol.CommandFlush})
}

func (s *remoteStream) Drain(t bus.DrainType) error {
	return s.command(protocol.StreamCommand{Command: protocol.CommandDrain, DrainType: t.String()})
}

func (s *remoteStream) SetVolume(left, right float32) error {
	return s.command(protocol.StreamCommand{Command: protocol.CommandVolume, Left: left, Right: right})
}

// Close ends the stream on the device
func (s *remoteStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.command(protocol.StreamCommand{Command: protocol.CommandClose})

	s.mu.Lock()
	s.closed = true
	s.pendingPCM = nil
	s.mu.Unlock()
	s.device.forget(s.id)

	if s.encoder != nil {
		s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
	return err
}

// AvailableToWrite returns the device's last reported capacity less what
// has been sent since
func (s *remoteStream) AvailableToWrite() int {
	if s.device.isDead() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return s.available
}

// Write sends audio to the device. Opus streams buffer partial 20ms frames.
func (s *remoteStream) Write(data []byte) (bus.WriteStatus, error) {
	if s.device.isDead() {
		return bus.WriteStatus{}, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return bus.WriteStatus{}, fmt.Errorf("stream %d is closed", s.id)
	}

	var frames [][]byte
	if s.encoder == nil {
		frames = append(frames, protocol.EncodeAudioFrame(s.id, data))
	} else {
		samples, err := s.decoder.Decode(data)
		if err != nil {
			s.mu.Unlock()
			return bus.WriteStatus{}, err
		}
		s.pendingPCM = append(s.pendingPCM, samples...)
		n := s.encoder.FrameSamples()
		for len(s.pendingPCM) >= n {
			packet, err := s.encoder.Encode(s.pendingPCM[:n])
			if err != nil {
				s.mu.Unlock()
				return bus.WriteStatus{}, err
			}
			frames = append(frames, protocol.EncodeAudioFrame(s.id, packet))
			s.pendingPCM = s.pendingPCM[n:]
		}
		// Keep the leftover in a fresh slice so the buffer does not grow
		s.pendingPCM = append([]int32(nil), s.pendingPCM...)
	}

	s.available -= len(data)
	if s.available < 0 {
		s.available = 0
	}
	status := s.status
	s.mu.Unlock()

	for _, frame := range frames {
		if err := s.device.send(frame); err != nil {
			if errors.Is(err, ErrDeviceGone) {
				return bus.WriteStatus{}, nil
			}
			return bus.WriteStatus{}, err
		}
	}

	status.Written = len(data)
	return status, nil
}
