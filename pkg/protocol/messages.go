// ABOUTME: Bus proxy wire protocol message type definitions
// ABOUTME: Defines structs for the JSON control messages and binary audio frames
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audio"
)

// Message types
const (
	TypeDeviceHello   = "device/hello"
	TypeDeviceGoodbye = "device/goodbye"
	TypeServerHello   = "server/hello"
	TypeServerReject  = "server/reject"
	TypeStreamOpen    = "stream/open"
	TypeStreamCommand = "stream/command"
	TypeStreamReply   = "stream/reply"
	TypeStreamStatus  = "stream/status"
)

// Stream commands
const (
	CommandStandby = "standby"
	CommandPause   = "pause"
	CommandResume  = "resume"
	CommandDrain   = "drain"
	CommandFlush   = "flush"
	CommandClose   = "close"
	CommandVolume  = "volume"
)

// Codecs negotiated for stream audio
const (
	CodecPCM  = "pcm"
	CodecOpus = "opus"
)

// ProtocolVersion is the version carried in hello messages
const ProtocolVersion = 1

const (
	// BinaryMessageHeaderSize is the size of the binary header (type byte + stream id)
	BinaryMessageHeaderSize = 1 + 4

	// AudioFrameMessageType is the binary message type ID for stream audio
	AudioFrameMessageType = 8
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is an inbound message with its payload left undecoded
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEnvelope parses a text frame
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to parse message: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("message has no type")
	}
	return env, nil
}

// Decode unmarshals the payload into v
func (e Envelope) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", e.Type, err)
	}
	return nil
}

// DeviceHello is sent by a bus device to register an address
type DeviceHello struct {
	Address         string      `json:"address"`
	Name            string      `json:"name"`
	Version         int         `json:"version"`
	SupportedCodecs []string    `json:"supported_codecs"`
	DeviceInfo      *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello accepts a device registration
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerReject refuses a device registration; the connection is closed after it
type ServerReject struct {
	Reason string `json:"reason"` // "duplicate_address", "invalid_hello"
}

// StreamConfig is an audio config using platform names
type StreamConfig struct {
	Format      string `json:"format"`
	SampleRate  uint32 `json:"sample_rate"`
	ChannelMask string `json:"channel_mask"`
}

// ConfigFromAudio names an audio config for the wire
func ConfigFromAudio(c audio.StreamConfig) StreamConfig {
	return StreamConfig{
		Format:      c.Format.String(),
		SampleRate:  c.SampleRateHz,
		ChannelMask: c.ChannelMask.String(),
	}
}

// Audio decodes the wire config
func (c StreamConfig) Audio() (audio.StreamConfig, error) {
	format, err := audio.ParseFormat(c.Format)
	if err != nil {
		return audio.StreamConfig{}, err
	}
	mask, err := audio.ParseChannelMask(c.ChannelMask)
	if err != nil {
		return audio.StreamConfig{}, err
	}
	return audio.StreamConfig{SampleRateHz: c.SampleRate, ChannelMask: mask, Format: format}, nil
}

// StreamOpen asks the device to open an output stream
type StreamOpen struct {
	RequestID string       `json:"request_id"`
	StreamID  uint32       `json:"stream_id"`
	Address   string       `json:"address"`
	Config    StreamConfig `json:"config"`
	Flags     []string     `json:"flags,omitempty"`
	Codec     string       `json:"codec"` // "pcm" or "opus"
}

// StreamCommand is a control call on an open stream
type StreamCommand struct {
	RequestID string  `json:"request_id"`
	StreamID  uint32  `json:"stream_id"`
	Command   string  `json:"command"`
	DrainType string  `json:"drain_type,omitempty"` // "all" or "early_notify"
	Left      float32 `json:"left,omitempty"`
	Right     float32 `json:"right,omitempty"`
}

// StreamReply answers a stream/open or stream/command
type StreamReply struct {
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Available int    `json:"available"`
}

// StreamStatus reports a stream's capacity and position after a write
type StreamStatus struct {
	StreamID     uint32 `json:"stream_id"`
	Available    int    `json:"available"`
	FramesPlayed uint64 `json:"frames_played"`
	Timestamp    int64  `json:"timestamp"` // Unix microseconds
}

// Time returns the status timestamp
func (s StreamStatus) Time() time.Time {
	return time.UnixMicro(s.Timestamp)
}

// DeviceGoodbye is sent before a device disconnects
type DeviceGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "restart", "user_request"
}

// EncodeAudioFrame builds a binary audio frame for a stream
func EncodeAudioFrame(streamID uint32, payload []byte) []byte {
	frame := make([]byte, BinaryMessageHeaderSize+len(payload))
	frame[0] = AudioFrameMessageType
	binary.BigEndian.PutUint32(frame[1:BinaryMessageHeaderSize], streamID)
	copy(frame[BinaryMessageHeaderSize:], payload)
	return frame
}

// DecodeAudioFrame splits a binary audio frame into stream id and payload
func DecodeAudioFrame(data []byte) (uint32, []byte, error) {
	if len(data) < BinaryMessageHeaderSize {
		return 0, nil, fmt.Errorf("invalid binary message: too short")
	}
	if data[0] != AudioFrameMessageType {
		return 0, nil, fmt.Errorf("unknown binary message type: %d", data[0])
	}
	return binary.BigEndian.Uint32(data[1:BinaryMessageHeaderSize]), data[BinaryMessageHeaderSize:], nil
}
