// ABOUTME: Tests for bus proxy protocol message types
// ABOUTME: Verifies envelopes, config naming, audio frames and codec choice
package protocol

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Sendspin/audio-proxy/pkg/audio"
)

func TestDecodeEnvelope(t *testing.T) {
	open := StreamOpen{
		RequestID: "req-1",
		StreamID:  7,
		Address:   "bus0",
		Config:    StreamConfig{Format: "AUDIO_FORMAT_PCM_16_BIT", SampleRate: 48000, ChannelMask: "AUDIO_CHANNEL_OUT_STEREO"},
		Flags:     []string{"AUDIO_OUTPUT_FLAG_DIRECT"},
		Codec:     CodecPCM,
	}

	data, err := json.Marshal(Message{Type: TypeStreamOpen, Payload: open})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if env.Type != TypeStreamOpen {
		t.Errorf("expected type %s, got %s", TypeStreamOpen, env.Type)
	}

	var decoded StreamOpen
	if err := env.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.StreamID != 7 || decoded.Address != "bus0" || decoded.Config.SampleRate != 48000 {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	for _, input := range []string{`not json`, `{"payload":{}}`} {
		if _, err := DecodeEnvelope([]byte(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestStreamConfigConversion(t *testing.T) {
	cfg := audio.StreamConfig{SampleRateHz: 44100, ChannelMask: audio.ChannelOut5Point1, Format: audio.FormatPCM24BitPacked}

	wire := ConfigFromAudio(cfg)
	if wire.Format != "AUDIO_FORMAT_PCM_24_BIT_PACKED" || wire.ChannelMask != "AUDIO_CHANNEL_OUT_5POINT1" {
		t.Errorf("unexpected wire config %+v", wire)
	}

	back, err := wire.Audio()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back != cfg {
		t.Errorf("expected %v, got %v", cfg, back)
	}

	bad := StreamConfig{Format: "AUDIO_FORMAT_PCM_16_BIT", SampleRate: 48000, ChannelMask: "nope"}
	if _, err := bad.Audio(); err == nil {
		t.Error("expected error for unknown channel mask")
	}
}

func TestAudioFrame(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	frame := EncodeAudioFrame(0x01020304, payload)

	if len(frame) != BinaryMessageHeaderSize+len(payload) {
		t.Fatalf("unexpected frame length %d", len(frame))
	}
	if frame[0] != AudioFrameMessageType {
		t.Errorf("expected type byte %d, got %d", AudioFrameMessageType, frame[0])
	}

	id, got, err := DecodeAudioFrame(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 0x01020304 || !bytes.Equal(got, payload) {
		t.Errorf("decoded id=%x payload=%v", id, got)
	}

	if _, _, err := DecodeAudioFrame([]byte{AudioFrameMessageType, 0}); err == nil {
		t.Error("expected error for short frame")
	}
	if _, _, err := DecodeAudioFrame([]byte{4, 0, 0, 0, 1}); err == nil {
		t.Error("expected error for wrong type")
	}
}

func TestNegotiateCodec(t *testing.T) {
	stereo := audio.StreamConfig{SampleRateHz: 48000, ChannelMask: audio.ChannelOutStereo, Format: audio.FormatPCM16Bit}
	surround := audio.StreamConfig{SampleRateHz: 48000, ChannelMask: audio.ChannelOut5Point1, Format: audio.FormatPCM16Bit}
	cd := audio.StreamConfig{SampleRateHz: 44100, ChannelMask: audio.ChannelOutStereo, Format: audio.FormatPCM16Bit}

	tests := []struct {
		name      string
		supported []string
		config    audio.StreamConfig
		want      string
	}{
		{"opus supported", []string{CodecPCM, CodecOpus}, stereo, CodecOpus},
		{"pcm only device", []string{CodecPCM}, stereo, CodecPCM},
		{"too many channels", []string{CodecOpus}, surround, CodecPCM},
		{"wrong rate", []string{CodecOpus}, cd, CodecPCM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NegotiateCodec(tt.supported, tt.config); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
