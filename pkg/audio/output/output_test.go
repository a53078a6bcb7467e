// ABOUTME: Audio output tests
// ABOUTME: Verifies gain handling and the bus stream adapter
package output

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/bus"
)

type fakeOutput struct {
	rate, channels, depth int
	written               []int32
	left, right           float32
	opened, closed        int
	openErr               error
}

func (f *fakeOutput) Open(sampleRate, channels, bitDepth int) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.rate, f.channels, f.depth = sampleRate, channels, bitDepth
	f.opened++
	return nil
}

func (f *fakeOutput) Write(samples []int32) error {
	f.written = append(f.written, samples...)
	return nil
}

func (f *fakeOutput) SetVolume(left, right float32) { f.left, f.right = left, right }

func (f *fakeOutput) Close() error {
	f.closed++
	return nil
}

func TestOtoImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
}

func TestBusStreamImplementsOutputStream(t *testing.T) {
	var _ bus.OutputStream = (*BusStream)(nil)
}

func TestApplyGain(t *testing.T) {
	samples := []int32{1000, 1000, -1000, -1000}

	got := applyGain(samples, 2, 0.5, 0.0)
	want := []int32{500, 0, -500, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	mono := applyGain([]int32{1000, 1000}, 1, 0.25, 1.0)
	if mono[0] != 250 || mono[1] != 250 {
		t.Errorf("mono should use left gain only, got %v", mono)
	}
}

func TestApplyGainClamps(t *testing.T) {
	got := applyGain([]int32{audio.Max24Bit, audio.Min24Bit}, 2, 1.0, 1.0)
	if got[0] != audio.Max24Bit || got[1] != audio.Min24Bit {
		t.Errorf("expected samples within 24-bit range, got %v", got)
	}
}

func TestClampGain(t *testing.T) {
	tests := []struct {
		in, want float32
	}{
		{-0.5, 0}, {0, 0}, {0.3, 0.3}, {1, 1}, {2, 1},
	}
	for _, tt := range tests {
		if got := clampGain(tt.in); got != tt.want {
			t.Errorf("clampGain(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func stereo16() audio.StreamConfig {
	return audio.StreamConfig{SampleRateHz: 48000, ChannelMask: audio.ChannelOutStereo, Format: audio.FormatPCM16Bit}
}

func TestNewBusStreamOpensOutput(t *testing.T) {
	out := &fakeOutput{}
	s, err := NewBusStream(out, "bus0", stereo16(), audio.OutputFlagNone, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.rate != 48000 || out.channels != 2 || out.depth != 16 {
		t.Errorf("output opened with %d/%d/%d", out.rate, out.channels, out.depth)
	}
	if s.AvailableToWrite() != 3840 {
		t.Errorf("expected 3840 available, got %d", s.AvailableToWrite())
	}
}

func TestNewBusStreamRejectsCompressed(t *testing.T) {
	cfg := stereo16()
	cfg.Format = audio.FormatAC3

	out := &fakeOutput{}
	if _, err := NewBusStream(out, "bus0", cfg, audio.OutputFlagNone, 20); err == nil {
		t.Fatal("expected error for compressed format")
	}
	if out.opened != 0 {
		t.Error("output should not be opened")
	}
}

func TestNewBusStreamOpenFailure(t *testing.T) {
	out := &fakeOutput{openErr: errors.New("no device")}
	if _, err := NewBusStream(out, "bus0", stereo16(), audio.OutputFlagNone, 20); err == nil {
		t.Fatal("expected open error")
	}
}

func TestBusStreamWrite(t *testing.T) {
	out := &fakeOutput{}
	s, err := NewBusStream(out, "bus0", stereo16(), audio.OutputFlagNone, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two frames plus a stray byte
	data := make([]byte, 9)
	binary.LittleEndian.PutUint16(data[0:], uint16(int16(100)))
	binary.LittleEndian.PutUint16(data[2:], uint16(int16(-100)))

	status, err := s.Write(data)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if status.Written != 8 {
		t.Errorf("expected 8 bytes written, got %d", status.Written)
	}
	if status.FramesPlayed != 2 {
		t.Errorf("expected 2 frames played, got %d", status.FramesPlayed)
	}
	if len(out.written) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(out.written))
	}
	if out.written[0] != audio.SampleFromInt16(100) {
		t.Errorf("unexpected first sample %d", out.written[0])
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	status, _ = s.Write(data[:4])
	if status.FramesPlayed != 1 {
		t.Errorf("flush should reset position, got %d", status.FramesPlayed)
	}
}

func TestBusStreamPauseAndResume(t *testing.T) {
	s, _ := NewBusStream(&fakeOutput{}, "bus0", stereo16(), audio.OutputFlagNone, 20)

	if err := s.Pause(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if s.AvailableToWrite() != 0 {
		t.Error("paused stream should report no capacity")
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if s.AvailableToWrite() == 0 {
		t.Error("resumed stream should report capacity")
	}

	s.Standby()
	s.Write(make([]byte, 4))
	if s.AvailableToWrite() == 0 {
		t.Error("write should leave standby")
	}
}

func TestBusStreamVolumeAndClose(t *testing.T) {
	out := &fakeOutput{}
	s, _ := NewBusStream(out, "bus0", stereo16(), audio.OutputFlagNone, 20)

	if err := s.SetVolume(0.2, 0.8); err != nil {
		t.Fatalf("set volume failed: %v", err)
	}
	if out.left != 0.2 || out.right != 0.8 {
		t.Errorf("volume not forwarded: %v/%v", out.left, out.right)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	s.Close()
	if out.closed != 1 {
		t.Errorf("expected output closed once, got %d", out.closed)
	}

	if _, err := s.Write(make([]byte, 4)); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed, got %v", err)
	}
	if err := s.Pause(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed from pause, got %v", err)
	}
	if err := s.Drain(bus.DrainAll); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed from drain, got %v", err)
	}
}
