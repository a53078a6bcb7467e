// ABOUTME: Tests for sample conversion helpers
// ABOUTME: Checks each container width against known values and round trips
package audio

import "testing"

func TestSampleConversions(t *testing.T) {
	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"from int16 max", int64(SampleFromInt16(32767)), 32767 << 8},
		{"from int16 min", int64(SampleFromInt16(-32768)), -32768 << 8},
		{"to int16 truncates", int64(SampleToInt16(1000000)), 3906},
		{"to int16 negative floors", int64(SampleToInt16(-1000000)), -3907},
		{"to int32 scales up", int64(SampleToInt32(Max24Bit)), 0x7FFFFF00},
		{"from int32 scales down", int64(SampleFromInt32(-0x80000000)), Min24Bit},
		{"to uint8 midpoint", int64(SampleToInt8(0)), 128},
		{"to uint8 max", int64(SampleToInt8(Max24Bit)), 255},
		{"from uint8 min", int64(SampleFromInt8(0)), -128 << 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %d, want %d", tt.got, tt.want)
			}
		})
	}
}

func TestSample24BitPacking(t *testing.T) {
	tests := []struct {
		name   string
		sample int32
		packed [3]byte
	}{
		{"zero", 0, [3]byte{0, 0, 0}},
		{"positive", 0x123456, [3]byte{0x56, 0x34, 0x12}},
		{"negative", -256, [3]byte{0x00, 0xFF, 0xFF}},
		{"max", Max24Bit, [3]byte{0xFF, 0xFF, 0x7F}},
		{"min", Min24Bit, [3]byte{0x00, 0x00, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SampleTo24Bit(tt.sample); got != tt.packed {
				t.Errorf("SampleTo24Bit(%d) = %v, want %v", tt.sample, got, tt.packed)
			}
			if got := SampleFrom24Bit(tt.packed); got != tt.sample {
				t.Errorf("SampleFrom24Bit(%v) = %d, want %d", tt.packed, got, tt.sample)
			}
		})
	}
}

func TestSample16BitRoundTrip(t *testing.T) {
	for _, v := range []int16{0, 100, -100, 32767, -32768} {
		if got := SampleToInt16(SampleFromInt16(v)); got != v {
			t.Errorf("round trip %d gave %d", v, got)
		}
	}
}
