// ABOUTME: Stream configuration types for bus outputs
// ABOUTME: Defines format codes, channel masks, output flags and frame math
package audio

import (
	"fmt"
	"math/bits"
)

// FormatType is a platform audio format code
type FormatType uint32

const (
	FormatInvalid        FormatType = 0xFFFFFFFF
	FormatDefault        FormatType = 0x0
	FormatPCM16Bit       FormatType = 0x1
	FormatPCM8Bit        FormatType = 0x2
	FormatPCM32Bit       FormatType = 0x3
	FormatPCM8_24Bit     FormatType = 0x4
	FormatPCMFloat       FormatType = 0x5
	FormatPCM24BitPacked FormatType = 0x6
	FormatMP3            FormatType = 0x01000000
	FormatAACLC          FormatType = 0x04000002
	FormatOpus           FormatType = 0x08000000
	FormatAC3            FormatType = 0x09000000
	FormatEAC3           FormatType = 0x0A000000
	FormatDTS            FormatType = 0x0B000000

	formatMainMask FormatType = 0xFF000000
)

// IsLinearPCM reports whether the format is an uncompressed PCM format
func (f FormatType) IsLinearPCM() bool {
	return f != FormatInvalid && f&formatMainMask == 0 && f != FormatDefault
}

// HasProportionalFrames reports whether a frame has a fixed byte size.
// Compressed formats carry opaque bitstreams with no PCM frame concept.
func (f FormatType) HasProportionalFrames() bool {
	return f.IsLinearPCM()
}

// BytesPerSample returns the container size of one sample, or 0 for
// non-PCM formats
func (f FormatType) BytesPerSample() int {
	switch f {
	case FormatPCM8Bit:
		return 1
	case FormatPCM16Bit:
		return 2
	case FormatPCM24BitPacked:
		return 3
	case FormatPCM32Bit, FormatPCM8_24Bit, FormatPCMFloat:
		return 4
	default:
		return 0
	}
}

// BitDepth returns the significant bits per sample for integer PCM formats
func (f FormatType) BitDepth() int {
	switch f {
	case FormatPCM8Bit:
		return 8
	case FormatPCM16Bit:
		return 16
	case FormatPCM24BitPacked, FormatPCM8_24Bit:
		return 24
	case FormatPCM32Bit:
		return 32
	default:
		return 0
	}
}

func (f FormatType) String() string {
	for name, v := range formatNames {
		if v == f {
			return name
		}
	}
	return fmt.Sprintf("AUDIO_FORMAT_0x%08X", uint32(f))
}

// ChannelMask is an output channel position bitmask
type ChannelMask uint32

const (
	ChannelOutFrontLeft          ChannelMask = 0x1
	ChannelOutFrontRight         ChannelMask = 0x2
	ChannelOutFrontCenter        ChannelMask = 0x4
	ChannelOutLowFrequency       ChannelMask = 0x8
	ChannelOutBackLeft           ChannelMask = 0x10
	ChannelOutBackRight          ChannelMask = 0x20
	ChannelOutFrontLeftOfCenter  ChannelMask = 0x40
	ChannelOutFrontRightOfCenter ChannelMask = 0x80
	ChannelOutBackCenter         ChannelMask = 0x100
	ChannelOutSideLeft           ChannelMask = 0x200
	ChannelOutSideRight          ChannelMask = 0x400

	ChannelOutMono    = ChannelOutFrontLeft
	ChannelOutStereo  = ChannelOutFrontLeft | ChannelOutFrontRight
	ChannelOutQuad    = ChannelOutStereo | ChannelOutBackLeft | ChannelOutBackRight
	ChannelOut5Point1 = ChannelOutQuad | ChannelOutFrontCenter | ChannelOutLowFrequency
	ChannelOut7Point1 = ChannelOut5Point1 | ChannelOutSideLeft | ChannelOutSideRight

	ChannelInvalid ChannelMask = 0xC0000000
)

// Count returns the number of channels in the mask
func (m ChannelMask) Count() int {
	if m == ChannelInvalid {
		return 0
	}
	return bits.OnesCount32(uint32(m))
}

// OutputFlags is a bitset of output stream flags
type OutputFlags int32

const (
	OutputFlagNone            OutputFlags = 0x0
	OutputFlagDirect          OutputFlags = 0x1
	OutputFlagPrimary         OutputFlags = 0x2
	OutputFlagFast            OutputFlags = 0x4
	OutputFlagDeepBuffer      OutputFlags = 0x8
	OutputFlagCompressOffload OutputFlags = 0x10
	OutputFlagNonBlocking     OutputFlags = 0x20
	OutputFlagHwAvSync        OutputFlags = 0x40
	OutputFlagTTS             OutputFlags = 0x80
	OutputFlagRaw             OutputFlags = 0x100
	OutputFlagSync            OutputFlags = 0x200
	OutputFlagIEC958NonAudio  OutputFlags = 0x400
	OutputFlagDirectPCM       OutputFlags = 0x2000
	OutputFlagMmapNoIRQ       OutputFlags = 0x4000
	OutputFlagVoIPRx          OutputFlags = 0x8000
)

// Has reports whether all bits of flag are set
func (f OutputFlags) Has(flag OutputFlags) bool {
	return f&flag == flag
}

// StreamConfig is the immutable audio configuration of an opened stream.
// Two configs are equal when all three fields match.
type StreamConfig struct {
	SampleRateHz uint32
	ChannelMask  ChannelMask
	Format       FormatType
}

// Channels returns the channel count of the config
func (c StreamConfig) Channels() int {
	return c.ChannelMask.Count()
}

// FrameSize returns bytes per frame; 1 for formats without proportional frames
func (c StreamConfig) FrameSize() int {
	if !c.Format.HasProportionalFrames() {
		return 1
	}
	return c.ChannelMask.Count() * c.Format.BytesPerSample()
}

// FrameCount returns the number of frames in a window of the given length
func (c StreamConfig) FrameCount(windowMs int) int {
	return int(c.SampleRateHz) * windowMs / 1000
}

// BufferSize returns the byte size of a window of the given length
func (c StreamConfig) BufferSize(windowMs int) int {
	return c.FrameCount(windowMs) * c.FrameSize()
}

// PCMFormat describes the config as a PCM Format for codec construction
func (c StreamConfig) PCMFormat() (Format, error) {
	depth := c.Format.BitDepth()
	if depth == 0 || c.Format == FormatPCM8_24Bit {
		return Format{}, fmt.Errorf("format %s is not packed integer PCM", c.Format)
	}
	return Format{
		Codec:      "pcm",
		SampleRate: int(c.SampleRateHz),
		Channels:   c.Channels(),
		BitDepth:   depth,
	}, nil
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", c.SampleRateHz, c.Channels(), c.Format)
}
