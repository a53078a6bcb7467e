// ABOUTME: String decoders for audio formats, channel masks and output flags
// ABOUTME: Translates platform configuration strings into StreamConfig values
package audio

import (
	"fmt"
	"strings"
)

var formatNames = map[string]FormatType{
	"AUDIO_FORMAT_DEFAULT":           FormatDefault,
	"AUDIO_FORMAT_PCM_16_BIT":        FormatPCM16Bit,
	"AUDIO_FORMAT_PCM_8_BIT":         FormatPCM8Bit,
	"AUDIO_FORMAT_PCM_32_BIT":        FormatPCM32Bit,
	"AUDIO_FORMAT_PCM_8_24_BIT":      FormatPCM8_24Bit,
	"AUDIO_FORMAT_PCM_FLOAT":         FormatPCMFloat,
	"AUDIO_FORMAT_PCM_24_BIT_PACKED": FormatPCM24BitPacked,
	"AUDIO_FORMAT_MP3":               FormatMP3,
	"AUDIO_FORMAT_AAC_LC":            FormatAACLC,
	"AUDIO_FORMAT_OPUS":              FormatOpus,
	"AUDIO_FORMAT_AC3":               FormatAC3,
	"AUDIO_FORMAT_E_AC3":             FormatEAC3,
	"AUDIO_FORMAT_DTS":               FormatDTS,
}

var channelMaskNames = map[string]ChannelMask{
	"AUDIO_CHANNEL_OUT_MONO":                  ChannelOutMono,
	"AUDIO_CHANNEL_OUT_STEREO":                ChannelOutStereo,
	"AUDIO_CHANNEL_OUT_QUAD":                  ChannelOutQuad,
	"AUDIO_CHANNEL_OUT_5POINT1":               ChannelOut5Point1,
	"AUDIO_CHANNEL_OUT_7POINT1":               ChannelOut7Point1,
	"AUDIO_CHANNEL_OUT_FRONT_LEFT":            ChannelOutFrontLeft,
	"AUDIO_CHANNEL_OUT_FRONT_RIGHT":           ChannelOutFrontRight,
	"AUDIO_CHANNEL_OUT_FRONT_CENTER":          ChannelOutFrontCenter,
	"AUDIO_CHANNEL_OUT_LOW_FREQUENCY":         ChannelOutLowFrequency,
	"AUDIO_CHANNEL_OUT_BACK_LEFT":             ChannelOutBackLeft,
	"AUDIO_CHANNEL_OUT_BACK_RIGHT":            ChannelOutBackRight,
	"AUDIO_CHANNEL_OUT_FRONT_LEFT_OF_CENTER":  ChannelOutFrontLeftOfCenter,
	"AUDIO_CHANNEL_OUT_FRONT_RIGHT_OF_CENTER": ChannelOutFrontRightOfCenter,
	"AUDIO_CHANNEL_OUT_BACK_CENTER":           ChannelOutBackCenter,
	"AUDIO_CHANNEL_OUT_SIDE_LEFT":             ChannelOutSideLeft,
	"AUDIO_CHANNEL_OUT_SIDE_RIGHT":            ChannelOutSideRight,
}

var outputFlagNames = map[string]OutputFlags{
	"AUDIO_OUTPUT_FLAG_NONE":             OutputFlagNone,
	"AUDIO_OUTPUT_FLAG_DIRECT":           OutputFlagDirect,
	"AUDIO_OUTPUT_FLAG_PRIMARY":          OutputFlagPrimary,
	"AUDIO_OUTPUT_FLAG_FAST":             OutputFlagFast,
	"AUDIO_OUTPUT_FLAG_DEEP_BUFFER":      OutputFlagDeepBuffer,
	"AUDIO_OUTPUT_FLAG_COMPRESS_OFFLOAD": OutputFlagCompressOffload,
	"AUDIO_OUTPUT_FLAG_NON_BLOCKING":     OutputFlagNonBlocking,
	"AUDIO_OUTPUT_FLAG_HW_AV_SYNC":       OutputFlagHwAvSync,
	"AUDIO_OUTPUT_FLAG_TTS":              OutputFlagTTS,
	"AUDIO_OUTPUT_FLAG_RAW":              OutputFlagRaw,
	"AUDIO_OUTPUT_FLAG_SYNC":             OutputFlagSync,
	"AUDIO_OUTPUT_FLAG_IEC958_NONAUDIO":  OutputFlagIEC958NonAudio,
	"AUDIO_OUTPUT_FLAG_DIRECT_PCM":       OutputFlagDirectPCM,
	"AUDIO_OUTPUT_FLAG_MMAP_NOIRQ":       OutputFlagMmapNoIRQ,
	"AUDIO_OUTPUT_FLAG_VOIP_RX":          OutputFlagVoIPRx,
}

// ParseFormat decodes a format name such as AUDIO_FORMAT_PCM_16_BIT
func ParseFormat(s string) (FormatType, error) {
	f, ok := formatNames[strings.TrimSpace(s)]
	if !ok {
		return FormatInvalid, fmt.Errorf("unknown audio format: %q", s)
	}
	return f, nil
}

// ParseChannelMask decodes a named mask (AUDIO_CHANNEL_OUT_STEREO) or a
// "|"-separated list of channel positions
func ParseChannelMask(s string) (ChannelMask, error) {
	var mask ChannelMask
	for _, part := range strings.Split(s, "|") {
		m, ok := channelMaskNames[strings.TrimSpace(part)]
		if !ok {
			return ChannelInvalid, fmt.Errorf("unknown channel mask: %q", s)
		}
		mask |= m
	}
	return mask, nil
}

// ParseOutputFlag decodes a single output flag name
func ParseOutputFlag(s string) (OutputFlags, error) {
	f, ok := outputFlagNames[strings.TrimSpace(s)]
	if !ok {
		return OutputFlagNone, fmt.Errorf("unknown output flag: %q", s)
	}
	return f, nil
}

// ParseOutputFlags decodes and ORs a list of output flag names
func ParseOutputFlags(names []string) (OutputFlags, error) {
	flags := OutputFlagNone
	for _, name := range names {
		f, err := ParseOutputFlag(name)
		if err != nil {
			return OutputFlagNone, err
		}
		flags |= f
	}
	return flags, nil
}

// String names a channel mask. Masks without a single name are written as
// a "|"-separated list of positions, which ParseChannelMask accepts.
func (m ChannelMask) String() string {
	if m == ChannelInvalid {
		return "AUDIO_CHANNEL_INVALID"
	}
	for _, name := range []string{
		"AUDIO_CHANNEL_OUT_MONO",
		"AUDIO_CHANNEL_OUT_STEREO",
		"AUDIO_CHANNEL_OUT_QUAD",
		"AUDIO_CHANNEL_OUT_5POINT1",
		"AUDIO_CHANNEL_OUT_7POINT1",
	} {
		if channelMaskNames[name] == m {
			return name
		}
	}

	var parts []string
	for bit := ChannelMask(1); bit != 0 && bit <= m; bit <<= 1 {
		if m&bit == 0 {
			continue
		}
		name, ok := positionName(bit)
		if !ok {
			return fmt.Sprintf("AUDIO_CHANNEL_0x%08X", uint32(m))
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "|")
}

var channelPositions = []string{
	"AUDIO_CHANNEL_OUT_FRONT_LEFT",
	"AUDIO_CHANNEL_OUT_FRONT_RIGHT",
	"AUDIO_CHANNEL_OUT_FRONT_CENTER",
	"AUDIO_CHANNEL_OUT_LOW_FREQUENCY",
	"AUDIO_CHANNEL_OUT_BACK_LEFT",
	"AUDIO_CHANNEL_OUT_BACK_RIGHT",
	"AUDIO_CHANNEL_OUT_FRONT_LEFT_OF_CENTER",
	"AUDIO_CHANNEL_OUT_FRONT_RIGHT_OF_CENTER",
	"AUDIO_CHANNEL_OUT_BACK_CENTER",
	"AUDIO_CHANNEL_OUT_SIDE_LEFT",
	"AUDIO_CHANNEL_OUT_SIDE_RIGHT",
}

func positionName(bit ChannelMask) (string, bool) {
	for _, name := range channelPositions {
		if channelMaskNames[name] == bit {
			return name, true
		}
	}
	return "", false
}

// Names returns the flag names set in f, in bit order
func (f OutputFlags) Names() []string {
	var names []string
	for bit := OutputFlags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit == 0 {
			continue
		}
		for name, v := range outputFlagNames {
			if v == bit {
				names = append(names, name)
				break
			}
		}
	}
	return names
}
