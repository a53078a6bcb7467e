// ABOUTME: Codec format and sample conversion helpers
// ABOUTME: Converts between 16-bit, 24-bit and packed PCM sample representations
package audio

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes a codec payload ("pcm" or "opus")
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// SampleToInt8 converts int32 sample to unsigned 8-bit PCM
func SampleToInt8(sample int32) uint8 {
	return uint8(int8(sample>>16) ^ -128)
}

// SampleFromInt8 converts unsigned 8-bit PCM to int32 (24-bit range)
func SampleFromInt8(sample uint8) int32 {
	return int32(int8(sample^0x80)) << 16
}

// SampleToInt32 converts a 24-bit range sample to a full-scale 32-bit sample
func SampleToInt32(sample int32) int32 {
	return sample << 8
}

// SampleFromInt32 converts a full-scale 32-bit sample to 24-bit range
func SampleFromInt32(sample int32) int32 {
	return sample >> 8
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	// Take lower 24 bits, pack little-endian
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF // Set upper 8 bits to 1 for negative values
	}
	return val
}
