// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends
package output

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels, bitDepth int) error

	// Write outputs audio samples (blocks until written)
	Write(samples []int32) error

	// SetVolume sets per-channel gain in the range 0.0-1.0
	SetVolume(left, right float32)

	// Close releases output resources
	Close() error
}
