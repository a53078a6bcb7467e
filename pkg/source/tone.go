// ABOUTME: Sine wave test tone source
// ABOUTME: Generates a 440Hz tone at half scale on every channel
package source

import (
	"math"
	"sync"
)

// TestToneSource generates a 440Hz test tone
type TestToneSource struct {
	sampleIndex uint64
	sampleMu    sync.Mutex
	frequency   float64
	sampleRate  int
	channels    int
}

// NewTestTone creates a test tone generator. Zero values select the defaults.
func NewTestTone(sampleRate, channels int) *TestToneSource {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	if channels == 0 {
		channels = DefaultChannels
	}

	return &TestToneSource{
		frequency:  440.0, // A4
		sampleRate: sampleRate,
		channels:   channels,
	}
}

func (s *TestToneSource) Read(samples []int32) (int, error) {
	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()

	frames := len(samples) / s.channels

	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.sampleRate)
		v := int32(math.Sin(2*math.Pi*s.frequency*t) * 8388607 * 0.5)

		for ch := 0; ch < s.channels; ch++ {
			samples[i*s.channels+ch] = v
		}
	}

	s.sampleIndex += uint64(frames)
	return frames * s.channels, nil
}

func (s *TestToneSource) SampleRate() int { return s.sampleRate }
func (s *TestToneSource) Channels() int   { return s.channels }
func (s *TestToneSource) Metadata() (string, string, string) {
	return "Test Tone", "Audio Proxy", "Test Signal"
}
func (s *TestToneSource) Close() error { return nil }
