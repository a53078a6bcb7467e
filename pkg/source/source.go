// ABOUTME: Audio source interface and constructor by path
// ABOUTME: Dispatches to tone, MP3, FLAC, WAV and HTTP MP3 sources
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
)

// AudioSource provides PCM audio samples
type AudioSource interface {
	// Read reads interleaved samples in 24-bit range into the buffer and
	// returns how many were read
	Read(samples []int32) (int, error)

	SampleRate() int
	Channels() int

	// Metadata returns title, artist, album
	Metadata() (title, artist, album string)

	Close() error
}

// Open creates a source from a file path or HTTP URL. An empty path gives
// a test tone. File sources loop at end of file.
func Open(pathOrURL string) (AudioSource, error) {
	if pathOrURL == "" {
		return NewTestTone(DefaultSampleRate, DefaultChannels), nil
	}

	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return NewHTTPMP3(pathOrURL)
	}

	if _, err := os.Stat(pathOrURL); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", pathOrURL)
	}

	switch ext := strings.ToLower(filepath.Ext(pathOrURL)); ext {
	case ".mp3":
		return NewMP3(pathOrURL)
	case ".flac":
		return NewFLAC(pathOrURL)
	case ".wav":
		return NewWAV(pathOrURL)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac, .wav)", ext)
	}
}

func titleFromPath(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// scaleTo24 moves a sample of the given bit depth into 24-bit range
func scaleTo24(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth == 24:
		return sample
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	default:
		return sample >> (bitDepth - 24)
	}
}
