// ABOUTME: Output that records PCM to a WAV file
// ABOUTME: Uses the go-audio WAV encoder so a bus device can capture streams
package output

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAVFile writes everything it is given to a WAV file at path. Depths
// other than 16 bit are recorded as 24 bit.
type WAVFile struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	enc         *wav.Encoder
	buf         *goaudio.IntBuffer
	depth       int
	channels    int
	left, right float32
	frames      uint64
}

func NewWAVFile(path string) *WAVFile {
	return &WAVFile{path: path, left: 1, right: 1}
}

// Path returns the file being recorded
func (w *WAVFile) Path() string { return w.path }

// Frames returns the frames written since Open
func (w *WAVFile) Frames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

func (w *WAVFile) Open(sampleRate, channels, bitDepth int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return fmt.Errorf("wav output %s already open", w.path)
	}
	if bitDepth != 16 {
		bitDepth = 24
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", w.path, err)
	}

	w.file = f
	w.enc = wav.NewEncoder(f, sampleRate, bitDepth, channels, wavFormatPCM)
	w.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}
	w.depth = bitDepth
	w.channels = channels
	w.frames = 0

	slog.Info("recording to wav", "path", w.path, "sample_rate", sampleRate, "channels", channels, "bit_depth", bitDepth)
	return nil
}

// Write takes interleaved samples in 24-bit range
func (w *WAVFile) Write(samples []int32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		return fmt.Errorf("output not initialized")
	}

	gained := applyGain(samples, w.channels, w.left, w.right)
	data := w.buf.Data[:0]
	for _, s := range gained {
		if w.depth == 16 {
			data = append(data, int(audio.SampleToInt16(s)))
		} else {
			data = append(data, int(s))
		}
	}
	w.buf.Data = data

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	w.frames += uint64(len(samples) / w.channels)
	return nil
}

func (w *WAVFile) SetVolume(left, right float32) {
	w.mu.Lock()
	w.left = clampGain(left)
	w.right = clampGain(right)
	w.mu.Unlock()
}

// Close finalizes the WAV header and closes the file
func (w *WAVFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	encErr := w.enc.Close()
	fileErr := w.file.Close()
	w.file, w.enc = nil, nil

	if encErr != nil {
		return fmt.Errorf("failed to finalize %s: %w", w.path, encErr)
	}
	return fileErr
}
