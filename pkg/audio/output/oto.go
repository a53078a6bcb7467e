// ABOUTME: Oto-based audio output implementation
// ABOUTME: Handles PCM playback with per-channel software gain using oto library
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so every Oto output shares it
var (
	sharedCtxMu         sync.Mutex
	sharedCtx           *oto.Context
	sharedRate, sharedN int
)

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	channels   int
	left       float32
	right      float32
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{
		left:  1.0,
		right: 1.0,
	}
}

func otoContext(sampleRate, channels int) (*oto.Context, error) {
	sharedCtxMu.Lock()
	defer sharedCtxMu.Unlock()

	if sharedCtx != nil {
		if sharedRate != sampleRate || sharedN != channels {
			return nil, fmt.Errorf("oto context already running at %dHz/%dch, cannot open %dHz/%dch",
				sharedRate, sharedN, sampleRate, channels)
		}
		if err := sharedCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return sharedCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	sharedCtx = ctx
	sharedRate = sampleRate
	sharedN = channels
	return ctx, nil
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels, bitDepth int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return fmt.Errorf("output already open")
	}

	// oto only supports 16-bit output; samples are narrowed on write
	if bitDepth != 16 {
		slog.Debug("oto output narrows samples to 16-bit", "requested_bit_depth", bitDepth)
	}

	ctx, err := otoContext(sampleRate, channels)
	if err != nil {
		return err
	}

	o.channels = channels

	// Create pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()

	// Create persistent player that reads from the pipe
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()

	o.ready = true

	slog.Info("audio output initialized", "sample_rate", sampleRate, "channels", channels)
	return nil
}

// Write outputs audio samples (blocks until written)
func (o *Oto) Write(samples []int32) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}
	left, right, channels, w := o.left, o.right, o.channels, o.pipeWriter
	o.mu.Unlock()

	gained := applyGain(samples, channels, left, right)

	// Convert to little-endian int16 for oto
	buf := make([]byte, len(gained)*2)
	for i, s := range gained {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(audio.SampleToInt16(s)))
	}

	// Write to pipe (which feeds the persistent player)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// SetVolume sets per-channel gain (0.0-1.0)
func (o *Oto) SetVolume(left, right float32) {
	o.mu.Lock()
	o.left = clampGain(left)
	o.right = clampGain(right)
	o.mu.Unlock()
	slog.Debug("volume set", "left", left, "right", right)
}

// Close releases output resources. The shared context is suspended so a
// later Open at the same format can resume it.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return nil
	}
	o.ready = false

	o.pipeWriter.Close()
	if err := o.player.Close(); err != nil {
		slog.Warn("oto player close failed", "error", err)
	}
	o.pipeReader.Close()
	o.player = nil

	sharedCtxMu.Lock()
	defer sharedCtxMu.Unlock()
	if sharedCtx != nil {
		if err := sharedCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}

func clampGain(g float32) float32 {
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}

// applyGain scales interleaved samples with clipping protection. Even
// channels take the left gain, odd channels the right.
func applyGain(samples []int32, channels int, left, right float32) []int32 {
	if channels < 1 {
		channels = 1
	}

	result := make([]int32, len(samples))
	for i, sample := range samples {
		gain := left
		if channels > 1 && (i%channels)%2 == 1 {
			gain = right
		}
		scaled := int64(float64(sample) * float64(gain))

		// Clamp to 24-bit range to prevent overflow
		if scaled > audio.Max24Bit {
			scaled = audio.Max24Bit
		} else if scaled < audio.Min24Bit {
			scaled = audio.Min24Bit
		}

		result[i] = int32(scaled)
	}

	return result
}
