// ABOUTME: Paced writer from an audio source into an output stream
// ABOUTME: Converts rate, channels and sample format, then writes one window per tick
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audio"
	"github.com/Sendspin/audio-proxy/pkg/audio/encode"
	"github.com/Sendspin/audio-proxy/pkg/bus"
)

// Sink is the stream a Feeder writes to
type Sink interface {
	Config() audio.StreamConfig
	BufferSize() int
	Write(data []byte) (bus.WriteStatus, error)
}

// Feeder plays a source into a sink in real time
type Feeder struct {
	src     AudioSource
	sink    Sink
	encoder encode.Encoder

	srcChannels  int
	sinkChannels int
	frames       int
	window       time.Duration

	in  []int32
	out []int32

	windows uint64
}

// NewFeeder prepares src for sink's config. The sink must carry integer PCM.
func NewFeeder(src AudioSource, sink Sink) (*Feeder, error) {
	cfg := sink.Config()
	pcm, err := cfg.PCMFormat()
	if err != nil {
		return nil, fmt.Errorf("cannot feed stream: %w", err)
	}
	encoder, err := encode.New(pcm)
	if err != nil {
		return nil, err
	}

	frames := sink.BufferSize() / cfg.FrameSize()
	if frames <= 0 {
		return nil, fmt.Errorf("stream buffer holds no frames")
	}

	if src.SampleRate() != pcm.SampleRate {
		slog.Info("resampling source", "from", src.SampleRate(), "to", pcm.SampleRate)
		src = NewResampled(src, pcm.SampleRate)
	}

	return &Feeder{
		src:          src,
		sink:         sink,
		encoder:      encoder,
		srcChannels:  src.Channels(),
		sinkChannels: pcm.Channels,
		frames:       frames,
		window:       time.Duration(frames) * time.Second / time.Duration(pcm.SampleRate),
		in:           make([]int32, frames*src.Channels()),
		out:          make([]int32, frames*pcm.Channels),
	}, nil
}

// Window returns the audio duration written per step
func (f *Feeder) Window() time.Duration {
	return f.window
}

// Windows returns how many windows have been written
func (f *Feeder) Windows() uint64 {
	return f.windows
}

// Step reads one window from the source and writes it. The window is padded
// with silence when the source runs short; io.EOF is returned once the
// source is exhausted.
func (f *Feeder) Step() error {
	read := 0
	var srcErr error
	for read < len(f.in) {
		n, err := f.src.Read(f.in[read:])
		read += n
		if err != nil {
			srcErr = err
			break
		}
		if n == 0 {
			srcErr = io.EOF
			break
		}
	}
	if srcErr != nil && !errors.Is(srcErr, io.EOF) {
		return fmt.Errorf("source read failed: %w", srcErr)
	}
	clear(f.in[read:])

	remix(f.in, f.srcChannels, f.out, f.sinkChannels)

	data, err := f.encoder.Encode(f.out)
	if err != nil {
		return err
	}
	if _, err := f.sink.Write(data); err != nil {
		return fmt.Errorf("stream write failed: %w", err)
	}
	f.windows++

	return srcErr
}

// Run writes one window per window duration until ctx is cancelled or the
// source ends
func (f *Feeder) Run(ctx context.Context) error {
	title, artist, _ := f.src.Metadata()
	slog.Info("feeding stream", "title", title, "artist", artist, "window", f.window)

	ticker := time.NewTicker(f.window)
	defer ticker.Stop()

	for {
		if err := f.Step(); err != nil {
			if errors.Is(err, io.EOF) {
				slog.Info("source ended", "title", title, "windows", f.windows)
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// remix copies interleaved frames between channel layouts. Mono fans out,
// downmix to mono averages, and other layouts map channel to channel.
func remix(in []int32, inCh int, out []int32, outCh int) {
	frames := len(out) / outCh
	for i := 0; i < frames; i++ {
		src := in[i*inCh : (i+1)*inCh]
		dst := out[i*outCh : (i+1)*outCh]

		switch {
		case inCh == outCh:
			copy(dst, src)
		case outCh == 1:
			var sum int64
			for _, v := range src {
				sum += int64(v)
			}
			dst[0] = int32(sum / int64(inCh))
		case inCh == 1:
			for ch := range dst {
				dst[ch] = src[0]
			}
		default:
			n := copy(dst, src)
			clear(dst[n:])
		}
	}
}
