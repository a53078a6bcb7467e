// ABOUTME: Resampling wrapper for audio sources
// ABOUTME: Converts any source to a target sample rate
package source

import (
	"errors"
	"io"

	"github.com/Sendspin/audio-proxy/pkg/audio/resample"
)

// ResampledSource wraps an AudioSource and resamples it to a target rate
type ResampledSource struct {
	source     AudioSource
	resampler  *resample.Resampler
	targetRate int
	input      []int32
}

// NewResampled wraps source so it produces targetRate audio
func NewResampled(source AudioSource, targetRate int) *ResampledSource {
	return &ResampledSource{
		source:     source,
		resampler:  resample.New(source.SampleRate(), targetRate, source.Channels()),
		targetRate: targetRate,
	}
}

// Read fills samples with resampled audio. It may return fewer samples
// than requested; callers loop until full.
func (r *ResampledSource) Read(samples []int32) (int, error) {
	needed := r.resampler.InputSamplesNeeded(len(samples))
	if cap(r.input) < needed {
		r.input = make([]int32, needed)
	}
	r.input = r.input[:needed]

	n, err := r.source.Read(r.input)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}

	out := r.resampler.Resample(r.input[:n], samples)
	if out == 0 && err != nil {
		return 0, err
	}
	return out, nil
}

func (r *ResampledSource) SampleRate() int { return r.targetRate }
func (r *ResampledSource) Channels() int   { return r.source.Channels() }
func (r *ResampledSource) Metadata() (string, string, string) {
	return r.source.Metadata()
}
func (r *ResampledSource) Close() error { return r.source.Close() }
