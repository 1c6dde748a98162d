// Package recognize hands conditioned recordings to a speech recognition
// engine and cleans up the text it returns.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/petems/voice-input/internal/snapshot"
)

const (
	// TargetSampleRate is the rate whisper models expect.
	TargetSampleRate = 16000
	// DefaultMinDuration pads very short clips, which whisper handles poorly.
	DefaultMinDuration = 1100 * time.Millisecond
)

var (
	ErrAudioNotFound = errors.New("audio file not found")
	ErrRecognition   = errors.New("recognition failed")
)

// Recognizer turns a WAV file into text.
type Recognizer interface {
	Recognize(ctx context.Context, wavPath string) (string, error)
}

// LoadSamples reads a WAV file and prepares it for recognition: first
// channel only, linearly resampled to targetRate and padded with silence to
// minDuration. An empty file yields no samples.
func LoadSamples(path string, targetRate uint32, minDuration time.Duration) ([]float32, error) {
	samples, rate, channels, err := snapshot.ReadWAV(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	mono := FirstChannel(samples, int(channels))
	out := Resample(mono, rate, targetRate)
	return PadToDuration(out, targetRate, minDuration), nil
}

// FirstChannel extracts channel 0 from interleaved samples.
func FirstChannel(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	out := make([]float32, 0, len(samples)/channels+1)
	for i := 0; i < len(samples); i += channels {
		out = append(out, samples[i])
	}
	return out
}

// Resample converts samples between rates with linear interpolation.
func Resample(in []float32, from, to uint32) []float32 {
	if len(in) == 0 || from == to || from == 0 || to == 0 {
		return in
	}

	ratio := float64(from) / float64(to)
	n := int(math.Ceil(float64(len(in)) / ratio))
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		var s0 float32
		if idx < len(in) {
			s0 = in[idx]
		}
		s1 := s0
		if idx+1 < len(in) {
			s1 = in[idx+1]
		}
		out[i] = s0 + (s1-s0)*frac
	}
	return out
}

// PadToDuration appends silence until samples lasts at least d.
func PadToDuration(samples []float32, rate uint32, d time.Duration) []float32 {
	if len(samples) == 0 || d <= 0 {
		return samples
	}
	minSamples := int((int64(rate)*int64(d) + int64(time.Second) - 1) / int64(time.Second))
	if len(samples) >= minSamples {
		return samples
	}
	return append(samples, make([]float32, minSamples-len(samples))...)
}
