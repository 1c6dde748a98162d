// Package conditioner implements the per-batch adaptive gain and soft noise
// gate applied to captured speech before it is handed to recognition.
package conditioner

import "math"

// Params configures Condition. The zero value is not useful; start from
// DefaultParams.
type Params struct {
	TargetRMS               float32
	MinGain                 float32
	MaxGain                 float32
	PeakPreventionThreshold float32
	SoftNoiseGateFactor     float32
	NoiseRatio              float32 // noise threshold as a fraction of input RMS
	NoiseCeiling            float32 // upper bound for the noise threshold
	Epsilon                 float32
}

// DefaultParams returns the tuning used for microphone speech.
func DefaultParams() Params {
	return Params{
		TargetRMS:               0.12,
		MinGain:                 0.5,
		MaxGain:                 10.0,
		PeakPreventionThreshold: 0.95,
		SoftNoiseGateFactor:     0.2,
		NoiseRatio:              0.15,
		NoiseCeiling:            0.01,
		Epsilon:                 1e-9,
	}
}

// Stats describes the parameters derived for one batch.
type Stats struct {
	InputRMS       float32
	Peak           float32
	Gain           float32
	NoiseThreshold float32
	OutputRMS      float32
	Gated          int
}

// RMS returns the root-mean-square of samples, or 0 for an empty slice.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if a := abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// Analyze computes gain and noise threshold for a batch without touching it.
func Analyze(batch []float32, p Params) Stats {
	rms := RMS(batch)
	peak := Peak(batch)

	gain := clamp(p.TargetRMS/max(rms, p.Epsilon), p.MinGain, p.MaxGain)

	// Clipping guard
	if peak*gain > p.PeakPreventionThreshold {
		gain = max(p.PeakPreventionThreshold/peak, p.MinGain)
	}

	return Stats{
		InputRMS:       rms,
		Peak:           peak,
		Gain:           gain,
		NoiseThreshold: min(rms*p.NoiseRatio, p.NoiseCeiling),
	}
}

// Condition returns a gain-normalized, soft-gated copy of batch. The input
// slice is not modified.
func Condition(batch []float32, p Params) ([]float32, Stats) {
	st := Analyze(batch, p)
	out := make([]float32, len(batch))

	for i, s := range batch {
		if abs(s) < st.NoiseThreshold {
			s *= p.SoftNoiseGateFactor
			st.Gated++
		}
		out[i] = clamp(s*st.Gain, -1, 1)
	}

	st.OutputRMS = RMS(out)
	return out, st
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
