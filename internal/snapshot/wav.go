package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth      = 16
	pcmFormat     = 1
	int16MaxFloat = 32767.0
)

var (
	ErrInvalidFormat = errors.New("invalid sample rate or channel count")
	ErrInvalidWAV    = errors.New("not a valid WAV file")
)

// WriteWAV stores float samples in [-1, 1] as 16-bit PCM. Out-of-range
// samples are clamped.
func WriteWAV(path string, samples []float32, sampleRate uint32, channels uint16) error {
	if sampleRate == 0 || channels == 0 {
		return fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidFormat, sampleRate, channels)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(clamp(s) * int16MaxFloat)
	}

	enc := wav.NewEncoder(out, int(sampleRate), bitDepth, int(channels), pcmFormat)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: int(sampleRate), NumChannels: int(channels)},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write to WAV encoder: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return out.Close()
}

// ReadWAV decodes a 16, 24 or 32-bit PCM file into interleaved float samples.
func ReadWAV(path string) ([]float32, uint32, uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}

	divisor, err := divisorFor(int(dec.BitDepth))
	if err != nil {
		return nil, 0, 0, err
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(float64(v) / divisor)
	}
	return samples, dec.SampleRate, dec.NumChans, nil
}

func divisorFor(depth int) (float64, error) {
	switch depth {
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	}
	return 0, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, depth)
}

func clamp(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	case s != s:
		return 0
	}
	return s
}
