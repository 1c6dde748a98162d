package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const flacBlockSize = 4096

// WriteFLAC stores float samples as 16-bit FLAC. Mono and interleaved
// stereo are supported.
func WriteFLAC(path string, samples []float32, sampleRate uint32, channels uint16) error {
	var layout frame.Channels
	switch channels {
	case 1:
		layout = frame.ChannelsMono
	case 2:
		layout = frame.ChannelsLR
	default:
		return fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidFormat, sampleRate, channels)
	}
	if sampleRate == 0 {
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

	nch := int(channels)
	frames := len(samples) / nch
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    sampleRate,
		NChannels:     uint8(channels),
		BitsPerSample: bitDepth,
		NSamples:      uint64(frames),
	}
	enc, err := flac.NewEncoder(out, info)
	if err != nil {
		return fmt.Errorf("creating flac encoder: %w", err)
	}

	for start := 0; start < frames; start += flacBlockSize {
		n := min(flacBlockSize, frames-start)
		subframes := make([]*frame.Subframe, nch)
		for ch := range subframes {
			data := make([]int32, n)
			for i := range data {
				data[i] = int32(clamp(samples[(start+i)*nch+ch]) * int16MaxFloat)
			}
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   data,
				NSamples:  n,
			}
		}
		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(n),
				SampleRate:    sampleRate,
				Channels:      layout,
				BitsPerSample: bitDepth,
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(f); err != nil {
			return fmt.Errorf("writing flac frame: %w", err)
		}
	}

	// Close flushes the stream info and closes out.
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize FLAC: %w", err)
	}
	return nil
}
