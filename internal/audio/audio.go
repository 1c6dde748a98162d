package audio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDeviceNotFound       = errors.New("audio device not found")
	ErrNoDefaultConfig      = errors.New("no default input configuration")
	ErrUnsupportedFormat    = errors.New("unsupported sample format")
	ErrStreamCreationFailed = errors.New("audio stream creation failed")
)

// SampleFormat is the native numeric encoding a device delivers.
type SampleFormat int

const (
	FormatF32 SampleFormat = iota + 1
	FormatS16
	FormatU16
)

func (f SampleFormat) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatS16:
		return "s16"
	case FormatU16:
		return "u16"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseSampleFormat maps a config value to a SampleFormat.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "f32", "float32":
		return FormatF32, nil
	case "s16", "int16", "i16":
		return FormatS16, nil
	case "u16", "uint16":
		return FormatU16, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// StreamConfig is the configuration negotiated with the device for one stream.
type StreamConfig struct {
	Format     SampleFormat
	SampleRate uint32
	Channels   uint16
}

// Device represents an audio input device
type Device struct {
	ID      string
	Name    string
	Default bool
}

// Handler receives interleaved sample batches from a running stream. A
// backend picks the entry point matching its negotiated format when the
// stream is built and only ever calls that one.
type Handler interface {
	HandleFloat32(samples []float32)
	HandleInt16(samples []int16)
	HandleUint16(samples []uint16)
}

// Stream is an opened hardware input stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Backend opens input streams on one audio subsystem.
type Backend interface {
	Devices() ([]Device, error)
	Open(deviceName string, h Handler) (Stream, StreamConfig, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend      string // "portaudio", "malgo" or "pulse"
	SampleFormat string // requested format for backends that let us choose
}

// New creates the backend named in opts.
func New(opts Options) (Backend, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "portaudio":
		return NewPortAudio(opts)
	case "malgo", "miniaudio":
		return NewMalgo(opts)
	case "pulse", "pulseaudio":
		return NewPulse(opts)
	}
	return nil, fmt.Errorf("unknown audio backend %q", opts.Backend)
}
