//go:build linux

package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

// PulseAudio resamples server-side, so the stream rate is ours to pick.
const pulseSampleRate = 48000

type pulseBackend struct {
	client *pulse.Client
	format SampleFormat
}

// NewPulse creates a PulseAudio capture backend.
func NewPulse(opts Options) (Backend, error) {
	format, err := ParseSampleFormat(opts.SampleFormat)
	if err != nil {
		return nil, err
	}
	if format == FormatU16 {
		return nil, fmt.Errorf("%w: pulse cannot capture %s", ErrUnsupportedFormat, format)
	}
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseBackend{client: c, format: format}, nil
}

func (p *pulseBackend) Devices() ([]Device, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var def string
	if s, err := p.client.DefaultSource(); err == nil && s != nil {
		def = s.ID()
	}
	devices := make([]Device, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, Device{
			ID:      s.ID(),
			Name:    s.Name(),
			Default: s.ID() == def,
		})
	}
	return devices, nil
}

func (p *pulseBackend) Open(deviceName string, h Handler) (Stream, StreamConfig, error) {
	opts := []pulse.RecordOption{
		pulse.RecordMono,
		pulse.RecordSampleRate(pulseSampleRate),
		pulse.RecordLatency(0.05),
	}

	if deviceName != "" {
		sources, err := p.client.ListSources()
		if err != nil {
			return nil, StreamConfig{}, fmt.Errorf("pulse list sources: %w", err)
		}
		var source *pulse.Source
		for _, s := range sources {
			if s.Name() == deviceName || s.ID() == deviceName {
				source = s
				break
			}
		}
		if source == nil {
			return nil, StreamConfig{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceName)
		}
		opts = append(opts, pulse.RecordSource(source))
	}

	var writer pulse.Writer
	switch p.format {
	case FormatF32:
		writer = pulse.Float32Writer(func(buf []float32) (int, error) {
			h.HandleFloat32(buf)
			return len(buf), nil
		})
	case FormatS16:
		writer = pulse.Int16Writer(func(buf []int16) (int, error) {
			h.HandleInt16(buf)
			return len(buf), nil
		})
	default:
		return nil, StreamConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, p.format)
	}

	stream, err := p.client.NewRecord(writer, opts...)
	if err != nil {
		return nil, StreamConfig{}, fmt.Errorf("%w: pulse record: %v", ErrStreamCreationFailed, err)
	}

	cfg := StreamConfig{Format: p.format, SampleRate: pulseSampleRate, Channels: 1}
	return &pulseStream{stream: stream}, cfg, nil
}

func (p *pulseBackend) Close() error {
	p.client.Close()
	return nil
}

type pulseStream struct {
	stream *pulse.RecordStream
	mu     sync.Mutex
	closed bool
}

func (s *pulseStream) Start() error {
	s.stream.Start()
	return nil
}

func (s *pulseStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.stream.Stop()
	}
	return nil
}

func (s *pulseStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stream.Stop()
	s.stream.Close()
	return nil
}
