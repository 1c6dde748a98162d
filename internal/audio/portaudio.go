package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const portAudioFramesPerBuffer = 512

type portAudioBackend struct {
	format SampleFormat
}

// NewPortAudio creates a PortAudio-based capture backend
func NewPortAudio(opts Options) (Backend, error) {
	format, err := ParseSampleFormat(opts.SampleFormat)
	if err != nil {
		return nil, err
	}
	// PortAudio has no unsigned 16-bit sample type
	if format == FormatU16 {
		return nil, fmt.Errorf("%w: portaudio cannot capture %s", ErrUnsupportedFormat, format)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioBackend{format: format}, nil
}

func (p *portAudioBackend) findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDefaultConfig, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}

func (p *portAudioBackend) Open(deviceName string, h Handler) (Stream, StreamConfig, error) {
	device, err := p.findDevice(deviceName)
	if err != nil {
		return nil, StreamConfig{}, err
	}
	if device.MaxInputChannels < 1 || device.DefaultSampleRate <= 0 {
		return nil, StreamConfig{}, fmt.Errorf("%w: %s", ErrNoDefaultConfig, device.Name)
	}

	cfg := StreamConfig{
		Format:     p.format,
		SampleRate: uint32(device.DefaultSampleRate),
		Channels:   uint16(min(device.MaxInputChannels, 2)),
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: int(cfg.Channels),
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: portAudioFramesPerBuffer,
	}

	// The callback type decides the sample format PortAudio hands us.
	var callback any
	switch cfg.Format {
	case FormatF32:
		callback = func(in []float32) { h.HandleFloat32(in) }
	case FormatS16:
		callback = func(in []int16) { h.HandleInt16(in) }
	default:
		return nil, StreamConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Format)
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, StreamConfig{}, fmt.Errorf("%w: open %s: %v", ErrStreamCreationFailed, device.Name, err)
	}

	return &portAudioStream{stream: stream}, cfg, nil
}

func (p *portAudioBackend) Devices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]Device, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, Device{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioBackend) Close() error {
	return portaudio.Terminate()
}

type portAudioStream struct {
	stream  *portaudio.Stream
	mu      sync.Mutex
	started bool
}

func (s *portAudioStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("%w: start: %v", ErrStreamCreationFailed, err)
	}
	s.started = true
	return nil
}

func (s *portAudioStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	return s.stream.Stop()
}

func (s *portAudioStream) Close() error {
	if err := s.Stop(); err != nil {
		s.stream.Close()
		return err
	}
	return s.stream.Close()
}
