package audio

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoBackend struct {
	ctx *malgo.AllocatedContext
}

// NewMalgo creates a miniaudio-based capture backend. The device is opened in
// its native format, so SampleFormat in opts is ignored.
func NewMalgo(_ Options) (Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init context: %w", err)
	}
	return &malgoBackend{ctx: ctx}, nil
}

func (m *malgoBackend) Devices() ([]Device, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	result := make([]Device, 0, len(infos))
	for _, d := range infos {
		result = append(result, Device{
			ID:      hex.EncodeToString(d.ID[:]),
			Name:    d.Name(),
			Default: d.IsDefault == 1,
		})
	}
	return result, nil
}

func (m *malgoBackend) Open(deviceName string, h Handler) (Stream, StreamConfig, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	// Unknown format, rate and channel count let miniaudio pick the native ones.
	deviceConfig.Capture.Format = malgo.FormatUnknown
	deviceConfig.Capture.Channels = 0
	deviceConfig.SampleRate = 0
	deviceConfig.Alsa.NoMMap = 1

	if deviceName != "" {
		infos, err := m.ctx.Devices(malgo.Capture)
		if err != nil {
			return nil, StreamConfig{}, fmt.Errorf("malgo devices: %w", err)
		}
		found := false
		for i := range infos {
			if infos[i].Name() == deviceName {
				deviceConfig.Capture.DeviceID = infos[i].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			return nil, StreamConfig{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceName)
		}
	}

	var deliver func(data []byte)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if deliver != nil {
				deliver(input)
			}
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, StreamConfig{}, fmt.Errorf("%w: %v", ErrStreamCreationFailed, err)
	}

	cfg := StreamConfig{
		SampleRate: device.SampleRate(),
		Channels:   uint16(device.CaptureChannels()),
	}
	if cfg.SampleRate == 0 || cfg.Channels == 0 {
		device.Uninit()
		return nil, StreamConfig{}, ErrNoDefaultConfig
	}

	switch native := device.CaptureFormat(); native {
	case malgo.FormatF32:
		cfg.Format = FormatF32
		var scratch []float32
		deliver = func(data []byte) {
			scratch = decodeFloat32LE(scratch, data)
			h.HandleFloat32(scratch)
		}
	case malgo.FormatS16:
		cfg.Format = FormatS16
		var scratch []int16
		deliver = func(data []byte) {
			scratch = decodeInt16LE(scratch, data)
			h.HandleInt16(scratch)
		}
	default:
		device.Uninit()
		return nil, StreamConfig{}, fmt.Errorf("%w: miniaudio format %d", ErrUnsupportedFormat, native)
	}

	return &malgoStream{device: device}, cfg, nil
}

func (m *malgoBackend) Close() error {
	err := m.ctx.Uninit()
	m.ctx.Free()
	return err
}

type malgoStream struct {
	device  *malgo.Device
	mu      sync.Mutex
	started bool
}

func (s *malgoStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("%w: start: %v", ErrStreamCreationFailed, err)
	}
	s.started = true
	return nil
}

func (s *malgoStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	return s.device.Stop()
}

func (s *malgoStream) Close() error {
	err := s.Stop()
	s.device.Uninit()
	return err
}

// decodeFloat32LE reinterprets little-endian float32 bytes, reusing dst.
func decodeFloat32LE(dst []float32, data []byte) []float32 {
	n := len(data) / 4
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return dst
}

// decodeInt16LE reinterprets little-endian int16 bytes, reusing dst.
func decodeInt16LE(dst []int16, data []byte) []int16 {
	n := len(data) / 2
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return dst
}
