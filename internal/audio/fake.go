package audio

import (
	"fmt"
	"sync"
	"time"
)

const fakeChunkFrames = 1024

// Fake is an in-memory Backend used by tests and file replay. Batches are
// either pushed synchronously with the Feed methods or, when Source is set,
// replayed from a goroutine once the stream starts.
type Fake struct {
	Config    StreamConfig
	DeviceSet []Device
	OpenErr   error

	// Source is replayed as float32 batches after Start. Realtime paces the
	// replay to the configured sample rate.
	Source   []float32
	Realtime bool

	mu      sync.Mutex
	handler Handler
	opened  int
	streams []*FakeStream
}

// NewFake returns a Fake delivering the given configuration.
func NewFake(cfg StreamConfig, devices ...Device) *Fake {
	if len(devices) == 0 {
		devices = []Device{{ID: "fake", Name: "fake", Default: true}}
	}
	return &Fake{Config: cfg, DeviceSet: devices}
}

func (f *Fake) Devices() ([]Device, error) { return f.DeviceSet, nil }

func (f *Fake) Close() error { return nil }

func (f *Fake) Open(deviceName string, h Handler) (Stream, StreamConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.OpenErr != nil {
		return nil, StreamConfig{}, f.OpenErr
	}
	if deviceName != "" && !f.hasDevice(deviceName) {
		return nil, StreamConfig{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceName)
	}
	switch f.Config.Format {
	case FormatF32, FormatS16, FormatU16:
	default:
		return nil, StreamConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Config.Format)
	}

	f.handler = h
	f.opened++
	s := &FakeStream{fake: f, stop: make(chan struct{}), done: make(chan struct{})}
	f.streams = append(f.streams, s)
	return s, f.Config, nil
}

func (f *Fake) hasDevice(name string) bool {
	for _, d := range f.DeviceSet {
		if d.Name == name || d.ID == name {
			return true
		}
	}
	return false
}

// Opened reports how many streams have been opened.
func (f *Fake) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// LastStream returns the most recently opened stream, or nil.
func (f *Fake) LastStream() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

func (f *Fake) current() Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

// FeedFloat32 delivers one batch as a float32 device would.
func (f *Fake) FeedFloat32(samples []float32) {
	if h := f.current(); h != nil {
		h.HandleFloat32(samples)
	}
}

// FeedInt16 delivers one batch as a signed 16-bit device would.
func (f *Fake) FeedInt16(samples []int16) {
	if h := f.current(); h != nil {
		h.HandleInt16(samples)
	}
}

// FeedUint16 delivers one batch as an unsigned 16-bit device would.
func (f *Fake) FeedUint16(samples []uint16) {
	if h := f.current(); h != nil {
		h.HandleUint16(samples)
	}
}

// FakeStream is the Stream returned by Fake.Open.
type FakeStream struct {
	fake *Fake

	mu        sync.Mutex
	started   bool
	launched  bool
	replaying bool
	closed    bool
	stop      chan struct{}
	done      chan struct{}
}

func (s *FakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: stream closed", ErrStreamCreationFailed)
	}
	s.started = true
	if s.launched {
		return nil
	}
	s.launched = true
	if len(s.fake.Source) > 0 {
		s.replaying = true
		go s.replay()
	} else {
		close(s.done)
	}
	return nil
}

func (s *FakeStream) replay() {
	defer close(s.done)

	cfg := s.fake.Config
	chunk := fakeChunkFrames * int(max(cfg.Channels, 1))
	var interval time.Duration
	if s.fake.Realtime && cfg.SampleRate > 0 {
		interval = time.Duration(fakeChunkFrames) * time.Second / time.Duration(cfg.SampleRate)
	}

	src := s.fake.Source
	for pos := 0; pos < len(src); pos += chunk {
		select {
		case <-s.stop:
			return
		default:
		}
		s.fake.FeedFloat32(src[pos:min(pos+chunk, len(src))])
		if interval > 0 {
			select {
			case <-s.stop:
				return
			case <-time.After(interval):
			}
		}
	}
}

// Done is closed once a replay has delivered all of Source.
func (s *FakeStream) Done() <-chan struct{} { return s.done }

func (s *FakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.started = false
	close(s.stop)
	replaying := s.replaying
	s.mu.Unlock()

	if replaying {
		<-s.done
	}
	return nil
}

// Started reports whether the stream is running.
func (s *FakeStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Closed reports whether Close has been called.
func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
