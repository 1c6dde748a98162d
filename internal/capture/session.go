package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petems/voice-input/internal/audio"
	"github.com/petems/voice-input/internal/pipeline"
)

// Submitter accepts finished recordings without blocking.
type Submitter interface {
	Enqueue(job pipeline.Job) error
}

// Observer is notified of capture events. AutoStopped is called from the
// audio thread and must not block.
type Observer interface {
	AutoStopped()
	RecordingSubmitted()
	RecordingDiscarded(reason string)
}

// SessionConfig wires a Session to its collaborators.
type SessionConfig struct {
	State    *State
	Backend  audio.Backend
	Queue    Submitter
	Observer Observer
	Logger   zerolog.Logger
}

// Session owns the hardware input stream and feeds captured batches into
// the shared State. It implements audio.Handler.
type Session struct {
	state    *State
	backend  audio.Backend
	queue    Submitter
	observer Observer
	log      zerolog.Logger

	mu     sync.Mutex // serializes Start/Stop/Close; never taken by the callback
	stream audio.Stream

	// scratch is only touched from the stream callback, which the backend
	// never invokes concurrently.
	scratch   []float32
	autoStops chan struct{}
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		state:     cfg.State,
		backend:   cfg.Backend,
		queue:     cfg.Queue,
		observer:  cfg.Observer,
		log:       cfg.Logger.With().Str("component", "session").Logger(),
		autoStops: make(chan struct{}, 1),
	}
}

// State returns the shared capture state.
func (s *Session) State() *State { return s.state }

// AutoStops signals when a session hits the duration cap. The recording is
// left in the buffer until CollectAutoStopped is called.
func (s *Session) AutoStops() <-chan struct{} { return s.autoStops }

// Start opens deviceName (empty for the system default) and begins capturing.
func (s *Session) Start(deviceName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Recording() {
		return ErrAlreadyRecording
	}

	s.closeStreamLocked()

	stream, cfg, err := s.backend.Open(deviceName, s)
	if err != nil {
		return fmt.Errorf("open input device: %w", err)
	}

	if err := s.state.begin(cfg); err != nil {
		stream.Close()
		return err
	}

	if err := stream.Start(); err != nil {
		s.state.abort()
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	s.stream = stream

	s.log.Info().
		Str("device", deviceName).
		Str("format", cfg.Format.String()).
		Uint32("sample_rate", cfg.SampleRate).
		Uint16("channels", cfg.Channels).
		Msg("Recording started")
	return nil
}

// Stop ends the active session and submits the recording for conditioning.
// The returned samples are shared with the submitted job and must not be
// modified. The session stays stopped even when submission fails.
func (s *Session) Stop() ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples, rate, channels, err := s.state.take()
	if err != nil {
		return nil, err
	}
	s.pauseStreamLocked()

	return s.submit(samples, rate, channels)
}

// CollectAutoStopped submits the recording of a session that hit the
// duration cap. It succeeds once per auto-stopped session.
func (s *Session) CollectAutoStopped() ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples, rate, channels, err := s.state.takeAutoStopped()
	if err != nil {
		return nil, err
	}
	s.pauseStreamLocked()

	return s.submit(samples, rate, channels)
}

func (s *Session) submit(samples []float32, rate uint32, channels uint16) ([]float32, error) {
	if len(samples) == 0 {
		s.discarded("empty")
		return nil, ErrEmptyRecording
	}

	job := pipeline.Job{
		ID:         uuid.NewString(),
		Samples:    samples,
		SampleRate: rate,
		Channels:   channels,
		CapturedAt: time.Now(),
	}

	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			s.discarded("queue_full")
		} else {
			s.discarded("closed")
		}
		s.log.Warn().Err(err).Str("job", job.ID).Int("samples", len(samples)).Msg("Recording discarded")
		return nil, fmt.Errorf("submit recording: %w", err)
	}
	if s.observer != nil {
		s.observer.RecordingSubmitted()
	}

	s.log.Info().
		Str("job", job.ID).
		Int("samples", len(samples)).
		Dur("duration", samplesDuration(len(samples), rate, channels)).
		Msg("Recording stopped")
	return samples, nil
}

func (s *Session) discarded(reason string) {
	if s.observer != nil {
		s.observer.RecordingDiscarded(reason)
	}
}

// Close releases the input stream. It does not submit any pending audio.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Recording() {
		_, _, _, _ = s.state.take()
	}
	return s.closeStreamLocked()
}

func (s *Session) pauseStreamLocked() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Stop(); err != nil {
		s.log.Debug().Err(err).Msg("Failed to pause input stream")
	}
}

func (s *Session) closeStreamLocked() error {
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	if err != nil {
		s.log.Debug().Err(err).Msg("Failed to close input stream")
	}
	return err
}

// HandleFloat32 is the stream callback for float32 devices.
func (s *Session) HandleFloat32(samples []float32) {
	if !s.state.Recording() {
		return
	}
	s.scratch = NormalizeFloat32(s.scratch, samples)
	s.append(s.scratch)
}

// HandleInt16 is the stream callback for signed 16-bit devices.
func (s *Session) HandleInt16(samples []int16) {
	if !s.state.Recording() {
		return
	}
	s.scratch = NormalizeInt16(s.scratch, samples)
	s.append(s.scratch)
}

// HandleUint16 is the stream callback for unsigned 16-bit devices.
func (s *Session) HandleUint16(samples []uint16) {
	if !s.state.Recording() {
		return
	}
	s.scratch = NormalizeUint16(s.scratch, samples)
	s.append(s.scratch)
}

func (s *Session) append(batch []float32) {
	if _, stopped := s.state.Append(batch); !stopped {
		return
	}
	if s.observer != nil {
		s.observer.AutoStopped()
	}
	select {
	case s.autoStops <- struct{}{}:
	default:
	}
}

func samplesDuration(n int, rate uint32, channels uint16) time.Duration {
	if rate == 0 || channels == 0 {
		return 0
	}
	frames := n / int(channels)
	return time.Duration(frames) * time.Second / time.Duration(rate)
}
