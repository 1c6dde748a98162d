// Package capture holds the live recording state shared between the
// real-time device callback and the rest of the application.
package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/voice-input/internal/audio"
	"github.com/petems/voice-input/internal/conditioner"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	ErrEmptyRecording   = errors.New("no audio data")
)

// Options are the capture limits and the conditioning constants tracked
// alongside the buffer.
type Options struct {
	// MaxRecordSeconds is the hard cap on one session; reaching it auto-stops.
	MaxRecordSeconds int
	// BufferDurationSeconds is the rolling retention window used when
	// RetentionTrim is enabled.
	BufferDurationSeconds int
	RetentionTrim         bool

	PeakPreventionThreshold float32
	SoftNoiseGateFactor     float32
}

// DefaultOptions returns a 30 s cap, a 10 s retention window (disabled) and
// the default conditioning constants.
func DefaultOptions() Options {
	p := conditioner.DefaultParams()
	return Options{
		MaxRecordSeconds:        30,
		BufferDurationSeconds:   10,
		PeakPreventionThreshold: p.PeakPreventionThreshold,
		SoftNoiseGateFactor:     p.SoftNoiseGateFactor,
	}
}

// Params returns conditioner parameters using these options' constants.
func (o Options) Params() conditioner.Params {
	p := conditioner.DefaultParams()
	if o.PeakPreventionThreshold > 0 {
		p.PeakPreventionThreshold = o.PeakPreventionThreshold
	}
	if o.SoftNoiseGateFactor > 0 {
		p.SoftNoiseGateFactor = o.SoftNoiseGateFactor
	}
	return p
}

// Levels are the conditioning parameters last computed for a captured batch.
// They are telemetry only; the worker recomputes from the whole recording.
type Levels struct {
	Gain           float32
	NoiseThreshold float32
	InputRMS       float32
}

// State is the process-wide capture state. Create one with NewState at
// startup and pass it to whoever needs it.
type State struct {
	opts   Options
	params conditioner.Params
	log    zerolog.Logger

	mu          sync.Mutex
	recording   bool
	buffer      []float32
	total       int // samples accepted this session, including trimmed ones
	sampleRate  uint32
	channels    uint16
	startTime   time.Time
	levels      Levels
	autoStopped bool // one-shot per session
	collected   bool
}

// NewState creates an idle capture state.
func NewState(opts Options, log zerolog.Logger) *State {
	if opts.MaxRecordSeconds <= 0 {
		opts.MaxRecordSeconds = DefaultOptions().MaxRecordSeconds
	}
	if opts.BufferDurationSeconds <= 0 {
		opts.BufferDurationSeconds = DefaultOptions().BufferDurationSeconds
	}
	return &State{
		opts:   opts,
		params: opts.Params(),
		log:    log.With().Str("component", "capture").Logger(),
	}
}

// Options returns the options the state was created with.
func (s *State) Options() Options { return s.opts }

// Recording reports whether a session is active.
func (s *State) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Format returns the sample rate and channel count of the current or last session.
func (s *State) Format() (uint32, uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate, s.channels
}

// Len returns the number of buffered samples.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// StartedAt returns the session start time, if a session is active.
func (s *State) StartedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime, !s.startTime.IsZero()
}

// Elapsed returns how long the active session has been recording.
func (s *State) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Levels returns the last computed telemetry levels.
func (s *State) Levels() Levels {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels
}

// AutoStopped reports whether the current session hit the duration cap.
func (s *State) AutoStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoStopped
}

// Capacity returns the auto-stop cap in samples for the current format.
func (s *State) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacityLocked()
}

func (s *State) capacityLocked() int {
	return int(s.sampleRate) * int(s.channels) * s.opts.MaxRecordSeconds
}

func (s *State) retentionLocked() int {
	return int(s.sampleRate) * int(s.channels) * s.opts.BufferDurationSeconds
}

// begin starts a session with the negotiated stream configuration.
func (s *State) begin(cfg audio.StreamConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		return ErrAlreadyRecording
	}
	s.sampleRate = cfg.SampleRate
	s.channels = cfg.Channels
	s.buffer = make([]float32, 0, int(cfg.SampleRate)*int(cfg.Channels))
	s.total = 0
	s.levels = Levels{}
	s.autoStopped = false
	s.collected = false
	s.recording = true
	s.startTime = time.Now()
	return nil
}

// abort undoes begin when the stream could not be started.
func (s *State) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
	s.startTime = time.Time{}
	s.buffer = nil
	s.total = 0
}

// Append adds normalized samples to the buffer. It returns how many samples
// were accepted and whether this call performed the auto-stop transition.
// Once the cap is reached the session stops and further calls are no-ops.
func (s *State) Append(samples []float32) (int, bool) {
	st := conditioner.Analyze(samples, s.params)

	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return 0, false
	}

	s.levels = Levels{Gain: st.Gain, NoiseThreshold: st.NoiseThreshold, InputRMS: st.InputRMS}

	remaining := s.capacityLocked() - s.total
	accepted := samples
	stop := false
	if len(samples) > remaining {
		accepted = samples[:max(remaining, 0)]
		stop = true
	}

	s.buffer = append(s.buffer, accepted...)
	s.total += len(accepted)

	if s.opts.RetentionTrim {
		if window := s.retentionLocked(); len(s.buffer) > window {
			n := copy(s.buffer, s.buffer[len(s.buffer)-window:])
			s.buffer = s.buffer[:n]
		}
	}

	first := false
	if stop {
		s.recording = false
		s.startTime = time.Time{}
		first = !s.autoStopped
		s.autoStopped = true
	}
	buffered := len(s.buffer)
	s.mu.Unlock()

	if first {
		s.log.Warn().
			Int("samples", buffered).
			Int("max_seconds", s.opts.MaxRecordSeconds).
			Msg("Recording reached maximum duration, auto-stopped")
	}
	return len(accepted), first
}

// take ends the active session and hands over the buffer without copying.
func (s *State) take() ([]float32, uint32, uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return nil, 0, 0, ErrNotRecording
	}
	s.recording = false
	s.startTime = time.Time{}
	samples := s.buffer
	s.buffer = nil
	return samples, s.sampleRate, s.channels, nil
}

// takeAutoStopped hands over the buffer of a session that auto-stopped.
// It succeeds at most once per session.
func (s *State) takeAutoStopped() ([]float32, uint32, uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording || !s.autoStopped || s.collected {
		return nil, 0, 0, ErrNotRecording
	}
	s.collected = true
	samples := s.buffer
	s.buffer = nil
	return samples, s.sampleRate, s.channels, nil
}
