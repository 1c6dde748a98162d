package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/voice-input/internal/audio"
	"github.com/petems/voice-input/internal/capture"
	"github.com/petems/voice-input/internal/config"
	"github.com/petems/voice-input/internal/inject"
	"github.com/petems/voice-input/internal/pipeline"
	"github.com/petems/voice-input/internal/recognize"
)

type Mode int

const (
	PushToTalk Mode = iota
	Toggle
)

var ErrBusy = errors.New("cannot change while recording")

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
}

// Transcript is the outcome of one processed recording.
type Transcript struct {
	JobID string
	Path  string // snapshot handed to the recognizer
	Text  string
	Err   error
}

type Config struct {
	Session     *capture.Session
	Backend     audio.Backend
	Completions <-chan pipeline.Completion
	Recognizer  recognize.Recognizer // Optional - snapshots are only logged when nil
	Injector    inject.Injector      // Optional - nil or inject.enabled=false skips delivery
	Config      *config.Config
	Logger      zerolog.Logger
	// Optional
	StatusUpdater StatusUpdater
	OnTranscript  func(Transcript)
}

type App struct {
	session     *capture.Session
	backend     audio.Backend
	completions <-chan pipeline.Completion
	stt         recognize.Recognizer
	inj         inject.Injector
	cfg         *config.Config
	log         zerolog.Logger
	status      StatusUpdater
	onText      func(Transcript)

	mu     sync.Mutex
	active bool // user-visible dictation state; survives an auto-stop until collected
}

func New(cfg Config) *App {
	return &App{
		session:     cfg.Session,
		backend:     cfg.Backend,
		completions: cfg.Completions,
		stt:         cfg.Recognizer,
		inj:         cfg.Injector,
		cfg:         cfg.Config,
		log:         cfg.Logger.With().Str("component", "app").Logger(),
		status:      cfg.StatusUpdater,
		onText:      cfg.OnTranscript,
	}
}

func (a *App) mode() Mode {
	if a.cfg.Mode == config.ModeToggle {
		return Toggle
	}
	return PushToTalk
}

// OnTrigger handles a hotkey edge. In push-to-talk mode press starts and
// release stops; in toggle mode each press flips the state and releases
// are ignored.
func (a *App) OnTrigger(pressed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.mode() {
	case PushToTalk:
		if pressed {
			_ = a.startLocked()
		} else {
			_ = a.stopLocked()
		}
	case Toggle:
		if !pressed {
			return
		}
		if !a.active {
			_ = a.startLocked()
		} else {
			_ = a.stopLocked()
		}
	}
}

// StartRecording begins a session on the configured device.
func (a *App) StartRecording() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked()
}

// StopRecording ends the session and submits it for processing.
func (a *App) StopRecording() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked()
}

func (a *App) startLocked() error {
	if a.active {
		return capture.ErrAlreadyRecording
	}

	// A recording that auto-stopped but was never collected goes first.
	a.collectLocked()

	if err := a.session.Start(a.cfg.Audio.Device); err != nil {
		a.log.Error().Err(err).Str("device", a.cfg.Audio.Device).Msg("Failed to start recording")
		a.setStatus(StatusUpdater.SetError)
		return err
	}

	a.active = true
	a.setStatus(StatusUpdater.SetRecording)
	return nil
}

func (a *App) stopLocked() error {
	if !a.active {
		return capture.ErrNotRecording
	}
	a.active = false

	_, err := a.session.Stop()
	if errors.Is(err, capture.ErrNotRecording) {
		// Hit the duration cap before the user let go.
		_, err = a.session.CollectAutoStopped()
	}
	return a.submitted(err)
}

func (a *App) collectLocked() {
	if _, err := a.session.CollectAutoStopped(); !errors.Is(err, capture.ErrNotRecording) {
		_ = a.submitted(err)
	}
}

func (a *App) submitted(err error) error {
	switch {
	case err == nil:
		a.setStatus(StatusUpdater.SetProcessing)
	case errors.Is(err, capture.ErrEmptyRecording):
		a.log.Info().Msg("No audio captured")
		a.setStatus(StatusUpdater.SetIdle)
	default:
		a.log.Error().Err(err).Msg("Failed to submit recording")
		a.setStatus(StatusUpdater.SetError)
	}
	return err
}

// autoStopped runs when the session hits its duration cap.
func (a *App) autoStopped() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return
	}
	a.active = false
	a.log.Info().Msg("Submitting auto-stopped recording")
	a.collectLocked()
}

// Run consumes auto-stop signals and worker completions until ctx is done
// or the completion channel is closed.
func (a *App) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.session.AutoStops():
			a.autoStopped()
		case c, ok := <-a.completions:
			if !ok {
				return nil
			}
			a.handleCompletion(ctx, c)
		}
	}
}

func (a *App) handleCompletion(ctx context.Context, c pipeline.Completion) {
	path := c.Path()
	log := a.log.With().Str("job", c.JobID).Str("path", path).Logger()

	t := Transcript{JobID: c.JobID, Path: path}
	defer func() {
		if a.onText != nil {
			a.onText(t)
		}
	}()

	if path == "" {
		t.Err = pipeline.ErrSnapshotWrite
		log.Error().Msg("No snapshot available for recognition")
		a.setStatus(StatusUpdater.SetError)
		return
	}

	if a.stt == nil {
		log.Info().Float32("gain", c.Stats.Gain).Msg("Snapshot ready")
		a.setIdleUnlessRecording()
		return
	}

	text, err := a.stt.Recognize(ctx, path)
	if err != nil {
		t.Err = err
		log.Error().Err(err).Msg("Recognition failed")
		a.setStatus(StatusUpdater.SetError)
		return
	}
	t.Text = text

	if text == "" {
		log.Info().Msg("No text to inject")
		a.setIdleUnlessRecording()
		return
	}

	text = a.applyFilters(text)
	t.Text = text

	if a.inj == nil || !a.cfg.Inject.Enabled {
		log.Info().Str("text", text).Msg("Recognized")
		a.setIdleUnlessRecording()
		return
	}

	injectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.inj.PasteOrType(injectCtx, text); err != nil {
		t.Err = err
		log.Error().Err(err).Msg("Inject error")
		a.setStatus(StatusUpdater.SetError)
		return
	}
	log.Info().Str("text", text).Msg("Injected")
	a.setIdleUnlessRecording()
}

func (a *App) applyFilters(text string) string {
	if len(text) == 0 {
		return text
	}
	if a.cfg.Inject.AppendSpace {
		text += " "
	}
	return text
}

func (a *App) setStatus(fn func(StatusUpdater)) {
	if a.status != nil {
		fn(a.status)
	}
}

// A completion can arrive while the next recording is already running.
func (a *App) setIdleUnlessRecording() {
	if a.IsRecording() {
		return
	}
	a.setStatus(StatusUpdater.SetIdle)
}

// Shutdown submits an in-progress recording and releases the input stream.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		if err := a.stopLocked(); err != nil && !errors.Is(err, capture.ErrEmptyRecording) {
			a.log.Warn().Err(err).Msg("Recording lost at shutdown")
		}
	} else {
		a.collectLocked()
	}

	return a.session.Close()
}

func (a *App) SetMode(mode string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if mode != config.ModePushToTalk && mode != config.ModeToggle {
		return fmt.Errorf("%w: mode %q", config.ErrInvalid, mode)
	}
	a.cfg.Mode = mode
	return a.cfg.Save()
}

func (a *App) SetDevice(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		return ErrBusy
	}

	a.cfg.Audio.Device = name
	return a.cfg.Save()
}

func (a *App) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *App) ListDevices() ([]audio.Device, error) {
	return a.backend.Devices()
}
