package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/petems/voice-input/internal/app"
	"github.com/petems/voice-input/internal/audio"
	"github.com/petems/voice-input/internal/hotkey"
	"github.com/petems/voice-input/internal/inject"
	"github.com/petems/voice-input/internal/permissions"
)

func newRunCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dictate with the global hotkey until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, g)
		},
	}
	cmd.Flags().String("mode", "", "Hotkey mode: PushToTalk or Toggle")
	return cmd
}

func runDaemon(cmd *cobra.Command, g *globals) error {
	cfg, log, err := g.load()
	if err != nil {
		return err
	}

	// macOS requires explicit microphone + accessibility approval before capture or hotkeys work
	if err := permissions.EnsurePermissions(); err != nil {
		return err
	}

	backend, err := audio.New(audio.Options{Backend: cfg.Audio.Backend, SampleFormat: cfg.Audio.SampleFormat})
	if err != nil {
		return fmt.Errorf("initialize audio: %w", err)
	}

	st, err := newStack(cfg, log, backend)
	if err != nil {
		backend.Close()
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := st.recognizer(ctx)
	if err != nil {
		return err
	}

	var injector inject.Injector
	if cfg.Inject.Enabled {
		injector = inject.New(inject.Options{PreferPaste: cfg.Inject.PreferPaste, Logger: log})
	}

	application := app.New(app.Config{
		Session:       st.session,
		Backend:       backend,
		Completions:   st.completions,
		Recognizer:    rec,
		Injector:      injector,
		Config:        cfg,
		Logger:        log,
		StatusUpdater: statusLog{log: log.With().Str("component", "status").Logger()},
	})

	hkManager, err := hotkey.New()
	if err != nil {
		return fmt.Errorf("initialize hotkeys: %w", err)
	}
	defer hkManager.Close()

	if err := hkManager.Register(cfg.PlatformHotkey(), application.OnTrigger); err != nil {
		return fmt.Errorf("register hotkey %q: %w", cfg.PlatformHotkey(), err)
	}

	log.Info().
		Str("hotkey", cfg.PlatformHotkey()).
		Str("mode", cfg.Mode).
		Str("version", Version).
		Msg("voice-input starting...")

	shutdown := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(shutdown)
	}()

	return st.serve(context.WithoutCancel(ctx), application, shutdown)
}

// statusLog reports dictation state changes on the console in place of a
// tray icon.
type statusLog struct {
	log zerolog.Logger
}

func (s statusLog) SetIdle()       { s.log.Info().Msg("Idle") }
func (s statusLog) SetRecording()  { s.log.Info().Msg("Recording") }
func (s statusLog) SetProcessing() { s.log.Info().Msg("Processing") }
func (s statusLog) SetError()      { s.log.Warn().Msg("Error") }
