package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petems/voice-input/internal/app"
	"github.com/petems/voice-input/internal/audio"
	"github.com/petems/voice-input/internal/permissions"
	"github.com/petems/voice-input/internal/snapshot"
)

type recordOptions struct {
	duration  time.Duration
	fakeInput string
	realtime  bool
	output    string
}

func newRecordCmd(g *globals) *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one utterance and print the transcript",
		Long: `Record from the input device until Enter is pressed, the process is
interrupted, --duration elapses or the maximum recording length is reached.
The recording is conditioned, written as a WAV snapshot and passed to the
recognizer; the text is printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, g, opts)
		},
	}

	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Stop after this long (0 waits for Enter)")
	cmd.Flags().StringVar(&opts.fakeInput, "fake-input", "", "Replay a WAV file instead of opening a device")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", false, "Pace --fake-input at its sample rate")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Save the conditioned recording here (.wav or .flac)")

	return cmd
}

func runRecord(cmd *cobra.Command, g *globals, opts *recordOptions) error {
	cfg, log, err := g.load()
	if err != nil {
		return err
	}

	var (
		backend audio.Backend
		replay  *audio.Fake
	)
	if opts.fakeInput != "" {
		samples, rate, channels, err := snapshot.ReadWAV(opts.fakeInput)
		if err != nil {
			return err
		}
		replay = audio.NewFake(audio.StreamConfig{Format: audio.FormatF32, SampleRate: rate, Channels: channels})
		replay.Source = samples
		replay.Realtime = opts.realtime
		backend = replay
		cfg.Audio.Device = ""
	} else {
		if err := permissions.EnsureMicrophone(); err != nil {
			return err
		}
		backend, err = audio.New(audio.Options{Backend: cfg.Audio.Backend, SampleFormat: cfg.Audio.SampleFormat})
		if err != nil {
			return fmt.Errorf("initialize audio: %w", err)
		}
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

	out := cmd.OutOrStdout()
	done := make(chan struct{})
	var (
		once   sync.Once
		result app.Transcript
	)

	application := app.New(app.Config{
		Session:     st.session,
		Backend:     backend,
		Completions: st.completions,
		Recognizer:  rec,
		Config:      cfg,
		Logger:      log,
		OnTranscript: func(t app.Transcript) {
			once.Do(func() {
				result = t
				close(done)
			})
		},
	})

	if err := application.StartRecording(); err != nil {
		return err
	}
	if opts.fakeInput == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Recording... press Enter to stop")
	}

	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		waitForStop(ctx, cmd.InOrStdin(), opts, replay, done)
	}()

	// The serve context is not the signal context so the final recording
	// still drains after Ctrl-C.
	if err := st.serve(context.WithoutCancel(ctx), application, shutdown); err != nil {
		return err
	}

	select {
	case <-done:
	default:
		return fmt.Errorf("no recording captured")
	}
	if result.Err != nil {
		return result.Err
	}

	if opts.output != "" && result.Path != "" {
		if err := saveOutput(result.Path, opts.output); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved: %s\n", opts.output)
	}
	if result.Text != "" {
		fmt.Fprintln(out, result.Text)
	} else if rec == nil {
		fmt.Fprintf(out, "snapshot: %s\n", result.Path)
	}
	return nil
}

// waitForStop returns on the first stop condition.
func waitForStop(ctx context.Context, in io.Reader, opts *recordOptions, replay *audio.Fake, done <-chan struct{}) {
	enter := make(chan struct{})
	if opts.fakeInput == "" {
		go func() {
			// EOF is not a stop request; wait for another condition.
			if _, err := bufio.NewReader(in).ReadString('\n'); err == nil {
				close(enter)
			}
		}()
	}

	var timeout <-chan time.Time
	if opts.duration > 0 {
		t := time.NewTimer(opts.duration)
		defer t.Stop()
		timeout = t.C
	}

	var replayDone <-chan struct{}
	if replay != nil {
		if s := replay.LastStream(); s != nil {
			replayDone = s.Done()
		}
	}

	select {
	case <-ctx.Done():
	case <-enter:
	case <-timeout:
	case <-replayDone:
	case <-done: // auto-stopped and already processed
	}
}

// saveOutput copies the conditioned WAV, or re-encodes it when dst ends
// in .flac.
func saveOutput(src, dst string) error {
	if !strings.EqualFold(filepath.Ext(dst), ".flac") {
		return copyFile(src, dst)
	}
	samples, rate, channels, err := snapshot.ReadWAV(src)
	if err != nil {
		return err
	}
	return snapshot.WriteFLAC(dst, samples, rate, channels)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
