package recognize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/voice-input/internal/snapshot"
)

// DefaultArgs runs whisper.cpp's CLI without timestamps or progress output.
var DefaultArgs = []string{"-m", "{model}", "-f", "{input}", "-l", "{language}", "-nt", "-np"}

// CommandOptions configure a Command recognizer.
type CommandOptions struct {
	// Command is the executable, for example whisper-cli.
	Command string
	// Args may reference {input}, {model} and {language}.
	Args        []string
	ModelPath   string
	Language    string
	MinDuration time.Duration
	// TempDir holds the prepared 16 kHz input; empty means os.TempDir().
	TempDir string
	Logger  zerolog.Logger
}

// Command recognizes speech by running an external whisper-compatible
// program and reading the transcript from its standard output.
type Command struct {
	opts CommandOptions
	log  zerolog.Logger
}

// NewCommand creates a Command recognizer.
func NewCommand(opts CommandOptions) *Command {
	if len(opts.Args) == 0 {
		opts.Args = DefaultArgs
	}
	if opts.Language == "" {
		opts.Language = "auto"
	}
	if opts.MinDuration == 0 {
		opts.MinDuration = DefaultMinDuration
	}
	return &Command{
		opts: opts,
		log:  opts.Logger.With().Str("component", "recognize").Logger(),
	}
}

func (c *Command) Recognize(ctx context.Context, wavPath string) (string, error) {
	if _, err := os.Stat(wavPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrAudioNotFound, wavPath)
		}
		return "", err
	}

	samples, err := LoadSamples(wavPath, TargetSampleRate, c.opts.MinDuration)
	if err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", fmt.Errorf("%w: no audio in %s", ErrRecognition, wavPath)
	}

	input, err := c.prepare(samples)
	if err != nil {
		return "", err
	}
	defer os.Remove(input)

	args := c.expand(input)
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.opts.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %s: %v: %s", ErrRecognition, c.opts.Command, err, strings.TrimSpace(stderr.String()))
	}

	raw := strings.TrimSpace(stdout.String())
	text := PostProcess(raw)
	if text == "" && raw != "" {
		c.log.Info().Str("raw", raw).Msg("Post-processing removed all text")
	}

	c.log.Info().
		Str("path", wavPath).
		Int("samples", len(samples)).
		Int("chars", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("Recognition completed")
	return text, nil
}

func (c *Command) prepare(samples []float32) (string, error) {
	f, err := os.CreateTemp(c.opts.TempDir, "recognize_*.wav")
	if err != nil {
		return "", fmt.Errorf("create recognition input: %w", err)
	}
	path := f.Name()
	f.Close()

	if err := snapshot.WriteWAV(path, samples, TargetSampleRate, 1); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write recognition input: %w", err)
	}
	return path, nil
}

func (c *Command) expand(input string) []string {
	r := strings.NewReplacer(
		"{input}", input,
		"{model}", c.opts.ModelPath,
		"{language}", c.opts.Language,
		"{input_dir}", filepath.Dir(input),
	)
	args := make([]string, len(c.opts.Args))
	for i, a := range c.opts.Args {
		args[i] = r.Replace(a)
	}
	return args
}
