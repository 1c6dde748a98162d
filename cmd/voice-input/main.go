package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/petems/voice-input/internal/config"
	"github.com/petems/voice-input/internal/logging"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globals carries state shared by every subcommand.
type globals struct {
	configPath string
	loader     *config.Loader
}

// load reads the config with flag overrides and builds the logger.
func (g *globals) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := g.loader.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.NewWithLevel(cfg.LogLevel), nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "voice-input",
		Short:         "Capture speech, condition it and hand it to a recognizer",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			g.loader = config.NewLoader(g.configPath)
			return bindFlags(cmd, g.loader, map[string]string{
				"log-level":    "log_level",
				"backend":      "audio.backend",
				"device":       "audio.device",
				"mode":         "mode",
				"metrics":      "metrics.listen",
				"max-seconds":  "capture.max_record_seconds",
				"snapshot-dir": "snapshots.dir",
				"language":     "recognition.language",
				"model":        "recognition.model",
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Path to config.json (default: platform config dir)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("backend", "", "Audio backend: portaudio, malgo, pulse")
	pf.String("device", "", "Input device name or id (default: system default)")
	pf.String("metrics", "", "Serve Prometheus metrics on this address")
	pf.Int("max-seconds", 0, "Maximum recording length in seconds")
	pf.String("snapshot-dir", "", "Parent directory for WAV snapshots")
	pf.String("language", "", "Recognition language")
	pf.String("model", "", "Whisper model size, e.g. base.en")

	root.AddCommand(
		newRecordCmd(g),
		newRunCmd(g),
		newDevicesCmd(g),
		newConditionCmd(g),
		newVersionCmd(),
	)
	return root
}

// bindFlags maps flags to config keys. Only flags set on the command line
// override the file and environment.
func bindFlags(cmd *cobra.Command, loader *config.Loader, keys map[string]string) error {
	v := loader.Viper()
	for name, key := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "voice-input %s (%s)\n", Version, Commit)
		},
	}
}
