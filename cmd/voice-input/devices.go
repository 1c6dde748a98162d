package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petems/voice-input/internal/audio"
)

func newDevicesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List input devices for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}

			backend, err := audio.New(audio.Options{Backend: cfg.Audio.Backend, SampleFormat: cfg.Audio.SampleFormat})
			if err != nil {
				return fmt.Errorf("initialize audio: %w", err)
			}
			defer backend.Close()

			devices, err := backend.Devices()
			if err != nil {
				return err
			}
			return printDevices(cmd, devices)
		},
	}
}

func printDevices(cmd *cobra.Command, devices []audio.Device) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEFAULT\tNAME\tID")
	for _, d := range devices {
		mark := ""
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", mark, d.Name, d.ID)
	}
	return w.Flush()
}
