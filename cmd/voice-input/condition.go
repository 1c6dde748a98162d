package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petems/voice-input/internal/conditioner"
	"github.com/petems/voice-input/internal/snapshot"
)

func newConditionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "condition <in.wav> <out.wav>",
		Short: "Apply gain and noise gating to a WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}

			samples, rate, channels, err := snapshot.ReadWAV(args[0])
			if err != nil {
				return err
			}

			out, stats := conditioner.Condition(samples, cfg.ConditionerParams())
			if err := snapshot.WriteWAV(args[1], out, rate, channels); err != nil {
				return err
			}

			log.Debug().
				Str("in", args[0]).
				Str("out", args[1]).
				Int("samples", len(samples)).
				Msg("Conditioned file")
			fmt.Fprintf(cmd.OutOrStdout(), "gain=%.3f input_rms=%.4f output_rms=%.4f peak=%.4f gated=%d\n",
				stats.Gain, stats.InputRMS, stats.OutputRMS, stats.Peak, stats.Gated)
			return nil
		},
	}
}
