package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"snap-blaster/curve"
)

func newMorphCmd(opts *rootOptions) *cobra.Command {
	var (
		beats     float64
		curveName string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "morph <project> <from> <to>",
		Short: "Morph between two scenes",
		Long:  "Transitions every value of <to> from its value in <from> (or the current\nvalue) over the given number of beats.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := curve.Parse(curveName)
			if err != nil {
				return err
			}
			if beats <= 0 {
				return fmt.Errorf("--beats must be positive")
			}

			h, err := opts.startHeadless(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			from, err := h.scene(args[1])
			if err != nil {
				h.close()
				return err
			}
			to, err := h.scene(args[2])
			if err != nil {
				h.close()
				return err
			}

			d := time.Duration(beats * 60 / h.clock.Tempo() * float64(time.Second))
			if err := h.engine.Morph(from, to, d, c); err != nil {
				h.close()
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s over %g beats (%s, %s)\n", from.Name, to.Name, beats, d.Round(time.Millisecond), c)
			return h.wait(cmd.Context(), timeout)
		},
	}

	cmd.Flags().Float64VarP(&beats, "beats", "b", 4, "morph length in beats")
	cmd.Flags().StringVarP(&curveName, "curve", "c", "linear", "curve: linear, exponential, logarithmic, s-curve")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up waiting after this long (0 = never)")

	return cmd
}
