package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"snap-blaster/midi"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <channel> <cc> <value>",
		Short: "Send a single CC value",
		Long:  "Sends one control change to the outputs. Channel is 1-16.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := parseChannel(args[0])
			if err != nil {
				return err
			}
			cc, err := parseData("cc", args[1])
			if err != nil {
				return err
			}
			value, err := parseData("value", args[2])
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()
			defer midi.CloseDriver()

			eng := newEngine(cfg, nil, logger)
			if err := warnOutputs(logger, eng, opts.openOutputs(eng, cfg, "")); err != nil {
				return err
			}
			if err := eng.Start(); err != nil {
				return err
			}
			if err := eng.SendImmediate(ch, cc, value); err != nil {
				return err
			}
			outs := eng.Outputs()
			if err := eng.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ch %d cc %d = %d -> %s\n", ch+1, cc, value, strings.Join(outs, ", "))
			return nil
		},
	}
}
