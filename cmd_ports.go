package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"snap-blaster/midi"
)

// portScanTimeout guards against drivers that hang while enumerating
const portScanTimeout = 3 * time.Second

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List MIDI ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer midi.CloseDriver()
			return printPorts(cmd.OutOrStdout())
		},
	}
}

func printPorts(w io.Writer) error {
	type result struct {
		ins, outs []midi.Descriptor
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: midi.ListInputs(), outs: midi.ListOutputs()}
	}()

	var r result
	select {
	case r = <-ch:
	case <-time.After(portScanTimeout):
		return fmt.Errorf("timed out listing MIDI ports")
	}

	fmt.Fprintln(w, "Outputs:")
	writePortList(w, r.outs)
	fmt.Fprintln(w, "\nInputs:")
	writePortList(w, r.ins)
	return nil
}

func writePortList(w io.Writer, ports []midi.Descriptor) {
	if len(ports) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, p := range ports {
		line := fmt.Sprintf("  %s: %s", p.ID, p.Name)
		if m, err := midi.DetectModel(p.Name); err == nil {
			line += fmt.Sprintf("  [%s]", m)
		}
		fmt.Fprintln(w, line)
	}
}
