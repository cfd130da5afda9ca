package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"snap-blaster/project"
	"snap-blaster/scene"
)

func newScenesCmd() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "scenes <project>",
		Short: "List the scenes of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := project.Load(args[0])
			if err != nil {
				return err
			}
			return printScenes(cmd.OutOrStdout(), p, tag)
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only list scenes with this tag")
	return cmd
}

func printScenes(w io.Writer, p *scene.Project, tag string) error {
	scenes := p.ScenesWithTag(tag)
	if len(scenes) == 0 {
		fmt.Fprintln(w, "(no scenes)")
		return nil
	}
	fmt.Fprintf(w, "%-4s %-20s %-20s %-10s %-6s %s\n", "PAD", "ID", "NAME", "TRIGGER", "VALUES", "TAGS")
	for _, s := range scenes {
		pad := "-"
		if s.GridPosition != nil {
			pad = fmt.Sprint(*s.GridPosition)
		}
		fmt.Fprintf(w, "%-4s %-20s %-20s %-10s %-6d %s\n",
			pad, s.ID, s.Name, s.Trigger, len(s.Values), strings.Join(s.Tags, ","))
	}
	return nil
}
