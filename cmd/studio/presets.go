package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/spf13/cobra"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List resize presets usable in recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tLABEL\tEDIT")
			for _, p := range entity.Presets {
				edit := fmt.Sprintf("resize %dx%d", p.Width, p.Height)
				if p.Ratio > 0 {
					edit = fmt.Sprintf("crop-ratio %g", p.Ratio)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Key, p.Label, edit)
			}
			return w.Flush()
		},
	}
}
