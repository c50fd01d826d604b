package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memrhythm/rhythm"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in patterns.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tEVENTS\tNOTES\tREPETITIONS\tKB/REP\tDURATION/REP")

			for _, name := range rhythm.PresetNames() {
				p, err := rhythm.Lookup(name)
				if err != nil {
					return err
				}

				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n",
					p.Name,
					len(p.Events),
					p.NumNotes(),
					p.Repetitions,
					p.BytesPerRepetition()/rhythm.BytesPerKB,
					p.DurationPerRepetition())
			}

			return tw.Flush()
		},
	}
}
