package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/memrhythm/rhythm"
)

func newPlayCommand() *cobra.Command {
	playCmd := &cobra.Command{
		Use:   "play [pattern]",
		Short: "Play one built-in pattern.",
		Long: "`play [pattern]` plays one of the patterns shown by `list`. " +
			"--repetitions overrides the repetition count of the pattern.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rhythm.Lookup(args[0])
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("repetitions") {
				repetitions, _ := cmd.Flags().GetInt("repetitions")
				p = p.WithRepetitions(repetitions)
			}

			return play(cmd, []rhythm.Pattern{p})
		},
	}

	playCmd.Flags().Int("repetitions", 0,
		"Number of repetitions, defaults to the pattern's own")

	return playCmd
}
