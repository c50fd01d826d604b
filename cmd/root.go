// Package cmd provides the command-line interface of memrhythm.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/memrhythm/config"
	"github.com/sarchlab/memrhythm/rhythm"
)

// NewRootCommand creates the memrhythm command with all its subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "memrhythm",
		Short: "memrhythm allocates memory in a rhythm that memory monitors " +
			"can see.",
		Long: `memrhythm plays rhythm patterns as heap allocations. Each note ` +
			`allocates a buffer that is kept until the pattern ends, and ` +
			`each note is followed by a pause. Without arguments it plays ` +
			`the simple, harder and anthem presets.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return play(cmd, rhythm.Program())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Read settings from a dotenv-format file")
	flags.Bool("monitor", false, "Serve the playback state over HTTP")
	flags.Int("monitor-port", 0, "Port of the monitoring server, 0 for random")
	flags.Bool("open-browser", false, "Open the monitoring page in a browser")
	flags.String("record", "",
		"Record every step into <path>.sqlite3")
	flags.Duration("pause", config.DefaultPause,
		"Pause between two patterns")

	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newPlayCommand())

	return rootCmd
}

// Execute runs the command line and exits. Recorders registered with atexit
// are flushed before the process ends.
func Execute() {
	err := NewRootCommand().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func play(cmd *cobra.Command, patterns []rhythm.Pattern) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p := newPlayer(cfg, cmd.OutOrStdout())

	err = p.playAll(patterns)
	closeErr := p.close()

	if err != nil {
		return err
	}

	return closeErr
}

// loadConfig reads the config file, if any, and lets the flags that were set
// explicitly override it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if flags.Changed("monitor") {
		cfg.MonitorEnabled, _ = flags.GetBool("monitor")
	}

	if flags.Changed("monitor-port") {
		cfg.MonitorPort, _ = flags.GetInt("monitor-port")
	}

	if flags.Changed("open-browser") {
		cfg.OpenBrowser, _ = flags.GetBool("open-browser")
	}

	if flags.Changed("record") {
		cfg.RecordPath, _ = flags.GetString("record")
	}

	if flags.Changed("pause") {
		cfg.Pause, _ = flags.GetDuration("pause")
	}

	if cfg.Pause < 0 {
		return cfg, fmt.Errorf("pause must not be negative, got %s", cfg.Pause)
	}

	if cfg.OpenBrowser {
		cfg.MonitorEnabled = true
	}

	return cfg, nil
}
