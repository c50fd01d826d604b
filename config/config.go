// Package config holds the optional settings of the memrhythm command.
//
// Settings come from defaults, then from an optional dotenv-format file, then
// from command-line flags. Reading the file never changes the process
// environment.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Keys understood in a config file.
const (
	KeyMonitor     = "MEMRHYTHM_MONITOR"
	KeyMonitorPort = "MEMRHYTHM_MONITOR_PORT"
	KeyOpenBrowser = "MEMRHYTHM_OPEN_BROWSER"
	KeyRecord      = "MEMRHYTHM_RECORD"
	KeyPause       = "MEMRHYTHM_PAUSE"
)

// DefaultPause is the silence between two presets of the default program.
const DefaultPause = time.Second

// Config is the full set of settings.
type Config struct {
	// MonitorEnabled starts the monitoring web server.
	MonitorEnabled bool

	// MonitorPort is the port of the monitoring server. 0 picks a random
	// port.
	MonitorPort int

	// OpenBrowser opens the monitoring page once the server is up.
	OpenBrowser bool

	// RecordPath, when set, records every step into <RecordPath>.sqlite3.
	RecordPath string

	// Pause is the silence between two presets.
	Pause time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Pause: DefaultPause,
	}
}

// Load returns the defaults overridden by the given file. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	err = cfg.apply(values)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) apply(values map[string]string) error {
	if v, ok := values[KeyMonitor]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyMonitor, err)
		}

		c.MonitorEnabled = b
	}

	if v, ok := values[KeyMonitorPort]; ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyMonitorPort, err)
		}

		c.MonitorPort = port
	}

	if v, ok := values[KeyOpenBrowser]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyOpenBrowser, err)
		}

		c.OpenBrowser = b
	}

	if v, ok := values[KeyRecord]; ok {
		c.RecordPath = v
	}

	if v, ok := values[KeyPause]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyPause, err)
		}

		if d < 0 {
			return fmt.Errorf("%s: negative pause %s", KeyPause, d)
		}

		c.Pause = d
	}

	return nil
}
