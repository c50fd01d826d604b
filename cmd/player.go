package cmd

import (
	"fmt"
	"io"

	"github.com/sarchlab/memrhythm/config"
	"github.com/sarchlab/memrhythm/datarecording"
	"github.com/sarchlab/memrhythm/monitoring"
	"github.com/sarchlab/memrhythm/rhythm"
	"github.com/sarchlab/memrhythm/sequencer"
	"github.com/sarchlab/memrhythm/sim/timing"
)

// newClock creates the clock that paces playback.
var newClock = func() timing.Clock {
	return timing.NewWallClock()
}

// player wires a sequencer with the observers selected by the config.
type player struct {
	cfg   config.Config
	clock timing.Clock
	seq   *sequencer.Sequencer

	tracer   *sequencer.AllocationTracer
	monitor  *monitoring.Monitor
	recorder datarecording.DataRecorder
}

func newPlayer(cfg config.Config, out io.Writer) *player {
	p := &player{
		cfg:    cfg,
		clock:  newClock(),
		tracer: sequencer.NewAllocationTracer(),
	}

	builder := sequencer.MakeBuilder().
		WithClock(p.clock).
		WithHook(sequencer.NewProgressPrinter(out)).
		WithHook(p.tracer)

	if cfg.RecordPath != "" {
		p.recorder = datarecording.New(cfg.RecordPath)
		builder = builder.WithHook(datarecording.NewRecordingHook(p.recorder))
	}

	if cfg.MonitorEnabled {
		p.monitor = monitoring.NewMonitor().WithPortNumber(cfg.MonitorPort)
		builder = builder.
			WithHook(monitoring.NewProgressTracker(p.monitor)).
			WithHook(p.monitor.ResourceSampler())
	}

	p.seq = builder.Build("Sequencer")

	if p.monitor != nil {
		p.monitor.RegisterSequencer(p.seq)
		url := p.monitor.StartServer()

		if cfg.OpenBrowser {
			p.monitor.OpenInBrowser(url)
		}
	}

	return p
}

// playAll plays the patterns one after another with the configured pause in
// between. The buffers of a pattern are released when it finishes.
func (p *player) playAll(patterns []rhythm.Pattern) error {
	for i, pattern := range patterns {
		if i > 0 {
			p.clock.Sleep(p.cfg.Pause)
		}

		err := p.seq.Play(pattern)
		if err != nil {
			return fmt.Errorf("playing %s: %w", pattern.Name, err)
		}

		err = p.seq.Release()
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *player) close() error {
	if p.monitor != nil {
		p.monitor.StopServer()
	}

	if p.recorder != nil {
		return p.recorder.Close()
	}

	return nil
}
