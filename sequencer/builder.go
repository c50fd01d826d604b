package sequencer

import (
	"github.com/sarchlab/memrhythm/sim/hooking"
	"github.com/sarchlab/memrhythm/sim/id"
	"github.com/sarchlab/memrhythm/sim/timing"
)

// Builder can help building sequencers.
type Builder struct {
	clock       timing.Clock
	idGenerator id.IDGenerator
	hooks       []hooking.Hook
}

// MakeBuilder creates a builder with the wall clock and unique run IDs.
func MakeBuilder() Builder {
	return Builder{
		clock:       timing.NewWallClock(),
		idGenerator: id.NewUniqueIDGenerator(),
	}
}

// WithClock sets the clock that paces the playback.
func (b Builder) WithClock(c timing.Clock) Builder {
	b.clock = c
	return b
}

// WithIDGenerator sets the generator of run IDs.
func (b Builder) WithIDGenerator(g id.IDGenerator) Builder {
	b.idGenerator = g
	return b
}

// WithHook registers a hook on the sequencer when it is built.
func (b Builder) WithHook(h hooking.Hook) Builder {
	hooks := make([]hooking.Hook, 0, len(b.hooks)+1)
	hooks = append(hooks, b.hooks...)
	b.hooks = append(hooks, h)

	return b
}

// Build creates a sequencer.
func (b Builder) Build(name string) *Sequencer {
	s := &Sequencer{
		name:        name,
		clock:       b.clock,
		idGenerator: b.idGenerator,
		state:       StateIdle,
	}

	for _, h := range b.hooks {
		s.AcceptHook(h)
	}

	return s
}
