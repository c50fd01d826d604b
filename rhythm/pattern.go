// Package rhythm defines the allocation patterns that the sequencer plays.
package rhythm

import (
	"errors"
	"fmt"
	"time"
)

// BytesPerKB is the number of bytes in one KB of an Event.
const BytesPerKB = 1024

// An Event is one step of a pattern: allocate SizeKB kilobytes, then wait
// DelayMS milliseconds. An event with SizeKB == 0 is a rest.
type Event struct {
	SizeKB  uint
	DelayMS uint
}

// Note creates an allocating event.
func Note(sizeKB, delayMS uint) Event {
	return Event{SizeKB: sizeKB, DelayMS: delayMS}
}

// Rest creates an event that only waits.
func Rest(delayMS uint) Event {
	return Event{DelayMS: delayMS}
}

// IsRest returns true if the event does not allocate.
func (e Event) IsRest() bool {
	return e.SizeKB == 0
}

// Bytes returns the number of bytes the event allocates.
func (e Event) Bytes() uint64 {
	return uint64(e.SizeKB) * BytesPerKB
}

// Delay returns the pause after the event.
func (e Event) Delay() time.Duration {
	return time.Duration(e.DelayMS) * time.Millisecond
}

// A Pattern is an ordered phrase of events. Patterns are values; playback
// never modifies them. Intro is printed before the first repetition and
// Outro after the last one; either may be empty.
type Pattern struct {
	Name        string
	Intro       string
	Outro       string
	Events      []Event
	Repetitions int
}

// ErrEmptyPattern is returned when a pattern has no events.
var ErrEmptyPattern = errors.New("pattern has no events")

// Validate checks that the pattern can be played.
func (p Pattern) Validate() error {
	if len(p.Events) == 0 {
		return fmt.Errorf("%s: %w", p.Name, ErrEmptyPattern)
	}

	if p.Repetitions < 1 {
		return fmt.Errorf(
			"%s: repetitions must be positive, got %d",
			p.Name, p.Repetitions)
	}

	return nil
}

// NumNotes returns the number of allocating events in one repetition.
func (p Pattern) NumNotes() int {
	n := 0
	for _, e := range p.Events {
		if !e.IsRest() {
			n++
		}
	}

	return n
}

// BytesPerRepetition returns the bytes allocated by one pass over the
// pattern.
func (p Pattern) BytesPerRepetition() uint64 {
	var total uint64
	for _, e := range p.Events {
		total += e.Bytes()
	}

	return total
}

// DurationPerRepetition returns the sum of all delays in the pattern.
func (p Pattern) DurationPerRepetition() time.Duration {
	var total time.Duration
	for _, e := range p.Events {
		total += e.Delay()
	}

	return total
}

// WithRepetitions returns a copy of the pattern with a different repetition
// count. The event slice is shared.
func (p Pattern) WithRepetitions(repetitions int) Pattern {
	p.Repetitions = repetitions
	return p
}
