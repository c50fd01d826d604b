// Package sequencer replays rhythm patterns as timed heap allocations.
//
// Every buffer allocated during playback is retained until Release is called,
// so the process memory grows in the rhythm of the pattern. Anything that
// wants to watch the playback (printers, tracers, recorders, monitors) attaches
// to the sequencer as a hook.
package sequencer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/memrhythm/rhythm"
	"github.com/sarchlab/memrhythm/sim/hooking"
	"github.com/sarchlab/memrhythm/sim/id"
	"github.com/sarchlab/memrhythm/sim/timing"
)

// Hook positions invoked by the sequencer.
var (
	// HookPosRunStart is invoked before the first repetition. Item is a
	// RunStart.
	HookPosRunStart = &hooking.HookPos{Name: "RunStart"}

	// HookPosRepetitionStart is invoked at the start of each repetition.
	// Item is a RepetitionStart.
	HookPosRepetitionStart = &hooking.HookPos{Name: "RepetitionStart"}

	// HookPosAllocate is invoked after a buffer is retained and before the
	// delay. Item is a Step.
	HookPosAllocate = &hooking.HookPos{Name: "Allocate"}

	// HookPosRest is invoked before the delay of a rest. Item is a Step.
	HookPosRest = &hooking.HookPos{Name: "Rest"}

	// HookPosRunEnd is invoked after the last delay. Item is a RunSummary.
	HookPosRunEnd = &hooking.HookPos{Name: "RunEnd"}
)

// State is the playback state of a sequencer.
type State int

// The sequencer moves from Idle to Playing to Done.
const (
	StateIdle State = iota
	StatePlaying
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrInvalidRepetitions is returned when a run is asked to play fewer
	// than one repetition.
	ErrInvalidRepetitions = errors.New("repetitions must be positive")

	// ErrAlreadyPlaying is returned when Run is called during a run.
	ErrAlreadyPlaying = errors.New("sequencer is already playing")
)

// RunStart describes a run that is about to play.
type RunStart struct {
	RunID       string
	Pattern     rhythm.Pattern
	Repetitions int
	Time        time.Time
}

// RepetitionStart describes a repetition that is about to play. Repetition
// counts from 1.
type RepetitionStart struct {
	RunID       string
	Pattern     string
	Repetition  int
	Repetitions int
}

// A Step is one processed event. RetainedBuffers and RetainedBytes include the
// buffer allocated by this step.
type Step struct {
	RunID           string
	Pattern         string
	Repetition      int
	Index           int
	Event           rhythm.Event
	Time            time.Time
	RetainedBuffers int
	RetainedBytes   uint64
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID       string
	Pattern     string
	Outro       string
	Repetitions int
	Buffers     int
	Bytes       uint64
	Elapsed     time.Duration
}

// Snapshot is a consistent view of the sequencer that can be read while it
// plays.
type Snapshot struct {
	Name            string
	State           string
	RunID           string
	Pattern         string
	Repetition      int
	Repetitions     int
	Step            int
	RetainedBuffers int
	RetainedBytes   uint64
	StartTime       time.Time
}

// A Sequencer plays patterns by allocating and retaining buffers.
type Sequencer struct {
	hooking.HookableBase

	name        string
	clock       timing.Clock
	idGenerator id.IDGenerator

	lock          sync.RWMutex
	state         State
	retained      [][]byte
	retainedBytes uint64
	runID         string
	pattern       string
	repetition    int
	repetitions   int
	step          int
	startTime     time.Time
}

// Name returns the name of the sequencer.
func (s *Sequencer) Name() string {
	return s.name
}

// Play runs the pattern with its own repetition count.
func (s *Sequencer) Play(p rhythm.Pattern) error {
	return s.Run(p, p.Repetitions)
}

// Run plays the pattern the given number of times. It blocks until the last
// delay has passed. The buffers it allocates stay retained after it returns.
func (s *Sequencer) Run(p rhythm.Pattern, repetitions int) error {
	if repetitions < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRepetitions, repetitions)
	}

	runID, err := s.startRun(p, repetitions)
	if err != nil {
		return err
	}

	start := s.clock.Now()
	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosRunStart,
		Item: RunStart{
			RunID:       runID,
			Pattern:     p,
			Repetitions: repetitions,
			Time:        start,
		},
	})

	buffersBefore, bytesBefore := s.retainedTotals()

	for rep := 1; rep <= repetitions; rep++ {
		s.startRepetition(rep)
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    HookPosRepetitionStart,
			Item: RepetitionStart{
				RunID:       runID,
				Pattern:     p.Name,
				Repetition:  rep,
				Repetitions: repetitions,
			},
		})

		for i, evt := range p.Events {
			s.playEvent(runID, p.Name, rep, i, evt)
		}
	}

	buffersAfter, bytesAfter := s.retainedTotals()
	summary := RunSummary{
		RunID:       runID,
		Pattern:     p.Name,
		Outro:       p.Outro,
		Repetitions: repetitions,
		Buffers:     buffersAfter - buffersBefore,
		Bytes:       bytesAfter - bytesBefore,
		Elapsed:     s.clock.Now().Sub(start),
	}

	s.finishRun()
	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosRunEnd,
		Item:   summary,
	})

	return nil
}

func (s *Sequencer) startRun(p rhythm.Pattern, repetitions int) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state == StatePlaying {
		return "", ErrAlreadyPlaying
	}

	s.state = StatePlaying
	s.runID = s.idGenerator.Generate()
	s.pattern = p.Name
	s.repetition = 0
	s.repetitions = repetitions
	s.step = 0
	s.startTime = s.clock.Now()

	return s.runID, nil
}

func (s *Sequencer) startRepetition(rep int) {
	s.lock.Lock()
	s.repetition = rep
	s.step = 0
	s.lock.Unlock()
}

func (s *Sequencer) finishRun() {
	s.lock.Lock()
	s.state = StateDone
	s.lock.Unlock()
}

func (s *Sequencer) playEvent(
	runID, pattern string,
	rep, index int,
	evt rhythm.Event,
) {
	pos := HookPosRest
	if !evt.IsRest() {
		pos = HookPosAllocate
		s.retain(make([]byte, evt.Bytes()))
	}

	s.lock.Lock()
	s.step = index + 1
	step := Step{
		RunID:           runID,
		Pattern:         pattern,
		Repetition:      rep,
		Index:           index,
		Event:           evt,
		Time:            s.clock.Now(),
		RetainedBuffers: len(s.retained),
		RetainedBytes:   s.retainedBytes,
	}
	s.lock.Unlock()

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   step,
	})

	s.clock.Sleep(evt.Delay())
}

func (s *Sequencer) retain(buf []byte) {
	s.lock.Lock()
	s.retained = append(s.retained, buf)
	s.retainedBytes += uint64(len(buf))
	s.lock.Unlock()
}

func (s *Sequencer) retainedTotals() (int, uint64) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.retained), s.retainedBytes
}

// State returns the playback state.
func (s *Sequencer) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.state
}

// Retained returns the retained buffers in allocation order. The buffers are
// shared with the sequencer.
func (s *Sequencer) Retained() [][]byte {
	s.lock.RLock()
	defer s.lock.RUnlock()

	dup := make([][]byte, len(s.retained))
	copy(dup, s.retained)

	return dup
}

// RetainedBytes returns the total size of the retained buffers.
func (s *Sequencer) RetainedBytes() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.retainedBytes
}

// Snapshot returns the current progress of the sequencer.
func (s *Sequencer) Snapshot() Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return Snapshot{
		Name:            s.name,
		State:           s.state.String(),
		RunID:           s.runID,
		Pattern:         s.pattern,
		Repetition:      s.repetition,
		Repetitions:     s.repetitions,
		Step:            s.step,
		RetainedBuffers: len(s.retained),
		RetainedBytes:   s.retainedBytes,
		StartTime:       s.startTime,
	}
}

// Release drops every retained buffer so that the garbage collector can
// reclaim them, and returns the sequencer to idle. It cannot be called while
// playing.
func (s *Sequencer) Release() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state == StatePlaying {
		return ErrAlreadyPlaying
	}

	s.retained = nil
	s.retainedBytes = 0
	s.state = StateIdle

	return nil
}
