package datarecording

import (
	"github.com/sarchlab/memrhythm/sequencer"
	"github.com/sarchlab/memrhythm/sim/hooking"
)

// Table names used by the RecordingHook.
const (
	StepTable = "step"
	RunTable  = "run"
)

// StepEntry is one row of the step table.
type StepEntry struct {
	RunID           string
	Pattern         string
	Repetition      int
	Step            int
	IsRest          bool
	SizeKB          uint
	DelayMS         uint
	RetainedBuffers int
	RetainedBytes   uint64
	UnixNano        int64
}

// RunEntry is one row of the run table.
type RunEntry struct {
	RunID       string
	Pattern     string
	Repetitions int
	Buffers     int
	Bytes       uint64
	ElapsedSec  float64
}

// RecordingHook writes every step and run of a sequencer into a
// DataRecorder.
type RecordingHook struct {
	recorder DataRecorder
}

// NewRecordingHook creates the step and run tables and returns a hook that
// fills them.
func NewRecordingHook(recorder DataRecorder) *RecordingHook {
	recorder.CreateTable(StepTable, StepEntry{})
	recorder.CreateTable(RunTable, RunEntry{})

	return &RecordingHook{recorder: recorder}
}

// Func records steps and finished runs.
func (h *RecordingHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case sequencer.HookPosAllocate, sequencer.HookPosRest:
		step := ctx.Item.(sequencer.Step)
		h.recorder.InsertData(StepTable, StepEntry{
			RunID:           step.RunID,
			Pattern:         step.Pattern,
			Repetition:      step.Repetition,
			Step:            step.Index,
			IsRest:          step.Event.IsRest(),
			SizeKB:          step.Event.SizeKB,
			DelayMS:         step.Event.DelayMS,
			RetainedBuffers: step.RetainedBuffers,
			RetainedBytes:   step.RetainedBytes,
			UnixNano:        step.Time.UnixNano(),
		})
	case sequencer.HookPosRunEnd:
		summary := ctx.Item.(sequencer.RunSummary)
		h.recorder.InsertData(RunTable, RunEntry{
			RunID:       summary.RunID,
			Pattern:     summary.Pattern,
			Repetitions: summary.Repetitions,
			Buffers:     summary.Buffers,
			Bytes:       summary.Bytes,
			ElapsedSec:  summary.Elapsed.Seconds(),
		})
		h.recorder.Flush()
	}
}
