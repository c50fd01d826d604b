package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/memrhythm/sequencer"
	"github.com/sarchlab/memrhythm/sim/hooking"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string
	Name       string
	StartTime  time.Time
	Total      uint64
	Finished   uint64
	InProgress uint64
}

// ProgressBarStatus is a copy of a progress bar at one moment.
type ProgressBarStatus struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// Status returns the current state of the bar.
func (b *ProgressBar) Status() ProgressBarStatus {
	b.Lock()
	defer b.Unlock()

	return ProgressBarStatus{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// ProgressTracker is a hook that shows one progress bar per run. The bar
// counts events; the event being waited on is in progress.
type ProgressTracker struct {
	monitor *Monitor

	lock sync.Mutex
	bar  *ProgressBar
}

// NewProgressTracker creates a ProgressTracker that reports to the monitor.
func NewProgressTracker(m *Monitor) *ProgressTracker {
	return &ProgressTracker{monitor: m}
}

// Func moves the bar along with the playback.
func (t *ProgressTracker) Func(ctx hooking.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch ctx.Pos {
	case sequencer.HookPosRunStart:
		start := ctx.Item.(sequencer.RunStart)
		total := uint64(start.Repetitions) * uint64(len(start.Pattern.Events))
		t.bar = t.monitor.CreateProgressBar(start.Pattern.Name, total)
	case sequencer.HookPosAllocate, sequencer.HookPosRest:
		if t.bar == nil {
			return
		}

		if t.bar.Status().InProgress > 0 {
			t.bar.MoveInProgressToFinished(1)
		}

		t.bar.IncrementInProgress(1)
	case sequencer.HookPosRunEnd:
		if t.bar == nil {
			return
		}

		t.bar.MoveInProgressToFinished(t.bar.Status().InProgress)
		t.monitor.CompleteProgressBar(t.bar)
		t.bar = nil
	}
}

// Current returns the bar of the run being played, or nil.
func (t *ProgressTracker) Current() *ProgressBar {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.bar
}
