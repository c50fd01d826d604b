package sequencer

import (
	"runtime"
	"sync"

	"github.com/sarchlab/memrhythm/sim/hooking"
)

// AllocationTracer counts what the sequencer allocates and how the Go heap
// reacts. It observes the allocator from outside the sequencer, the same way a
// process-wide allocation tracker would.
type AllocationTracer struct {
	lock sync.Mutex

	readMemStats func(*runtime.MemStats)

	notes          uint64
	rests          uint64
	allocatedBytes uint64

	totalAllocAtStart uint64
	mallocsAtStart    uint64
	heapAllocPeak     uint64
	lastStats         runtime.MemStats
}

// NewAllocationTracer creates an AllocationTracer.
func NewAllocationTracer() *AllocationTracer {
	return &AllocationTracer{
		readMemStats: runtime.ReadMemStats,
	}
}

// Func records runs and steps.
func (t *AllocationTracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosRunStart:
		t.startRun()
	case HookPosAllocate:
		t.recordNote(ctx.Item.(Step))
	case HookPosRest:
		t.recordRest()
	case HookPosRunEnd:
		t.sample()
	}
}

func (t *AllocationTracer) startRun() {
	var stats runtime.MemStats
	t.readMemStats(&stats)

	t.lock.Lock()
	defer t.lock.Unlock()

	t.totalAllocAtStart = stats.TotalAlloc
	t.mallocsAtStart = stats.Mallocs
	t.heapAllocPeak = stats.HeapAlloc
	t.lastStats = stats
}

func (t *AllocationTracer) recordNote(step Step) {
	t.lock.Lock()
	t.notes++
	t.allocatedBytes += step.Event.Bytes()
	t.lock.Unlock()

	t.sample()
}

func (t *AllocationTracer) recordRest() {
	t.lock.Lock()
	t.rests++
	t.lock.Unlock()
}

func (t *AllocationTracer) sample() {
	var stats runtime.MemStats
	t.readMemStats(&stats)

	t.lock.Lock()
	defer t.lock.Unlock()

	if stats.HeapAlloc > t.heapAllocPeak {
		t.heapAllocPeak = stats.HeapAlloc
	}

	t.lastStats = stats
}

// NumNotes returns the number of allocating steps observed.
func (t *AllocationTracer) NumNotes() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.notes
}

// NumRests returns the number of rests observed.
func (t *AllocationTracer) NumRests() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.rests
}

// AllocatedBytes returns the bytes requested by all observed steps.
func (t *AllocationTracer) AllocatedBytes() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.allocatedBytes
}

// HeapStats reports how the Go heap changed since the last run started:
// bytes allocated, number of mallocs and the peak heap size seen.
func (t *AllocationTracer) HeapStats() (totalAlloc, mallocs, peak uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.lastStats.TotalAlloc - t.totalAllocAtStart,
		t.lastStats.Mallocs - t.mallocsAtStart,
		t.heapAllocPeak
}
