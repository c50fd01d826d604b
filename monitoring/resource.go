package monitoring

import (
	"os"
	"sync"

	"github.com/shirou/gopsutil/process"

	"github.com/sarchlab/memrhythm/sequencer"
	"github.com/sarchlab/memrhythm/sim/hooking"
)

type resourceUsage struct {
	CPUPercent float64
	RSS        uint64
}

func readResourceUsage() (resourceUsage, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return resourceUsage{}, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return resourceUsage{}, err
	}

	memoryInfo, err := p.MemoryInfo()
	if err != nil {
		return resourceUsage{}, err
	}

	return resourceUsage{CPUPercent: cpuPercent, RSS: memoryInfo.RSS}, nil
}

// ResourceSampler is a hook that reads the resident set size of the process
// after every allocation and remembers the peak.
type ResourceSampler struct {
	lock    sync.Mutex
	samples uint64
	lastRSS uint64
	peakRSS uint64
}

// NewResourceSampler creates a ResourceSampler.
func NewResourceSampler() *ResourceSampler {
	return &ResourceSampler{}
}

// Func samples the process after each allocation and at the end of a run.
func (s *ResourceSampler) Func(ctx hooking.HookCtx) {
	if ctx.Pos != sequencer.HookPosAllocate &&
		ctx.Pos != sequencer.HookPosRunEnd {
		return
	}

	usage, err := readResourceUsage()
	if err != nil {
		return
	}

	s.observe(usage.RSS)
}

func (s *ResourceSampler) observe(rss uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.samples++
	s.lastRSS = rss

	if rss > s.peakRSS {
		s.peakRSS = rss
	}
}

// NumSamples returns how many times the RSS was read.
func (s *ResourceSampler) NumSamples() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.samples
}

// LastRSS returns the most recent RSS reading in bytes.
func (s *ResourceSampler) LastRSS() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.lastRSS
}

// PeakRSS returns the largest RSS reading in bytes.
func (s *ResourceSampler) PeakRSS() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.peakRSS
}
