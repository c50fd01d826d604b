package sequencer

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/memrhythm/rhythm"
	"github.com/sarchlab/memrhythm/sim/hooking"
	"github.com/sarchlab/memrhythm/sim/id"
	"github.com/sarchlab/memrhythm/sim/timing"
)

type hookPosMatcher struct {
	pos *hooking.HookPos
}

func atPos(pos *hooking.HookPos) gomock.Matcher {
	return hookPosMatcher{pos: pos}
}

func (m hookPosMatcher) Matches(x any) bool {
	ctx, ok := x.(hooking.HookCtx)
	if !ok {
		return false
	}

	return ctx.Pos == m.pos
}

func (m hookPosMatcher) String() string {
	return "is invoked at " + m.pos.Name
}

type stepRecorder struct {
	steps []Step
}

func (r *stepRecorder) Func(ctx hooking.HookCtx) {
	if step, ok := ctx.Item.(Step); ok {
		r.steps = append(r.steps, step)
	}
}

func bufferSizes(bufs [][]byte) []int {
	sizes := make([]int, 0, len(bufs))
	for _, b := range bufs {
		sizes = append(sizes, len(b))
	}

	return sizes
}

var _ = Describe("Sequencer", func() {
	var (
		clock *timing.ManualClock
		s     *Sequencer
	)

	BeforeEach(func() {
		clock = timing.NewManualClock(
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		s = MakeBuilder().
			WithClock(clock).
			WithIDGenerator(id.NewIDGenerator()).
			Build("Seq")
	})

	It("should start idle", func() {
		Expect(s.Name()).To(Equal("Seq"))
		Expect(s.State()).To(Equal(StateIdle))
		Expect(s.Retained()).To(BeEmpty())
	})

	It("should retain one buffer per note in every repetition", func() {
		p := rhythm.Pattern{
			Name:   "two-step",
			Events: []rhythm.Event{rhythm.Note(2, 250), rhythm.Note(1, 250)},
		}

		err := s.Run(p, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(bufferSizes(s.Retained())).To(
			Equal([]int{2048, 1024, 2048, 1024}))
		Expect(s.RetainedBytes()).To(Equal(uint64(6144)))
		Expect(clock.Elapsed()).To(Equal(1000 * time.Millisecond))
		Expect(s.State()).To(Equal(StateDone))
	})

	It("should only wait on a rest", func() {
		p := rhythm.Pattern{
			Name:   "silence",
			Events: []rhythm.Event{rhythm.Rest(1000)},
		}

		err := s.Run(p, 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(s.Retained()).To(BeEmpty())
		Expect(clock.Sleeps()).To(Equal([]time.Duration{time.Second}))
	})

	It("should play an empty pattern without allocating or waiting", func() {
		err := s.Run(rhythm.Pattern{Name: "empty"}, 3)

		Expect(err).NotTo(HaveOccurred())
		Expect(s.Retained()).To(BeEmpty())
		Expect(s.RetainedBytes()).To(BeZero())
		Expect(clock.Sleeps()).To(BeEmpty())
		Expect(s.State()).To(Equal(StateDone))
	})

	It("should zero-initialize the buffers", func() {
		err := s.Run(rhythm.Pattern{
			Name:   "one",
			Events: []rhythm.Event{rhythm.Note(4, 0)},
		}, 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(s.Retained()[0]).To(Equal(make([]byte, 4096)))
	})

	DescribeTable("retained totals match the pattern",
		func(p rhythm.Pattern) {
			err := s.Play(p)

			Expect(err).NotTo(HaveOccurred())
			Expect(s.Retained()).To(HaveLen(p.Repetitions * p.NumNotes()))
			Expect(s.RetainedBytes()).To(Equal(
				uint64(p.Repetitions) * p.BytesPerRepetition()))
			Expect(clock.Elapsed()).To(Equal(
				time.Duration(p.Repetitions) * p.DurationPerRepetition()))
		},
		Entry("simple", rhythm.Simple()),
		Entry("harder", rhythm.Harder()),
		Entry("anthem", rhythm.Anthem()),
	)

	It("should wait the delays in pattern order", func() {
		err := s.Run(rhythm.Pattern{
			Name: "p",
			Events: []rhythm.Event{
				rhythm.Note(1, 125),
				rhythm.Rest(500),
				rhythm.Note(2, 250),
			},
		}, 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(clock.Sleeps()).To(Equal([]time.Duration{
			125 * time.Millisecond,
			500 * time.Millisecond,
			250 * time.Millisecond,
		}))
	})

	It("should never grow the retained set on a rest", func() {
		recorder := &stepRecorder{}
		s.AcceptHook(recorder)

		err := s.Play(rhythm.Harder())
		Expect(err).NotTo(HaveOccurred())

		prev := 0
		for _, step := range recorder.steps {
			if step.Event.IsRest() {
				Expect(step.RetainedBuffers).To(Equal(prev))
			} else {
				Expect(step.RetainedBuffers).To(Equal(prev + 1))
			}

			prev = step.RetainedBuffers
		}
	})

	It("should reject non-positive repetitions", func() {
		err := s.Run(rhythm.Simple(), 0)

		Expect(err).To(MatchError(ErrInvalidRepetitions))
		Expect(s.State()).To(Equal(StateIdle))
	})

	It("should keep retaining across runs until released", func() {
		p := rhythm.Pattern{
			Name:   "one",
			Events: []rhythm.Event{rhythm.Note(1, 0)},
		}

		Expect(s.Run(p, 1)).To(Succeed())
		Expect(s.Run(p, 2)).To(Succeed())
		Expect(s.Retained()).To(HaveLen(3))

		Expect(s.Release()).To(Succeed())
		Expect(s.Retained()).To(BeEmpty())
		Expect(s.RetainedBytes()).To(BeZero())
		Expect(s.State()).To(Equal(StateIdle))
	})

	It("should report progress in the snapshot", func() {
		var snapshots []Snapshot
		s.AcceptHook(hooking.OnlyAt(
			&snapshotHook{s: s, snapshots: &snapshots}, HookPosAllocate))

		err := s.Run(rhythm.Pattern{
			Name:   "p",
			Events: []rhythm.Event{rhythm.Note(1, 0), rhythm.Note(2, 0)},
		}, 2)
		Expect(err).NotTo(HaveOccurred())

		Expect(snapshots).To(HaveLen(4))
		last := snapshots[3]
		Expect(last.State).To(Equal("playing"))
		Expect(last.RunID).To(Equal("1"))
		Expect(last.Pattern).To(Equal("p"))
		Expect(last.Repetition).To(Equal(2))
		Expect(last.Repetitions).To(Equal(2))
		Expect(last.Step).To(Equal(2))
		Expect(last.RetainedBuffers).To(Equal(4))
		Expect(last.RetainedBytes).To(Equal(uint64(6144)))
	})

	It("should refuse to run or release while playing", func() {
		var runErr, releaseErr error
		s.AcceptHook(hooking.OnlyAt(&reentrantHook{
			do: func() {
				runErr = s.Run(rhythm.Simple(), 1)
				releaseErr = s.Release()
			},
		}, HookPosRunStart))

		Expect(s.Run(rhythm.Pattern{
			Name:   "p",
			Events: []rhythm.Event{rhythm.Note(1, 0)},
		}, 1)).To(Succeed())

		Expect(runErr).To(MatchError(ErrAlreadyPlaying))
		Expect(releaseErr).To(MatchError(ErrAlreadyPlaying))
		Expect(s.Retained()).To(HaveLen(1))
	})

	Context("with a mocked hook", func() {
		var (
			mockCtrl *gomock.Controller
			hook     *MockHook
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			hook = NewMockHook(mockCtrl)
			s.AcceptHook(hook)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should invoke hooks in playback order", func() {
			gomock.InOrder(
				hook.EXPECT().Func(atPos(HookPosRunStart)),
				hook.EXPECT().Func(atPos(HookPosRepetitionStart)),
				hook.EXPECT().Func(atPos(HookPosAllocate)),
				hook.EXPECT().Func(atPos(HookPosRest)),
				hook.EXPECT().Func(atPos(HookPosRepetitionStart)),
				hook.EXPECT().Func(atPos(HookPosAllocate)),
				hook.EXPECT().Func(atPos(HookPosRest)),
				hook.EXPECT().
					Func(atPos(HookPosRunEnd)).
					Do(func(ctx hooking.HookCtx) {
						summary := ctx.Item.(RunSummary)
						Expect(summary.Pattern).To(Equal("p"))
						Expect(summary.Repetitions).To(Equal(2))
						Expect(summary.Buffers).To(Equal(2))
						Expect(summary.Bytes).To(Equal(uint64(6144)))
						Expect(summary.Elapsed).To(Equal(400 * time.Millisecond))
						Expect(ctx.Domain).To(BeIdenticalTo(s))
					}),
			)

			err := s.Run(rhythm.Pattern{
				Name: "p",
				Events: []rhythm.Event{
					rhythm.Note(3, 100),
					rhythm.Rest(100),
				},
			}, 2)

			Expect(err).NotTo(HaveOccurred())
		})
	})
})

var _ = Describe("Sequencer on the wall clock", func() {
	It("should take at least the sum of the delays", func() {
		s := MakeBuilder().Build("Seq")
		p := rhythm.Pattern{
			Name:   "short",
			Events: []rhythm.Event{rhythm.Note(2, 25), rhythm.Note(1, 25)},
		}

		start := time.Now()
		err := s.Run(p, 2)
		elapsed := time.Since(start)

		Expect(err).NotTo(HaveOccurred())
		Expect(elapsed).To(BeNumerically(">=", 100*time.Millisecond))
		Expect(s.Retained()).To(HaveLen(4))
	})
})

var _ = Describe("ProgressPrinter", func() {
	It("should print the playback", func() {
		buf := new(bytes.Buffer)
		s := MakeBuilder().
			WithClock(timing.NewManualClock(time.Time{})).
			WithHook(NewProgressPrinter(buf)).
			Build("Seq")

		err := s.Run(rhythm.Pattern{
			Name:   "p",
			Intro:  "Intro line.",
			Outro:  "Outro line.",
			Events: []rhythm.Event{rhythm.Note(2, 250), rhythm.Rest(250)},
		}, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("Intro line.\n" +
			"\n--- Repetition 1 of 2 ---\n" +
			"Allocated 2 KB...\n" +
			"Resting...\n" +
			"\n--- Repetition 2 of 2 ---\n" +
			"Allocated 2 KB...\n" +
			"Resting...\n" +
			"\nOutro line.\n"))
	})

	It("should skip an empty intro and outro", func() {
		buf := new(bytes.Buffer)
		s := MakeBuilder().
			WithClock(timing.NewManualClock(time.Time{})).
			WithHook(NewProgressPrinter(buf)).
			Build("Seq")

		err := s.Run(rhythm.Pattern{
			Name:   "p",
			Events: []rhythm.Event{rhythm.Note(1, 0)},
		}, 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("\n--- Repetition 1 of 1 ---\n" +
			"Allocated 1 KB...\n"))
	})

	It("should print only the banners of an empty pattern", func() {
		buf := new(bytes.Buffer)
		s := MakeBuilder().
			WithClock(timing.NewManualClock(time.Time{})).
			WithHook(NewProgressPrinter(buf)).
			Build("Seq")

		err := s.Run(rhythm.Pattern{Name: "empty"}, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(Equal("\n--- Repetition 1 of 2 ---\n" +
			"\n--- Repetition 2 of 2 ---\n"))
	})
})

var _ = Describe("AllocationTracer", func() {
	It("should count notes, rests and bytes", func() {
		tracer := NewAllocationTracer()
		s := MakeBuilder().
			WithClock(timing.NewManualClock(time.Time{})).
			WithHook(tracer).
			Build("Seq")

		err := s.Play(rhythm.Anthem())
		Expect(err).NotTo(HaveOccurred())

		Expect(tracer.NumNotes()).To(Equal(uint64(3 * 14)))
		Expect(tracer.NumRests()).To(Equal(uint64(3 * 2)))
		Expect(tracer.AllocatedBytes()).To(Equal(uint64(3 * 45 * 1024)))

		totalAlloc, mallocs, peak := tracer.HeapStats()
		Expect(totalAlloc).To(BeNumerically(">=", 3*45*1024))
		Expect(mallocs).To(BeNumerically(">=", 3*14))
		Expect(peak).To(BeNumerically(">", 0))
	})
})

type snapshotHook struct {
	s         *Sequencer
	snapshots *[]Snapshot
}

func (h *snapshotHook) Func(_ hooking.HookCtx) {
	*h.snapshots = append(*h.snapshots, h.s.Snapshot())
}

type reentrantHook struct {
	do func()
}

func (h *reentrantHook) Func(_ hooking.HookCtx) {
	h.do()
}
