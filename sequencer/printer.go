package sequencer

import (
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/memrhythm/sim/hooking"
)

// ProgressPrinter is a hook that prints human-readable playback progress.
type ProgressPrinter struct {
	w io.Writer
}

// NewProgressPrinter creates a printer that writes to w. A nil writer means
// standard output.
func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	if w == nil {
		w = os.Stdout
	}

	return &ProgressPrinter{w: w}
}

// Func prints one line for each hook position.
func (p *ProgressPrinter) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosRunStart:
		start := ctx.Item.(RunStart)
		if start.Pattern.Intro != "" {
			fmt.Fprintln(p.w, start.Pattern.Intro)
		}
	case HookPosRepetitionStart:
		rep := ctx.Item.(RepetitionStart)
		fmt.Fprintf(p.w, "\n--- Repetition %d of %d ---\n",
			rep.Repetition, rep.Repetitions)
	case HookPosAllocate:
		step := ctx.Item.(Step)
		fmt.Fprintf(p.w, "Allocated %d KB...\n", step.Event.SizeKB)
	case HookPosRest:
		fmt.Fprintln(p.w, "Resting...")
	case HookPosRunEnd:
		summary := ctx.Item.(RunSummary)
		if summary.Outro != "" {
			fmt.Fprintln(p.w, "\n"+summary.Outro)
		}
	}
}
