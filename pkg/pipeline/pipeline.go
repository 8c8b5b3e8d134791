package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/morikuni/aec"
)

// Stage is one step of the build pipeline. Stages run strictly in
// order; each stage's postcondition is the next one's precondition.
type Stage struct {
	Name string

	// Fatal stages abort the run on error. Non-fatal stages degrade
	// to a recorded warning, reported at the end.
	Fatal bool

	Run func(ctx context.Context) error
}

// Warning is a non-fatal stage failure carried to the end of the run.
type Warning struct {
	Stage string
	Err   error
}

// Result summarizes a completed run. Warnings do not affect the
// process exit code.
type Result struct {
	Completed []string
	Warnings  []Warning
	Elapsed   time.Duration
}

// Runner executes an ordered stage list, stopping at the first fatal
// error. There is no parallelism and no resume: an interrupted run is
// re-run from scratch.
type Runner struct {
	L hclog.Logger

	// Banner, when set, receives a short human-readable line as each
	// stage starts.
	Banner io.Writer

	Stages []Stage
}

func (r *Runner) logger() hclog.Logger {
	if r.L == nil {
		r.L = hclog.L()
	}

	return r.L
}

func (r *Runner) banner(format string, args ...interface{}) {
	if r.Banner == nil {
		return
	}

	fmt.Fprintf(r.Banner, format+"\n", args...)
}

func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := r.logger()

	start := time.Now()

	var res Result

	for i, stage := range r.Stages {
		if err := ctx.Err(); err != nil {
			return &res, err
		}

		r.banner("%s %s", aec.GreenF.Apply(fmt.Sprintf("[%d/%d]", i+1, len(r.Stages))), stage.Name)
		log.Debug("stage starting", "stage", stage.Name)

		stageStart := time.Now()

		err := stage.Run(ctx)
		if err != nil {
			if stage.Fatal {
				log.Error("stage failed", "stage", stage.Name, "error", err)
				return &res, err
			}

			r.banner("%s %s skipped: %s", aec.YellowF.Apply("!"), stage.Name, err)
			log.Warn("stage skipped", "stage", stage.Name, "error", err)

			res.Warnings = append(res.Warnings, Warning{Stage: stage.Name, Err: err})
			continue
		}

		log.Debug("stage complete", "stage", stage.Name, "elapsed", time.Since(stageStart).String())

		res.Completed = append(res.Completed, stage.Name)
	}

	res.Elapsed = time.Since(start)

	for _, w := range res.Warnings {
		r.banner("%s stage %q was skipped: %s", aec.YellowF.Apply("warning:"), w.Stage, w.Err)
	}

	return &res, nil
}
