// Package driver sequences the decision pipeline and owns its failure
// policy: an erroring change-detector must never silently cause CI to
// skip necessary work, so every fatal condition after resolution still
// produces a conservative "run everything" decision when at all possible.
package driver

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/changegate/internal/changeset"
	"github.com/Sumatoshi-tech/changegate/internal/decision"
	"github.com/Sumatoshi-tech/changegate/internal/observability"
	"github.com/Sumatoshi-tech/changegate/internal/policy"
	"github.com/Sumatoshi-tech/changegate/internal/revision"
	"github.com/Sumatoshi-tech/changegate/pkg/gitlib"
)

// State identifies a stage of the decision pipeline.
type State int

const (
	// StateStart is the initial state.
	StateStart State = iota
	// StateResolving determines the comparison strategy.
	StateResolving
	// StateExtracting lists changed files.
	StateExtracting
	// StateFiltering applies the relevance policy.
	StateFiltering
	// StateSelecting maps the verdict to a workflow variant.
	StateSelecting
	// StateEmitting serializes the decision document.
	StateEmitting
	// StateDone is the successful terminal state.
	StateDone
	// StateError is the failure terminal state, reachable from
	// StateExtracting or StateEmitting only.
	StateError
)

var stateNames = map[State]string{
	StateStart:      "start",
	StateResolving:  "resolving",
	StateExtracting: "extracting",
	StateFiltering:  "filtering",
	StateSelecting:  "selecting",
	StateEmitting:   "emitting",
	StateDone:       "done",
	StateError:      "error",
}

// String returns the stage name.
func (s State) String() string {
	return stateNames[s]
}

// Process exit codes. A zero exit means a decision document was emitted,
// regardless of whether it selects the run or skip workflow.
const (
	// ExitOK means the decision was emitted successfully.
	ExitOK = 0
	// ExitDefaultDecision means a fatal error occurred but the
	// conservative default decision was emitted.
	ExitDefaultDecision = 1
	// ExitNoDecision means not even the default decision could be emitted.
	ExitNoDecision = 2
)

// ExtractFunc lists the changed files for a resolved comparison.
type ExtractFunc func(ctx context.Context, repo *gitlib.Repository, cmp revision.Comparison) (changeset.ChangeSet, error)

// Deps carries everything a run needs. Repo, Policy, Sink, and Logger
// are required; Tracer and Metrics may be nil-equivalent no-ops.
type Deps struct {
	Repo     *gitlib.Repository
	Policy   *policy.Compiled
	Base     string
	Head     string
	Variants decision.Variants

	Emitter      decision.Emitter
	Sink         io.Writer
	FallbackSink io.Writer

	Timeout time.Duration

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.DecisionMetrics

	// Extract overrides the change listing for tests; nil uses
	// changeset.Extract.
	Extract ExtractFunc
}

// Outcome is the result of a driver run.
type Outcome struct {
	Decision decision.Decision
	State    State
	ExitCode int
	Err      error
}

// Run executes the pipeline: resolving → extracting → filtering →
// selecting → emitting. It always attempts to emit a decision; the exit
// code distinguishes a clean run (0), a default decision after failure
// (1), and a failure to emit anything (2).
func Run(ctx context.Context, deps Deps) Outcome {
	if deps.Extract == nil {
		deps.Extract = changeset.Extract
	}

	if deps.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}

	run := &runState{deps: deps, state: StateStart}

	return run.execute(ctx)
}

// runState tracks one pipeline execution.
type runState struct {
	deps  Deps
	state State
}

func (r *runState) execute(ctx context.Context) Outcome {
	var (
		cmp revision.Comparison
		cs  changeset.ChangeSet
		err error
	)

	r.stage(ctx, StateResolving, func(context.Context) error {
		cmp = revision.Resolve(r.deps.Repo, r.deps.Base, r.deps.Head)

		return nil
	})

	extractErr := r.stage(ctx, StateExtracting, func(stageCtx context.Context) error {
		cs, err = r.deps.Extract(stageCtx, r.deps.Repo, cmp)

		return err
	})
	if extractErr != nil {
		return r.fail(ctx, extractErr, cmp.FallbackUsed)
	}

	var matched []string

	r.stage(ctx, StateFiltering, func(context.Context) error {
		matched = r.deps.Policy.FilterPaths(cs.Paths)

		return nil
	})

	var d decision.Decision

	r.stage(ctx, StateSelecting, func(context.Context) error {
		d = decision.Select(decision.SelectInput{
			Matched:      matched,
			ChangedFiles: len(cs.Paths),
			FallbackUsed: cmp.FallbackUsed,
			Strategy:     cmp.Strategy.String(),
			Base:         cmp.Base,
			Head:         cmp.Head,
			Variants:     r.deps.Variants,
		})

		return nil
	})

	emitErr := r.stage(ctx, StateEmitting, func(context.Context) error {
		return r.emit(d)
	})
	if emitErr != nil {
		r.state = StateError

		return Outcome{Decision: d, State: r.state, ExitCode: ExitNoDecision, Err: emitErr}
	}

	r.state = StateDone
	r.recordDecision(ctx, d)
	r.deps.Logger.Info("decision emitted",
		"workflow", d.Workflow,
		"should_run", d.ShouldRun,
		"matched", len(d.MatchedPaths),
		"changed", d.ChangedFiles,
		"fallback", d.FallbackUsed,
	)

	return Outcome{Decision: d, State: r.state, ExitCode: ExitOK}
}

// fail handles the error path: emit the conservative default decision
// if the emitter is still reachable. fallbackUsed carries the
// resolver's degradation flag into the document unchanged.
func (r *runState) fail(ctx context.Context, cause error, fallbackUsed bool) Outcome {
	r.state = StateError

	d := decision.DefaultDecision(r.deps.Variants, cause.Error(), fallbackUsed)

	emitErr := r.emit(d)
	if emitErr != nil {
		r.deps.Logger.Error("default decision could not be emitted", "error", emitErr)

		return Outcome{Decision: d, State: r.state, ExitCode: ExitNoDecision, Err: cause}
	}

	r.recordDecision(ctx, d)

	return Outcome{Decision: d, State: r.state, ExitCode: ExitDefaultDecision, Err: cause}
}

// emit writes the decision to the primary sink, retrying once against
// the fallback sink before giving up.
func (r *runState) emit(d decision.Decision) error {
	err := r.deps.Emitter.Emit(d, r.deps.Sink)
	if err == nil {
		return nil
	}

	if r.deps.FallbackSink == nil {
		return err
	}

	r.deps.Logger.Warn("primary sink failed; retrying on fallback sink", "error", err)

	return r.deps.Emitter.Emit(d, r.deps.FallbackSink)
}

// stage runs one pipeline stage under a span, records its duration, and
// logs a single-line diagnostic on failure.
func (r *runState) stage(ctx context.Context, s State, fn func(context.Context) error) error {
	r.state = s

	stageCtx := ctx

	var span trace.Span

	if r.deps.Tracer != nil {
		stageCtx, span = r.deps.Tracer.Start(ctx, "changegate."+s.String())
		defer span.End()
	}

	start := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(start)

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordStage(ctx, s.String(), elapsed, err)
	}

	if err != nil {
		r.deps.Logger.Error("stage failed", "stage", s.String(), "error", err)
	} else {
		r.deps.Logger.Debug("stage complete", "stage", s.String(), "elapsed", elapsed)
	}

	return err
}

func (r *runState) recordDecision(ctx context.Context, d decision.Decision) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordDecision(ctx, d.Workflow, d.FallbackUsed)
	}
}
