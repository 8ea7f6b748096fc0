package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/signalnine/flakebench/internal/result"
)

// Recorder receives every attempt outcome as it happens, for example to
// persist it in the ledger.
type Recorder interface {
	RecordAttempt(AttemptOutcome) error
}

// Orchestrator drives Runs sequential runs of the benchmark command, each
// retried up to MaxAttempts times.
type Orchestrator struct {
	Runs        int
	MaxAttempts int
	OutputDir   string

	// Check runs once before anything else; a non-nil error aborts.
	Check func() error
	// Build returns the command for a run. It is called once per run,
	// before the first attempt, and must set Invocation.Artifact.
	Build func(runIndex int, outputDir string) (*Invocation, error)

	Executor Executor
	Recorder Recorder
	Logger   *slog.Logger

	// AttemptTimeout bounds a single attempt. Zero means no bound.
	AttemptTimeout time.Duration
}

// Outcome is the result of a fully successful orchestration.
type Outcome struct {
	OutputDir string
	Artifacts []string
	Runs      []*Run
}

// ExhaustedError reports a run whose every attempt failed. Runs after it
// were never attempted.
type ExhaustedError struct {
	RunIndex int
	Attempts []AttemptOutcome
}

func (e *ExhaustedError) Error() string {
	codes := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		codes[i] = fmt.Sprint(a.ExitCode)
	}
	return fmt.Sprintf("run %d exceeded %d attempts without success (exit codes: %s)",
		e.RunIndex, len(e.Attempts), strings.Join(codes, ", "))
}

// ExitCode is the exit code of the final failed attempt.
func (e *ExhaustedError) ExitCode() int {
	if len(e.Attempts) == 0 {
		return 1
	}
	return e.Attempts[len(e.Attempts)-1].ExitCode
}

// Execute runs the orchestration. It returns either all Runs artifacts in
// run order or an error; there is no partial result.
func (o *Orchestrator) Execute(ctx context.Context) (*Outcome, error) {
	log := o.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", o.Runs)
	}
	if o.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", o.MaxAttempts)
	}
	if o.Build == nil || o.Executor == nil {
		return nil, fmt.Errorf("orchestrator needs a command builder and an executor")
	}
	if o.Check != nil {
		if err := o.Check(); err != nil {
			return nil, err
		}
	}

	outDir, err := result.EnsureOutputDir(o.OutputDir)
	if err != nil {
		return nil, err
	}

	out := &Outcome{OutputDir: outDir}
	for idx := 1; idx <= o.Runs; idx++ {
		inv, err := o.Build(idx, outDir)
		if err != nil {
			return nil, fmt.Errorf("building command for run %d: %w", idx, err)
		}
		inv.RunIndex = idx
		inv.OutputDir = outDir
		run := newRun(idx, o.MaxAttempts, inv.Artifact)
		out.Runs = append(out.Runs, run)

		switch o.drive(ctx, log, run, inv) {
		case StateSucceeded:
			log.Info("run succeeded", "run", idx, "attempts", len(run.Attempts), "artifact", run.Artifact)
			out.Artifacts = append(out.Artifacts, run.Artifact)
		case StateExhausted:
			log.Error("run exhausted, aborting",
				"run", idx, "max_attempts", o.MaxAttempts, "exit_code", run.LastExitCode())
			return nil, &ExhaustedError{RunIndex: idx, Attempts: run.Attempts}
		}
	}
	return out, nil
}

// drive attempts one run until it reaches a terminal state.
func (o *Orchestrator) drive(ctx context.Context, log *slog.Logger, run *Run, inv *Invocation) RunState {
	for !run.State.Terminal() {
		attempt := run.begin()
		inv.Attempt = attempt
		log.Info("starting attempt", "run", run.Index, "attempt", attempt, "command", strings.Join(inv.Command, " "))

		outcome := o.attempt(ctx, log, inv)
		if o.Recorder != nil {
			if err := o.Recorder.RecordAttempt(outcome); err != nil {
				log.Warn("recording attempt", "run", run.Index, "attempt", attempt, "err", err)
			}
		}
		if run.observe(outcome) != StateSucceeded {
			log.Warn("attempt failed",
				"run", run.Index, "attempt", attempt, "exit_code", outcome.ExitCode, "timed_out", outcome.TimedOut)
		}
	}
	return run.State
}

func (o *Orchestrator) attempt(ctx context.Context, log *slog.Logger, inv *Invocation) AttemptOutcome {
	attemptCtx := ctx
	if o.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.AttemptTimeout)
		defer cancel()
	}

	outcome := AttemptOutcome{RunIndex: inv.RunIndex, Attempt: inv.Attempt}
	start := time.Now()
	res, err := o.Executor.Execute(attemptCtx, inv)
	if err != nil {
		log.Error("launching command", "run", inv.RunIndex, "attempt", inv.Attempt, "err", err)
		outcome.ExitCode = ExitCodeLaunchFailure
		outcome.Duration = time.Since(start)
		return outcome
	}
	outcome.ExitCode = res.ExitCode
	outcome.TimedOut = res.TimedOut
	outcome.Duration = res.Duration
	return outcome
}
