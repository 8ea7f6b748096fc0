package runner

import (
	"fmt"
	"time"
)

// RunState is the lifecycle of a single run index.
type RunState int

const (
	StatePending RunState = iota
	StateAttempting
	StateSucceeded
	StateExhausted
)

func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Terminal reports whether no further attempts may happen.
func (s RunState) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted
}

// AttemptOutcome is one execution of the benchmark command.
type AttemptOutcome struct {
	RunIndex int
	Attempt  int
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Run tracks one run index through Pending, Attempting and a terminal state.
type Run struct {
	Index       int
	Artifact    string
	MaxAttempts int
	State       RunState
	Attempts    []AttemptOutcome
}

func newRun(index, maxAttempts int, artifact string) *Run {
	return &Run{Index: index, Artifact: artifact, MaxAttempts: maxAttempts, State: StatePending}
}

// begin moves a pending run into Attempting and returns the next attempt
// number.
func (r *Run) begin() int {
	if r.State == StatePending {
		r.State = StateAttempting
	}
	return len(r.Attempts) + 1
}

// observe applies one attempt outcome. A zero exit code succeeds; the
// MaxAttempts-th failure exhausts the run.
func (r *Run) observe(o AttemptOutcome) RunState {
	if r.State != StateAttempting {
		panic(fmt.Sprintf("run %d: outcome observed in state %s", r.Index, r.State))
	}
	r.Attempts = append(r.Attempts, o)
	switch {
	case o.ExitCode == 0:
		r.State = StateSucceeded
	case len(r.Attempts) >= r.MaxAttempts:
		r.State = StateExhausted
	}
	return r.State
}

// LastExitCode is the exit code of the most recent attempt.
func (r *Run) LastExitCode() int {
	if len(r.Attempts) == 0 {
		return 0
	}
	return r.Attempts[len(r.Attempts)-1].ExitCode
}
