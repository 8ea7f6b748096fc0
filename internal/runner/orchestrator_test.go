package runner_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/flakebench/internal/result"
	"github.com/signalnine/flakebench/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedExecutor returns exit codes from a per-run script; a run with no
// script, or past its end, succeeds.
type scriptedExecutor struct {
	script map[int][]int
	calls  []runner.Invocation
}

func (s *scriptedExecutor) Execute(_ context.Context, inv *runner.Invocation) (*runner.ExecResult, error) {
	s.calls = append(s.calls, *inv)
	codes := s.script[inv.RunIndex]
	n := inv.Attempt - 1
	if n < len(codes) {
		return &runner.ExecResult{ExitCode: codes[n]}, nil
	}
	return &runner.ExecResult{ExitCode: 0}, nil
}

func (s *scriptedExecutor) attemptsFor(run int) int {
	n := 0
	for _, c := range s.calls {
		if c.RunIndex == run {
			n++
		}
	}
	return n
}

type memRecorder struct {
	outcomes []runner.AttemptOutcome
	err      error
}

func (m *memRecorder) RecordAttempt(o runner.AttemptOutcome) error {
	m.outcomes = append(m.outcomes, o)
	return m.err
}

func newOrchestrator(t *testing.T, runs, maxAttempts int, exec runner.Executor) *runner.Orchestrator {
	t.Helper()
	return &runner.Orchestrator{
		Runs:        runs,
		MaxAttempts: maxAttempts,
		OutputDir:   filepath.Join(t.TempDir(), "out"),
		Build: func(idx int, dir string) (*runner.Invocation, error) {
			path := result.ArtifactPath(dir, "bench", idx)
			return &runner.Invocation{Command: []string{"bench", "--output", path}, Artifact: path}, nil
		},
		Executor: exec,
	}
}

func TestAllRunsSucceed(t *testing.T) {
	for _, runs := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("runs=%d", runs), func(t *testing.T) {
			exec := &scriptedExecutor{}
			o := newOrchestrator(t, runs, 3, exec)

			out, err := o.Execute(context.Background())
			require.NoError(t, err)
			require.Len(t, out.Artifacts, runs)
			for i, a := range out.Artifacts {
				assert.Equal(t, result.ArtifactPath(out.OutputDir, "bench", i+1), a)
			}
			assert.Len(t, exec.calls, runs)
			assert.DirExists(t, out.OutputDir)
		})
	}
}

func TestRetryThenSucceed(t *testing.T) {
	exec := &scriptedExecutor{script: map[int][]int{2: {1, 7}}}
	o := newOrchestrator(t, 3, 3, exec)

	out, err := o.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.Artifacts, 3)

	assert.Equal(t, 1, exec.attemptsFor(1))
	assert.Equal(t, 3, exec.attemptsFor(2))
	assert.Equal(t, 1, exec.attemptsFor(3))

	run2 := out.Runs[1]
	assert.Equal(t, runner.StateSucceeded, run2.State)
	require.Len(t, run2.Attempts, 3)
	assert.Equal(t, []int{1, 7, 0}, []int{run2.Attempts[0].ExitCode, run2.Attempts[1].ExitCode, run2.Attempts[2].ExitCode})
}

func TestExhaustedAbortsRemainingRuns(t *testing.T) {
	exec := &scriptedExecutor{script: map[int][]int{2: {1, 2, 42}}}
	o := newOrchestrator(t, 4, 3, exec)

	out, err := o.Execute(context.Background())
	require.Error(t, err)
	assert.Nil(t, out, "no partial result on abort")

	var ex *runner.ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 2, ex.RunIndex)
	assert.Equal(t, 42, ex.ExitCode())
	assert.Len(t, ex.Attempts, 3)

	assert.Equal(t, 3, exec.attemptsFor(2))
	assert.Zero(t, exec.attemptsFor(3))
	assert.Zero(t, exec.attemptsFor(4))
	for _, c := range exec.calls {
		assert.LessOrEqual(t, c.Attempt, 3)
	}
}

func TestSingleAttemptBound(t *testing.T) {
	exec := &scriptedExecutor{script: map[int][]int{1: {5}}}
	o := newOrchestrator(t, 2, 1, exec)

	_, err := o.Execute(context.Background())
	var ex *runner.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 5, ex.ExitCode())
	assert.Len(t, exec.calls, 1)
}

func TestCheckFailsBeforeAnyRun(t *testing.T) {
	exec := &scriptedExecutor{}
	o := newOrchestrator(t, 3, 3, exec)
	checkErr := errors.New("missing required environment variable(s): A, B")
	o.Check = func() error { return checkErr }

	_, err := o.Execute(context.Background())
	assert.ErrorIs(t, err, checkErr)
	assert.Empty(t, exec.calls)
	assert.NoDirExists(t, o.OutputDir)
}

func TestRecorderSeesEveryAttempt(t *testing.T) {
	exec := &scriptedExecutor{script: map[int][]int{1: {3}}}
	rec := &memRecorder{err: errors.New("disk full")}
	o := newOrchestrator(t, 2, 2, exec)
	o.Recorder = rec

	_, err := o.Execute(context.Background())
	require.NoError(t, err, "recorder failures are not fatal")
	require.Len(t, rec.outcomes, 3)
	assert.Equal(t, runner.AttemptOutcome{RunIndex: 1, Attempt: 1, ExitCode: 3}, rec.outcomes[0])
	assert.Equal(t, 2, rec.outcomes[1].Attempt)
	assert.Equal(t, 2, rec.outcomes[2].RunIndex)
}

type failingLauncher struct{}

func (failingLauncher) Execute(context.Context, *runner.Invocation) (*runner.ExecResult, error) {
	return nil, errors.New("exec: \"bun\": executable file not found in $PATH")
}

func TestLaunchFailureCountsAsFailedAttempt(t *testing.T) {
	o := newOrchestrator(t, 1, 2, failingLauncher{})

	_, err := o.Execute(context.Background())
	var ex *runner.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, runner.ExitCodeLaunchFailure, ex.ExitCode())
	assert.Len(t, ex.Attempts, 2)
}

type deadlineExecutor struct{ sawDeadline bool }

func (d *deadlineExecutor) Execute(ctx context.Context, _ *runner.Invocation) (*runner.ExecResult, error) {
	_, d.sawDeadline = ctx.Deadline()
	return &runner.ExecResult{}, nil
}

func TestAttemptTimeoutSetsDeadline(t *testing.T) {
	exec := &deadlineExecutor{}
	o := newOrchestrator(t, 1, 1, exec)
	_, err := o.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, exec.sawDeadline, "no timeout unless configured")

	o.AttemptTimeout = time.Minute
	_, err = o.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, exec.sawDeadline)
}

func TestInvalidBounds(t *testing.T) {
	_, err := newOrchestrator(t, 0, 3, &scriptedExecutor{}).Execute(context.Background())
	assert.Error(t, err)
	_, err = newOrchestrator(t, 1, 0, &scriptedExecutor{}).Execute(context.Background())
	assert.Error(t, err)
}
