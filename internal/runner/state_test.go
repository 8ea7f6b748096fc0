package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStateMachine(t *testing.T) {
	r := newRun(1, 2, "a.json")
	assert.Equal(t, StatePending, r.State)

	n := r.begin()
	assert.Equal(t, 1, n)
	assert.Equal(t, StateAttempting, r.State)
	assert.Equal(t, StateAttempting, r.observe(AttemptOutcome{RunIndex: 1, Attempt: 1, ExitCode: 9}))

	n = r.begin()
	assert.Equal(t, 2, n)
	assert.Equal(t, StateExhausted, r.observe(AttemptOutcome{RunIndex: 1, Attempt: 2, ExitCode: 4}))
	assert.True(t, r.State.Terminal())
	assert.Equal(t, 4, r.LastExitCode())
}

func TestRunSucceedsOnZeroExit(t *testing.T) {
	r := newRun(3, 5, "c.json")
	r.begin()
	assert.Equal(t, StateSucceeded, r.observe(AttemptOutcome{RunIndex: 3, Attempt: 1}))
	assert.True(t, r.State.Terminal())
}

func TestObserveOutsideAttemptingPanics(t *testing.T) {
	r := newRun(1, 1, "a.json")
	assert.Panics(t, func() { r.observe(AttemptOutcome{}) })
}

func TestRunStateString(t *testing.T) {
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "RunState(9)", RunState(9).String())
}
