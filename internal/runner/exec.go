package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/signalnine/flakebench/internal/docker"
)

// Exit codes synthesized when the command never produced one.
const (
	ExitCodeTimeout       = 124
	ExitCodeLaunchFailure = 127
)

// Invocation is one ready-to-run benchmark command.
type Invocation struct {
	RunIndex  int
	Attempt   int
	Command   []string
	Env       []string
	Artifact  string
	OutputDir string
}

type ExecResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Executor runs an invocation to completion. An error means the command
// could not be started at all; a nonzero exit is reported in ExecResult.
type Executor interface {
	Execute(ctx context.Context, inv *Invocation) (*ExecResult, error)
}

// LocalExecutor runs the command as a child process sharing this
// process's stdout and stderr.
type LocalExecutor struct{}

func (LocalExecutor) Execute(ctx context.Context, inv *Invocation) (*ExecResult, error) {
	if len(inv.Command) == 0 {
		return nil, fmt.Errorf("run %d: empty command", inv.RunIndex)
	}
	cmd := exec.CommandContext(ctx, inv.Command[0], inv.Command[1:]...)
	cmd.Env = inv.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", inv.Command[0], err)
	}
	err := cmd.Wait()
	res := &ExecResult{Duration: time.Since(start)}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = ExitCodeTimeout
		res.TimedOut = true
		return res, nil
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			// killed by a signal
			res.ExitCode = 1
		}
	default:
		return nil, fmt.Errorf("waiting for %s: %w", inv.Command[0], err)
	}
	return res, nil
}

// DockerExecutor runs the command inside Image with the output directory
// bind-mounted at the same absolute path, so the artifact path in the
// command is valid on both sides.
type DockerExecutor struct {
	Image string
	// PassEnv limits the environment forwarded into the container. Empty
	// forwards everything in the invocation.
	PassEnv []string

	CPUs        float64
	MemoryBytes int64
	Mounts      []docker.Mount
}

func (d DockerExecutor) Execute(ctx context.Context, inv *Invocation) (*ExecResult, error) {
	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	res, err := docker.RunContainer(ctx, d.runOpts(inv, timeout))
	if err != nil {
		return nil, err
	}
	return &ExecResult{ExitCode: res.ExitCode, TimedOut: res.TimedOut, Duration: res.Duration}, nil
}

func (d DockerExecutor) runOpts(inv *Invocation, timeout time.Duration) *docker.RunOpts {
	return &docker.RunOpts{
		Image:       d.Image,
		Command:     inv.Command,
		WorkDir:     inv.OutputDir,
		Env:         d.containerEnv(inv.Env),
		Timeout:     timeout,
		ExtraMounts: d.Mounts,
		Labels:      map[string]string{"flakebench.run": fmt.Sprint(inv.RunIndex)},
		CPULimit:    d.CPUs,
		MemoryLimit: d.MemoryBytes,
		UserID:      fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
	}
}

func (d DockerExecutor) containerEnv(env []string) map[string]string {
	allowed := make(map[string]bool, len(d.PassEnv))
	for _, name := range d.PassEnv {
		allowed[name] = true
	}
	m := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || (len(allowed) > 0 && !allowed[k]) {
			continue
		}
		m[k] = v
	}
	return m
}
