// Package executor runs external recon tools with a hard wall-clock timeout.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"attackgraph/internal/logger"
	"attackgraph/pkg/models"
)

// ErrTimeout is wrapped by Outcome.Err when a tool exceeds its timeout.
var ErrTimeout = errors.New("tool timed out")

// DefaultTimeout applies when neither the invocation nor the executor set one.
const DefaultTimeout = 120 * time.Second

// killGrace bounds how long Wait blocks on inherited pipes after the kill.
const killGrace = 2 * time.Second

// Invocation describes one tool process.
type Invocation struct {
	Module  string
	Tool    string
	Argv    []string
	Target  string
	Timeout time.Duration
	// Dir is the working directory of the process.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// Outcome is the captured result of one process.
type Outcome struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	TimedOut bool
	// Err is set when the process could not run to completion. A non-zero
	// exit is not an error.
	Err error
}

// Status maps the outcome onto a module status: ok iff the exit code is zero.
func (o Outcome) Status() models.Status {
	if o.Err == nil && !o.TimedOut && o.ExitCode == 0 {
		return models.StatusOK
	}
	return models.StatusToolError
}

// Runner is anything that can execute an invocation. Modules depend on this
// so tests can substitute canned outcomes.
type Runner interface {
	Run(ctx context.Context, inv Invocation) Outcome
}

// Executor spawns one OS process per invocation.
type Executor struct {
	defaultTimeout time.Duration
}

// New creates an executor. A non-positive defaultTimeout selects DefaultTimeout.
func New(defaultTimeout time.Duration) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Executor{defaultTimeout: defaultTimeout}
}

// Run spawns inv.Argv, captures both streams in full and kills the process
// when the timeout elapses. A timed-out run carries no output and no exit code.
func (e *Executor) Run(ctx context.Context, inv Invocation) Outcome {
	if len(inv.Argv) == 0 {
		return Outcome{ExitCode: -1, Err: errors.New("empty argv")}
	}
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fields := logger.Fields{
		"module": inv.Module,
		"tool":   inv.Tool,
		"target": inv.Target,
		"cmd":    MaskArgs(inv.Argv),
	}
	logger.WithFields(fields).Info("run")

	cmd := exec.CommandContext(runCtx, inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.WaitDelay = killGrace
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	dur := time.Since(start)
	fields["duration"] = dur.Round(time.Millisecond).String()

	if timedOut(err, runCtx, ctx) {
		logger.WithFields(fields).Warnf("timed out after %s", timeout)
		return Outcome{
			ExitCode: -1,
			Duration: dur,
			TimedOut: true,
			Err:      fmt.Errorf("%s after %s: %w", inv.Tool, timeout, ErrTimeout),
		}
	}

	out := Outcome{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: dur}
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			out.ExitCode = -1
			out.Err = fmt.Errorf("%s cancelled: %w", inv.Tool, ctx.Err())
		case errors.As(err, &exitErr):
			out.ExitCode = exitErr.ExitCode()
		default:
			out.ExitCode = -1
			out.Err = fmt.Errorf("failed to start %s: %w", inv.Tool, err)
		}
	}

	fields["exit_code"] = out.ExitCode
	if out.Err != nil {
		logger.WithFields(fields).Errorf("exec failed: %v", out.Err)
	} else {
		logger.WithFields(fields).Info("exit")
	}
	return out
}

// timedOut reports whether a failed run was ended by its own deadline. A run
// that exited cleanly keeps its output even when the deadline passed since.
func timedOut(runErr error, runCtx, parent context.Context) bool {
	return runErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil
}
