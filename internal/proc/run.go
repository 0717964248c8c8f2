// Package proc runs the external tools devserve orchestrates: a
// synchronous, time-bounded run for the dependency install and a detached
// start for the dev server.
//
// Both wrap os/exec. Synchronous commands run in their own process group so
// that a timeout kills the whole tree (package managers spawn children that
// would otherwise keep the output pipes open).
package proc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mmr-tortoise/devserve/internal/model"
)

// waitDelay bounds how long Wait keeps reading output after the process
// was killed or exited while grandchildren still hold the pipes.
const waitDelay = 2 * time.Second

// Command describes an external command invocation.
type Command struct {
	// Args is the command line, program name first.
	Args []string

	// Dir is the working directory.
	Dir string

	// Env holds extra environment variables added on top of os.Environ().
	Env map[string]string
}

// String returns the command line for display.
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// environ returns the inherited environment plus c.Env.
func (c Command) environ() []string {
	env := os.Environ()
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// Run executes c synchronously and waits for it to finish or for timeout to
// elapse. It never returns an error: every failure mode (missing binary,
// non-zero exit, timeout, cancelled context) is described by the returned
// CommandResult so the caller can decide whether it is fatal.
//
// Both output streams are captured and trimmed. Stderr explains failures;
// stdout is only meant for the caller's debug log.
func Run(ctx context.Context, c Command, timeout time.Duration) *model.CommandResult {
	result := &model.CommandResult{
		Args:     c.Args,
		Dir:      c.Dir,
		ExitCode: -1,
	}
	if len(c.Args) == 0 {
		result.Err = fmt.Errorf("empty command")
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- the command line comes from the user's own configuration
	cmd := exec.CommandContext(runCtx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.environ()
	cmd.WaitDelay = waitDelay
	setupProcessGroup(cmd)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = strings.TrimSpace(stdout.String())
	result.Stderr = strings.TrimSpace(stderr.String())

	if err == nil {
		result.ExitCode = 0
		return result
	}

	result.Err = err
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.TimedOut = true
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	return result
}
