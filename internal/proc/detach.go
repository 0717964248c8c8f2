package proc

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/mmr-tortoise/devserve/internal/model"
)

// StartDetached starts c as a background process that outlives devserve.
//
// The process gets its own session (Unix) or a detached process group
// (Windows), no stdin, and both stdout and stderr written to out. After
// starting, it watches the process for up to grace: an exit inside that
// window is reported in the result, otherwise the process is left running
// and the result only carries its PID.
//
// The caller owns out and may close it as soon as StartDetached returns;
// the child holds its own descriptor.
func StartDetached(ctx context.Context, c Command, out *os.File, grace time.Duration) *model.LaunchResult {
	result := &model.LaunchResult{Args: c.Args}
	if len(c.Args) == 0 {
		result.ExitCode = -1
		result.Err = errors.New("empty command")
		return result
	}

	// exec.Command rather than CommandContext: cancelling ctx must not kill
	// the server.
	// #nosec G204 -- the command line comes from the user's own configuration
	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.environ()
	cmd.Stdout = out
	cmd.Stderr = out
	detach(cmd)

	if err := cmd.Start(); err != nil {
		result.ExitCode = -1
		result.Err = err
		return result
	}
	result.PID = cmd.Process.Pid

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-done:
		result.Exited = true
		result.ExitCode = cmd.ProcessState.ExitCode()
		if err != nil {
			result.Err = err
		}
	case <-timer.C:
		// Still running: the normal case for a dev server.
	case <-ctx.Done():
		// Stop watching; the process keeps running regardless.
	}

	return result
}
