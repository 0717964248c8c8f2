//go:build windows

package proc

import (
	"os/exec"
	"syscall"
)

// Windows process creation flags not exported by package syscall.
const (
	DETACHED_PROCESS = 0x00000008
)

// setupProcessGroup is a no-op on Windows; the default cancel hook kills
// the direct child only.
func setupProcessGroup(cmd *exec.Cmd) {}

// detach starts the command without a console and in its own process
// group so that Ctrl+C in the parent console does not reach it.
func detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP | DETACHED_PROCESS
	cmd.SysProcAttr.HideWindow = true
}
