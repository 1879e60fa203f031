//go:build unix

package mcpmgr

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureSpawn starts the child in its own process group so the whole
// tree can be signalled on timeout.
func configureSpawn(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateTree kills the child's process group.
func terminateTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
