//go:build windows

package mcpmgr

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureSpawn keeps console children from flashing a window.
func configureSpawn(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}

func terminateTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
