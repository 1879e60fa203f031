//go:build !unix && !windows

package mcpmgr

import "os/exec"

func configureSpawn(*exec.Cmd) {}

func terminateTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
