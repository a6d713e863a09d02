//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// prepareCommand puts the child in its own process group so a timeout kills
// everything it spawned, not just the leader.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
