//go:build unix

package converter

import (
	"os/exec"
	"syscall"
)

// killProcessGroup runs the converter in its own process group so a timeout
// also reaps helpers it spawned.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
