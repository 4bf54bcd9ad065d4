//go:build !windows

package engine

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup puts the console in its own process group and
// overrides cmd.Cancel to kill the entire group on context
// cancellation. The console forks solver workers; killing only the
// parent would leave them holding the license seat.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
}
