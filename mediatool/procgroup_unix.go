//go:build unix

package mediatool

import (
	"os/exec"
	"syscall"
)

func killGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// negative pid signals the group
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
