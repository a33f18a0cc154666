//go:build linux

package process

import (
	"os/exec"
	"syscall"

	"github.com/Paintersrp/tether/internal/runtime"
)

func configureCmdSysProcAttr(cmd *exec.Cmd, spec runtime.Spec) {
	attr := &syscall.SysProcAttr{Setpgid: true}
	if spec.KillOnHostExit {
		// Delivered when the spawning OS thread exits, which for tether is
		// the host shutting down.
		attr.Pdeathsig = syscall.SIGKILL
	}
	cmd.SysProcAttr = attr
}
