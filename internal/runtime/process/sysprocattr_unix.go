//go:build !windows && !linux

package process

import (
	"os/exec"
	"syscall"

	"github.com/Paintersrp/tether/internal/runtime"
)

func configureCmdSysProcAttr(cmd *exec.Cmd, _ runtime.Spec) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
