//go:build windows

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/Paintersrp/tether/internal/runtime"
)

func configureCmdSysProcAttr(cmd *exec.Cmd, spec runtime.Spec) {
	attr := &syscall.SysProcAttr{}
	if spec.HideWindow {
		attr.HideWindow = true
		attr.CreationFlags |= windows.CREATE_NO_WINDOW
	}
	cmd.SysProcAttr = attr
}
