//go:build windows

package shell

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/Paintersrp/tether/internal/runtime"
)

func spawnCommand(spec runtime.Spec) (*exec.Cmd, error) {
	dir := spec.Dir
	if dir == "" {
		dir = "."
	}
	line := fmt.Sprintf(`cd /d "%s" && %s`, dir, spec.Image)
	if len(spec.Args) > 0 {
		args, err := joinCmdArgs(spec.Args)
		if err != nil {
			return nil, err
		}
		line += " " + args
	}
	cmd := exec.Command("cmd")
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: "cmd /C " + line}
	return cmd, nil
}

func killCommand(image string) *exec.Cmd {
	cmd := exec.Command("cmd")
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: fmt.Sprintf("cmd /C taskkill /f /im %s 2>nul", image)}
	return cmd
}

func hideConsole(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NO_WINDOW
}

// killTree ends cmd.exe and the executable it started; killing only the
// wrapper would leave the worker running.
func killTree(proc *os.Process) error {
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(proc.Pid))
	hideConsole(kill)
	if err := kill.Run(); err != nil {
		return fmt.Errorf("taskkill tree %d: %w", proc.Pid, err)
	}
	return nil
}
