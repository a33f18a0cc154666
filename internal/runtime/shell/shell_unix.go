//go:build !windows

package shell

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/tether/internal/runtime"
)

const spawnScript = `cd "$0" || exit 127; img="$1"; shift; exec "./$img" "$@"`

func spawnCommand(spec runtime.Spec) (*exec.Cmd, error) {
	dir := spec.Dir
	if dir == "" {
		dir = "."
	}
	args := append([]string{"-c", spawnScript, dir, spec.Image}, spec.Args...)
	return exec.Command("/bin/sh", args...), nil
}

func killCommand(image string) *exec.Cmd {
	return exec.Command("/bin/sh", "-c", `pkill -9 -x "$0" 2>/dev/null`, runtime.ImageStem(image))
}

func hideConsole(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killTree(proc *os.Process) error {
	if err := unix.Kill(-proc.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", proc.Pid, err)
	}
	return nil
}
