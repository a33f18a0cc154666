//go:build !windows

package process

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func (p *processInstance) Kill() error {
	if p.cmd.Process == nil || p.exited() {
		return nil
	}
	if err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %s: %w", p.name, err)
	}
	return nil
}
