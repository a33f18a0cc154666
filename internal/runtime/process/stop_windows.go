//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
)

func (p *processInstance) Kill() error {
	if p.cmd.Process == nil || p.exited() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %s: %w", p.name, err)
	}
	return nil
}
