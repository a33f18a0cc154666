//go:build !windows

package process

import (
	"io"
	"os/exec"

	"github.com/Paintersrp/tether/internal/runtime"
)

func startCmd(cmd *exec.Cmd, _ runtime.Spec) (io.Closer, error) {
	return nil, cmd.Start()
}
