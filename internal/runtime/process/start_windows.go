//go:build windows

package process

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	winjob "github.com/kolesnikovae/go-winjob"

	"github.com/Paintersrp/tether/internal/runtime"
)

// startCmd starts cmd, placing it in a kill-on-close job object when the spec
// asks for the child to die with the host. The job handle is returned so the
// reaper can release it once the child has exited.
func startCmd(cmd *exec.Cmd, spec runtime.Spec) (io.Closer, error) {
	if !spec.KillOnHostExit {
		return nil, cmd.Start()
	}

	job, err := winjob.Create(fmt.Sprintf("tether-%d-%s", os.Getpid(), spec.Name),
		winjob.WithKillOnJobClose(),
		winjob.WithBreakawayOK(),
	)
	if err != nil {
		return nil, fmt.Errorf("create job object: %w", err)
	}
	if err := winjob.StartInJobObject(cmd, job); err != nil {
		_ = job.Close()
		return nil, fmt.Errorf("start in job: %w", err)
	}
	return job, nil
}
