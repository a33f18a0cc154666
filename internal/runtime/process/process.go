package process

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/Paintersrp/tether/internal/runtime"
)

func init() {
	runtime.Register(runtime.DefaultName, New)
}

type runtimeImpl struct{}

// New constructs a runtime that executes named processes as local children.
func New() runtime.Runtime {
	return &runtimeImpl{}
}

func (r *runtimeImpl) Spawn(spec runtime.Spec) (runtime.Process, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("process runtime for %s requires an executable path", spec.Name)
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	env := os.Environ()
	if len(spec.Env) > 0 {
		env = append(env, spec.Env...)
	}
	cmd.Env = env
	// stdio stays nil so the child writes to the null device.

	configureCmdSysProcAttr(cmd, spec)

	reaper, err := startCmd(cmd, spec)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Image, err)
	}

	inst := &processInstance{
		name:   spec.Name,
		cmd:    cmd,
		reaper: reaper,
		done:   make(chan struct{}),
	}
	go inst.reap()
	return inst, nil
}

func (r *runtimeImpl) KillImage(image string) error {
	if image == "" {
		return fmt.Errorf("kill by image requires an image name")
	}
	return killImage(image)
}

type processInstance struct {
	name   string
	cmd    *exec.Cmd
	reaper io.Closer

	done chan struct{}
}

func (p *processInstance) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *processInstance) Done() <-chan struct{} {
	return p.done
}

func (p *processInstance) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *processInstance) reap() {
	_ = p.cmd.Wait()
	if p.reaper != nil {
		_ = p.reaper.Close()
	}
	close(p.done)
}
