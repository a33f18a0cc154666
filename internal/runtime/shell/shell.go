// Package shell provides a runtime that goes through the platform shell:
// `cmd /C "cd <dir> && <image>"` to launch and `taskkill /f /im <image>` to
// stop on Windows, with /bin/sh and pkill standing in elsewhere.
//
// Kill requests are dispatched without waiting for the kill command to
// finish, so KillImage never reports ErrNoMatchingProcess.
//
// Spec.KillOnHostExit is not honoured: the shell wrapper cannot place the
// worker it starts in a job object, and config rejects reapOnExit for this
// runtime. On Windows, arguments go through cmd.exe and are quoted there;
// arguments containing quotes, percent or exclamation signs are refused.
package shell

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/Paintersrp/tether/internal/runtime"
)

// Name is the registry key of the shell runtime.
const Name = "shell"

func init() {
	runtime.Register(Name, New)
}

type runtimeImpl struct{}

// New constructs the shell runtime.
func New() runtime.Runtime {
	return &runtimeImpl{}
}

func (r *runtimeImpl) Spawn(spec runtime.Spec) (runtime.Process, error) {
	if spec.Image == "" {
		return nil, fmt.Errorf("shell runtime for %s requires an image name", spec.Name)
	}
	cmd, err := spawnCommand(spec)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Image, err)
	}
	cmd.Env = append(os.Environ(), spec.Env...)
	hideConsole(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Image, err)
	}
	inst := &shellInstance{name: spec.Name, cmd: cmd, done: make(chan struct{})}
	go inst.reap()
	return inst, nil
}

func (r *runtimeImpl) KillImage(image string) error {
	if image == "" {
		return fmt.Errorf("kill by image requires an image name")
	}
	cmd := killCommand(image)
	hideConsole(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("dispatch kill for %s: %w", image, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

type shellInstance struct {
	name string
	cmd  *exec.Cmd

	once sync.Once
	done chan struct{}
}

func (s *shellInstance) PID() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *shellInstance) Done() <-chan struct{} {
	return s.done
}

func (s *shellInstance) Kill() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	if s.cmd.Process == nil {
		return nil
	}
	return killTree(s.cmd.Process)
}

func (s *shellInstance) reap() {
	_ = s.cmd.Wait()
	s.once.Do(func() { close(s.done) })
}
