package headless

import "github.com/Paintersrp/tether/internal/runtime"

type nopRuntime struct{}

func (nopRuntime) Spawn(runtime.Spec) (runtime.Process, error) { return nil, nil }

func (nopRuntime) KillImage(string) error { return nil }
