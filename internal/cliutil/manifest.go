package cliutil

import (
	"fmt"
	"os"

	"github.com/Paintersrp/tether/internal/config"
	"github.com/Paintersrp/tether/internal/runtime"
	_ "github.com/Paintersrp/tether/internal/runtime/process"
	_ "github.com/Paintersrp/tether/internal/runtime/shell"
	"github.com/Paintersrp/tether/internal/supervisor"
)

// EnvManifestFile overrides the manifest path when no flag is given.
const EnvManifestFile = "TETHER_FILE"

// ResolveManifestPath picks the manifest path from the flag value, the
// environment and finally config.DefaultFile.
func ResolveManifestPath(flagValue string, flagChanged bool) string {
	if flagChanged && flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvManifestFile); env != "" {
		return env
	}
	if flagValue != "" {
		return flagValue
	}
	return config.DefaultFile
}

// Runtime selects the OS runtime named by the manifest.
func Runtime(doc *config.Manifest) (runtime.Runtime, error) {
	rt, err := runtime.NewRegistry().Lookup(doc.Runtime)
	if err != nil {
		return nil, fmt.Errorf("%s: runtime: %w", doc.Source, err)
	}
	return rt, nil
}

// ProcessConfigs converts declared processes into supervisor entries.
func ProcessConfigs(doc *config.Manifest) []supervisor.ProcessConfig {
	out := make([]supervisor.ProcessConfig, 0, len(doc.Processes))
	for _, p := range doc.Processes {
		if p == nil {
			continue
		}
		cp := p.Clone()
		out = append(out, supervisor.ProcessConfig{
			Name:      cp.Name,
			Required:  cp.Required,
			Autostart: cp.Autostarts(),
			Args:      cp.Args,
			Env:       cp.Env,
		})
	}
	return out
}

// NewSupervisor wires a supervisor and its lifecycle hook from a loaded
// manifest.
func NewSupervisor(doc *config.Manifest, rt runtime.Runtime, events chan<- supervisor.Event) (*supervisor.Supervisor, *supervisor.Hook, error) {
	sup, err := supervisor.New(rt, ProcessConfigs(doc),
		supervisor.WithResourceDir(doc.Resources.ResolvedDir),
		supervisor.WithExtension(doc.Resources.Ext()),
		supervisor.WithKillMode(supervisor.KillMode(doc.Shutdown.Kill)),
		supervisor.WithReapOnExit(doc.Shutdown.ReapOnExit),
		supervisor.WithEvents(events),
	)
	if err != nil {
		return nil, nil, err
	}
	hook := supervisor.NewHook(sup,
		supervisor.WithWindowLabel(doc.App.Window),
		supervisor.WithShutdownOrder(supervisor.ShutdownOrder(doc.Shutdown.Order)),
		supervisor.WithShutdownTimeout(doc.Shutdown.Timeout.Duration),
	)
	return sup, hook, nil
}
