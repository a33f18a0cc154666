package runtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultName is the runtime used when a manifest does not choose one.
const DefaultName = "process"

// Factory constructs a runtime instance.
type Factory func() Runtime

type factoryEntry struct {
	name    string
	factory Factory
}

var (
	registryMu       sync.RWMutex
	builtinFactories []factoryEntry
)

// Register associates the provided factory with the runtime name. When multiple
// factories register the same name the most recent registration wins.
func Register(name string, factory Factory) {
	if name == "" {
		panic("runtime.Register: name must not be empty")
	}
	if factory == nil {
		panic("runtime.Register: factory must not be nil")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	for i, entry := range builtinFactories {
		if entry.name == name {
			builtinFactories[i].factory = factory
			return
		}
	}

	builtinFactories = append(builtinFactories, factoryEntry{name: name, factory: factory})
}

// NewRegistry constructs the default runtime registry containing all registered
// runtime adapters.
func NewRegistry() Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg := make(Registry, len(builtinFactories))
	for _, entry := range builtinFactories {
		reg[entry.name] = entry.factory()
	}
	return reg
}

// Names lists the registered runtime names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(builtinFactories))
	for _, entry := range builtinFactories {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the runtime registered under name, falling back to
// DefaultName when name is empty.
func (r Registry) Lookup(name string) (Runtime, error) {
	if name == "" {
		name = DefaultName
	}
	rt, ok := r[name]
	if !ok || rt == nil {
		return nil, fmt.Errorf("unknown runtime %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return rt, nil
}
