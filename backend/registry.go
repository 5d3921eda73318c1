package backend

import (
	"sync"
)

// Backend names known to the registry.
const (
	// BackendWebGPU is the wgpu-native backend (native windows and the
	// browser canvas under js).
	BackendWebGPU = "webgpu"

	// BackendHeadless is the CPU recording backend used for tests and CI.
	BackendHeadless = "headless"
)

// ContextFactory creates a new backend context instance.
type ContextFactory func() Context

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]ContextFactory)
	// Priority order for backend selection (first available wins).
	backendPriority = []string{BackendWebGPU, BackendHeadless}
)

// Register makes a backend selectable by name. Backend packages call
// this from init, so a blank import is enough to enable one. A later
// registration under the same name replaces the earlier factory.
func Register(name string, factory ContextFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry, letting tests
// simulate a build without it.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in no particular
// order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// IsRegistered reports whether a backend name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get builds a fresh context for the named backend, or nil when the
// name is unknown. The caller still owns Init and Close.
func Get(name string) Context {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default picks the most capable registered backend, preferring webgpu
// over headless. Third-party backends registered under other names are
// only considered when none of the known ones are present. Returns nil
// with an empty registry.
func Default() Context {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			if c := factory(); c != nil {
				return c
			}
		}
	}

	for _, factory := range backends {
		if c := factory(); c != nil {
			return c
		}
	}

	return nil
}

// MustDefault is Default, panicking when no backend is registered.
func MustDefault() Context {
	c := Default()
	if c == nil {
		panic("backend: no backend available")
	}
	return c
}

// Select resolves a backend preference to a context. An empty
// preference takes the Default; a named preference must be registered,
// with ErrBackendNotAvailable when it is not.
func Select(preference string) (Context, error) {
	if preference == "" {
		if c := Default(); c != nil {
			return c, nil
		}
		return nil, ErrBackendNotAvailable
	}
	if c := Get(preference); c != nil {
		return c, nil
	}
	return nil, ErrBackendNotAvailable
}
