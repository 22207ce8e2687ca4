package sdk

import (
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// BackendConstructor opens a backend on first use.
type BackendConstructor func() (Backend, error)

var (
	registryMu sync.Mutex
	registry   = map[string]BackendConstructor{}
	opened     = map[string]Backend{}
)

// RegisterBackend makes a backend available by name. It panics on duplicate names.
func RegisterBackend(name string, ctor BackendConstructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic(errors.Errorf("sdk backend %q already registered", name))
	}
	registry[name] = ctor
}

// LookupBackend returns the named backend, opening it the first time it is asked for.
func LookupBackend(name string) (Backend, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if b, ok := opened[name]; ok {
		return b, nil
	}
	ctor, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown sdk backend %q (registered: %v)", name, registeredLocked())
	}
	b, err := ctor()
	if err != nil {
		return nil, errors.Wrapf(err, "opening sdk backend %q", name)
	}
	opened[name] = b
	return b, nil
}

// CloseBackends closes every opened backend that holds resources and forgets it,
// so a later lookup opens it again.
func CloseBackends() error {
	registryMu.Lock()
	defer registryMu.Unlock()
	var err error
	for name, b := range opened {
		if c, ok := b.(io.Closer); ok {
			err = multierr.Combine(err, errors.Wrapf(c.Close(), "closing sdk backend %q", name))
		}
		delete(opened, name)
	}
	return err
}

// RegisteredBackends lists the registered backend names.
func RegisteredBackends() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registeredLocked()
}

func registeredLocked() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
