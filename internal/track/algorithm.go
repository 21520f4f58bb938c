package track

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/aquarig/fintrack/internal/video"
)

// Result is the tuple produced by an algorithm for one frame. Its
// meaning is algorithm-specific: tail angles for the tracers, a smoothed
// (x, y) centroid for position trackers.
type Result []float64

// Algorithm processes one frame under the current parameter snapshot.
//
// Implementations may carry per-run state (filters, history); the
// dispatcher resolves an algorithm once per configuration update and
// calls it from a single goroutine.
type Algorithm interface {
	Name() string
	Process(f video.Frame, p Params) (Result, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Algorithm{}
)

// Register adds an algorithm to the registry. Registering a duplicate
// name is an error.
func Register(a Algorithm) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[a.Name()]; exists {
		return errors.Errorf("tracking algorithm %q already registered", a.Name())
	}
	registry[a.Name()] = a
	return nil
}

// Resolve looks up an algorithm by name.
func Resolve(name string) (Algorithm, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown tracking algorithm %q (registered: %v)", name, namesLocked())
	}
	return a, nil
}

// Names returns the registered algorithm names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
