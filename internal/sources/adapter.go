package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pvnkmnk/rentFalcon/pkg/models"
)

// Adapter is the interface every listing source implements.
type Adapter interface {
	// Identifier returns the stable unique name of the source.
	Identifier() string

	// Search returns the listings matching the request, already filtered
	// to the requested price range. Failures are reported as *Error with
	// the appropriate kind.
	Search(ctx context.Context, req models.SearchRequest) ([]models.Listing, error)
}

// Registry holds the adapters available to a coordinator. It is built
// explicitly at composition time and injected; there is no package-level
// registry.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Registering two adapters with the same
// identifier is a programming error.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Identifier()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.adapters[name] = a
	return nil
}

// Get returns the adapter with the given identifier.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the identifiers of all registered adapters, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
