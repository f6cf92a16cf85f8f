// Package workflow maintains the catalog of workflow descriptors and decides
// what to run next: by deterministic decision table over observed bundle
// state, or by classifying a natural-language request.
//
// Descriptors come from two sources: builtin YAML embedded in the binary and
// user YAML under .spec/workflows/. Every descriptor is validated at load;
// any violation aborts startup with a diagnostic naming the offending file.
package workflow

import (
	"sort"
	"strings"
	"sync"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

// Registry provides thread-safe access to validated workflow descriptors.
// Names are unique across builtins and user descriptors; a user descriptor
// shadowing a builtin is a startup error, not an override.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*domain.Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*domain.Descriptor)}
}

// Register validates and adds one descriptor.
// Returns ErrDescriptorInvalid or ErrDuplicateWorkflow with detail.
func (r *Registry) Register(d *domain.Descriptor) error {
	if err := ValidateDescriptor(d); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.Name]; exists {
		return sserrors.Wrapf(sserrors.ErrDuplicateWorkflow, "%s", d.Name)
	}
	r.descriptors[d.Name] = d.Clone()
	return nil
}

// Get retrieves a descriptor by name. The returned value is a clone; callers
// may mutate it freely. Returns ErrUnknownWorkflow when absent.
func (r *Registry) Get(name string) (*domain.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[strings.TrimSpace(name)]
	if !ok {
		return nil, sserrors.Wrapf(sserrors.ErrUnknownWorkflow, "%s", name)
	}
	return d.Clone(), nil
}

// Has reports whether a workflow name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptors[name]
	return ok
}

// List returns clones of every descriptor, sorted by name for stable output.
func (r *Registry) List() []*domain.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted registered workflow names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
