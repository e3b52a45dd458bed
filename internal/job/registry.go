package job

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the registered jobs for one daemon instance.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Register adds a job to the registry.
// It panics if a job with the same name is already registered.
func (r *Registry) Register(j Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := j.Name()
	if _, exists := r.jobs[name]; exists {
		panic(fmt.Sprintf("job already registered: %s", name))
	}
	r.jobs[name] = j
}

// Get retrieves a job by name from the registry.
// Returns nil if no job with that name is registered.
func (r *Registry) Get(name string) Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.jobs[name]
}

// Names returns the names of all registered jobs, sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Count returns the number of registered jobs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.jobs)
}
