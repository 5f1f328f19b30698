package remote

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds the services available to a running process. It is seeded
// with the built-in descriptors; base URLs can be overridden for self-hosted
// instances before the registry is handed to consumers.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*Service
}

// NewRegistry returns a registry containing the built-in services.
func NewRegistry() *Registry {
	r := &Registry{services: make(map[string]*Service)}
	r.register(GitHub)
	r.register(GitLab)
	return r
}

// Register adds a service to the registry. Duplicate IDs panic: the service
// set is fixed at startup and a duplicate is a wiring bug.
func (r *Registry) Register(s *Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[s.ID]; exists {
		panic(fmt.Sprintf("remote: duplicate registration for %q", s.ID))
	}
	r.services[s.ID] = s
}

func (r *Registry) register(s *Service) {
	// Built-in descriptors are package-level values; copy so that per-process
	// overrides never leak across registries (tests construct several).
	clone := *s
	r.services[s.ID] = &clone
}

// Lookup returns the service with the given ID.
func (r *Registry) Lookup(id string) (*Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("remote: unknown service %q", id)
	}
	return s, nil
}

// SetBaseURL overrides the base URL for a registered service, for self-hosted
// deployments. Trailing slashes are trimmed so endpoint joining stays uniform.
func (r *Registry) SetBaseURL(id, baseURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[strings.ToLower(id)]
	if !ok {
		return fmt.Errorf("remote: unknown service %q", id)
	}
	s.BaseURL = strings.TrimSuffix(baseURL, "/")
	return nil
}

// IDs returns the IDs of all registered services.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	return ids
}
