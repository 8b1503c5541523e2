// ABOUTME: Service registry for registering and retrieving services.
// ABOUTME: Services register themselves in init() functions.

package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[string]Service)
	mu       sync.RWMutex
)

// Register adds a service to the registry
func Register(s Service) {
	mu.Lock()
	defer mu.Unlock()

	name := s.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("service %q already registered", name))
	}
	registry[name] = s
}

// Get retrieves a service by name
func Get(name string) (Service, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

// All returns all registered services ordered by name
func All() []Service {
	mu.RLock()
	defer mu.RUnlock()

	services := make([]Service, 0, len(registry))
	for _, s := range registry {
		services = append(services, s)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name() < services[j].Name() })
	return services
}

// Names returns all registered service names, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitAll hands deps to every service that wants them.
func InitAll(deps Deps) error {
	for _, s := range All() {
		if in, ok := s.(Initializer); ok {
			if err := in.Init(deps); err != nil {
				return fmt.Errorf("failed to initialize service %s: %w", s.Name(), err)
			}
		}
	}
	return nil
}
