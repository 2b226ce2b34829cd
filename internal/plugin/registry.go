package plugin

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/mod/semver"
)

// Registry manages plugin registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]Plugin // map[name]map[version]Plugin
}

// NewRegistry creates a new empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]map[string]Plugin),
	}
}

// Register adds a plugin to the registry.
// Returns an error if a plugin with the same name and version already exists.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register nil plugin")
	}

	metadata := p.Metadata()
	if err := metadata.Validate(); err != nil {
		return fmt.Errorf("invalid plugin metadata: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins[metadata.Name] == nil {
		r.plugins[metadata.Name] = make(map[string]Plugin)
	}
	if _, exists := r.plugins[metadata.Name][metadata.Version]; exists {
		return fmt.Errorf("plugin %s@%s already registered", metadata.Name, metadata.Version)
	}

	r.plugins[metadata.Name][metadata.Version] = p
	return nil
}

// MustRegister is Register for built-in plugins, panicking on error.
func (r *Registry) MustRegister(plugins ...Plugin) *Registry {
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Get retrieves a specific plugin by name and version.
func (r *Registry) Get(name, version string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("plugin %s not found", name)
	}
	p, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("plugin %s@%s not found", name, version)
	}
	return p, nil
}

// GetLatest retrieves the highest registered version of a plugin by name.
func (r *Registry) GetLatest(name string) (Plugin, error) {
	versions := r.ListVersions(name)
	if len(versions) == 0 {
		return nil, fmt.Errorf("plugin %s not found", name)
	}
	return r.Get(name, versions[len(versions)-1])
}

// Resolve looks a plugin up by name and optional version; an empty version means latest.
func (r *Registry) Resolve(name, version string) (Plugin, error) {
	if version == "" {
		return r.GetLatest(name)
	}
	return r.Get(name, version)
}

// List returns all registered plugins sorted by name then version.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	var result []Plugin
	for _, name := range names {
		for _, version := range r.ListVersions(name) {
			if p, err := r.Get(name, version); err == nil {
				result = append(result, p)
			}
		}
	}
	return result
}

// ListByType returns all plugins of a specific type.
func (r *Registry) ListByType(pluginType PluginType) []Plugin {
	var result []Plugin
	for _, p := range r.List() {
		if p.Metadata().Type == pluginType {
			result = append(result, p)
		}
	}
	return result
}

// ListVersions returns the registered versions of a plugin in ascending semver order.
func (r *Registry) ListVersions(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.plugins[name]
	if !ok {
		return nil
	}
	result := make([]string, 0, len(versions))
	for version := range versions {
		result = append(result, version)
	}
	semver.Sort(result)
	return result
}

// Has checks if a plugin with the given name exists (any version).
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[name]
	return ok
}

// Unregister removes a plugin version from the registry.
func (r *Registry) Unregister(name, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.plugins[name]
	if !ok {
		return fmt.Errorf("plugin %s not found", name)
	}
	if _, ok := versions[version]; !ok {
		return fmt.Errorf("plugin %s@%s not found", name, version)
	}
	delete(versions, version)
	if len(versions) == 0 {
		delete(r.plugins, name)
	}
	return nil
}

// Count returns the total number of registered plugins (all versions).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, versions := range r.plugins {
		count += len(versions)
	}
	return count
}
