package notifications

import (
	"maps"
	"slices"
	"sync"
)

// ChannelConfig selects a driver and carries its options.
type ChannelConfig struct {
	Driver  string         `yaml:"driver" json:"driver"`
	Options ChannelOptions `yaml:"options,omitempty" json:"options,omitempty"`
}

// Factory builds a channel instance named name from its options.
type Factory func(name string, opts ChannelOptions) (Channel, error)

// Provider bundles channel drivers, for example a third party SMS package.
type Provider interface {
	// Provides lists the driver or channel names the provider makes available.
	Provides() []string
	// Register adds the provider's drivers or instances to r.
	Register(r *Registry)
}

// Registry resolves channel names to lazily built, memoized instances.
// Configuration errors surface from Get, never from registration.
type Registry struct {
	mu        sync.Mutex
	drivers   map[string]Factory
	configs   map[string]ChannelConfig
	instances map[string]Channel
	// fallback memoizes channels built from a bare driver name. They are
	// not registrations, so Has and Configured ignore them.
	fallback map[string]Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers:   make(map[string]Factory),
		configs:   make(map[string]ChannelConfig),
		instances: make(map[string]Channel),
		fallback:  make(map[string]Channel),
	}
}

// Register declares a driver. A later registration replaces an earlier one.
func (r *Registry) Register(driver string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[driver] = f
}

// Use registers providers and verifies that everything they claim to
// provide can now be resolved.
func (r *Registry) Use(providers ...Provider) error {
	for _, p := range providers {
		p.Register(r)
		for _, name := range p.Provides() {
			if !r.resolvable(name) {
				return &ConfigurationError{Channel: name, Err: ErrChannelNotConfigured}
			}
		}
	}
	return nil
}

// SetConfig registers or replaces the configuration of channel name and
// evicts any instance built from the previous configuration.
func (r *Registry) SetConfig(name string, cfg ChannelConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
	delete(r.instances, name)
	delete(r.fallback, name)
}

// Configure applies SetConfig for every entry of configs.
func (r *Registry) Configure(configs map[string]ChannelConfig) {
	for name, cfg := range configs {
		r.SetConfig(name, cfg)
	}
}

// Set binds a ready instance to name, bypassing drivers.
func (r *Registry) Set(name string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, name)
	delete(r.fallback, name)
	r.instances[name] = ch
}

// Get returns the channel named name, building it on first access. A name
// without configuration that matches a registered driver is built with
// empty options.
func (r *Registry) Get(name string) (Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.instances[name]; ok {
		return ch, nil
	}
	if ch, ok := r.fallback[name]; ok {
		return ch, nil
	}

	cfg, configured := r.configs[name]
	if !configured {
		if _, isDriver := r.drivers[name]; !isDriver {
			return nil, &ConfigurationError{Channel: name, Err: ErrChannelNotConfigured}
		}
		cfg = ChannelConfig{Driver: name}
	}
	if cfg.Driver == "" {
		cfg.Driver = name
	}

	factory, ok := r.drivers[cfg.Driver]
	if !ok {
		return nil, &ConfigurationError{Channel: name, Driver: cfg.Driver, Err: ErrUnknownDriver}
	}

	ch, err := factory(name, cfg.Options)
	if err != nil {
		return nil, &ConfigurationError{Channel: name, Driver: cfg.Driver, Err: err}
	}
	if ch == nil {
		return nil, &ConfigurationError{Channel: name, Driver: cfg.Driver, Err: ErrNilChannel}
	}

	if configured {
		r.instances[name] = ch
	} else {
		r.fallback[name] = ch
	}
	return ch, nil
}

// DriverOf reports the driver channel name resolves through. Bound
// instances and bare driver names report their own name.
func (r *Registry) DriverOf(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg, ok := r.configs[name]; ok && cfg.Driver != "" {
		return cfg.Driver
	}
	return name
}

// Drop evicts the instance and configuration of name.
func (r *Registry) Drop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, name)
	delete(r.fallback, name)
	delete(r.configs, name)
}

// Configured lists configured and bound channel names in sorted order.
func (r *Registry) Configured() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make(map[string]struct{}, len(r.configs)+len(r.instances))
	for name := range r.configs {
		names[name] = struct{}{}
	}
	for name := range r.instances {
		names[name] = struct{}{}
	}
	return slices.Sorted(maps.Keys(names))
}

// Has reports whether name is configured or bound.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, configured := r.configs[name]
	_, bound := r.instances[name]
	return configured || bound
}

// Reset drops every configuration and instance. Drivers stay registered.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.configs)
	clear(r.instances)
	clear(r.fallback)
}

func (r *Registry) resolvable(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, configured := r.configs[name]
	_, bound := r.instances[name]
	_, driver := r.drivers[name]
	return configured || bound || driver
}
