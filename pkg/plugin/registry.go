// Package plugin implements the plugin factory registry.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/hfinger/internal/core"
)

// registry maps names to factories of one plugin kind.
type registry[F any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]F
}

func newRegistry[F any](kind string) *registry[F] {
	return &registry[F]{kind: kind, factories: make(map[string]F)}
}

// register panics on an empty name, a nil factory or a duplicate, all of
// which are programming errors in an init function.
func (r *registry[F]) register(name string, factory F, isNil bool) {
	if name == "" {
		panic(fmt.Sprintf("plugin: empty %s name", r.kind))
	}
	if isNil {
		panic(fmt.Sprintf("plugin: nil %s factory for %q", r.kind, name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("plugin: %s %q registered twice", r.kind, name))
	}
	r.factories[name] = factory
}

func (r *registry[F]) get(name string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %s %q", core.ErrPluginNotFound, r.kind, name)
	}
	return f, nil
}

func (r *registry[F]) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every registration. Tests only.
func (r *registry[F]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]F)
}

var reporterReg = newRegistry[ReporterFactory]("reporter")

// RegisterReporter registers a reporter factory under name.
func RegisterReporter(name string, factory ReporterFactory) {
	reporterReg.register(name, factory, factory == nil)
}

// GetReporterFactory returns the factory registered under name.
func GetReporterFactory(name string) (ReporterFactory, error) {
	return reporterReg.get(name)
}

// ListReporters returns the registered reporter names, sorted.
func ListReporters() []string {
	return reporterReg.list()
}

// NewReporter creates and initialises the named reporter.
func NewReporter(name string, cfg map[string]any) (Reporter, error) {
	factory, err := GetReporterFactory(name)
	if err != nil {
		return nil, err
	}
	r := factory()
	if err := r.Init(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrPluginInitFailed, name, err)
	}
	return r, nil
}
