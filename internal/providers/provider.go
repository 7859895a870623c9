// Package providers defines the control-plane provider interface and
// registry. A provider turns individual plan instructions into remote
// operations; everything above it is provider-agnostic.
package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/szaher/stratus/internal/graph"
	"github.com/szaher/stratus/internal/state"
)

// Provider executes single-resource operations against a control
// plane. deps carries the recorded state of the node's dependencies so
// a provider can resolve identifiers assigned earlier in the plan
// (e.g. a role ARN for a function).
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Create provisions a resource and returns its assigned identifiers.
	Create(ctx context.Context, node *graph.Node, deps map[string]state.Resource) (map[string]string, error)

	// Update converges an existing resource and returns its identifiers.
	Update(ctx context.Context, node *graph.Node, prev state.Resource, deps map[string]state.Resource) (map[string]string, error)

	// Delete removes a previously created resource.
	Delete(ctx context.Context, prev state.Resource) error
}

// OpError reports a failed remote operation. Retryable marks transient
// failures (throttling, eventual-consistency propagation) the executor
// may retry with backoff.
type OpError struct {
	Resource  string
	Retryable bool
	Err       error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("deployment API: %s: %v", e.Resource, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Retryable reports whether err is a transient provider failure.
func Retryable(err error) bool {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Retryable
	}
	return false
}

// Factory creates a configured provider instance.
type Factory func(ctx context.Context) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory to the global registry.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a provider factory by name.
func Get(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return factory, nil
}

// List returns the names of all registered providers.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
