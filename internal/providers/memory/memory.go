// Package memory implements an in-process provider used for dry runs
// and tests. It assigns fake identifiers and can be primed to fail
// specific resources.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/szaher/stratus/internal/graph"
	"github.com/szaher/stratus/internal/providers"
	"github.com/szaher/stratus/internal/state"
)

func init() {
	providers.Register("memory", func(context.Context) (providers.Provider, error) {
		return New(), nil
	})
}

// OpRecord is one operation the provider observed.
type OpRecord struct {
	Op       string
	Resource string
}

// Provider is the in-memory provider.
type Provider struct {
	mu   sync.Mutex
	ops  []OpRecord
	fail map[string]error // resource id -> injected error
}

// New returns an empty in-memory provider.
func New() *Provider {
	return &Provider{fail: make(map[string]error)}
}

// FailWith injects an error for a resource id. Wrap the error in a
// retryable OpError to exercise the executor's backoff path.
func (p *Provider) FailWith(resource string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[resource] = err
}

// ClearFailure removes an injected error.
func (p *Provider) ClearFailure(resource string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.fail, resource)
}

// Ops returns the operations applied so far, in completion order.
func (p *Provider) Ops() []OpRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OpRecord(nil), p.ops...)
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "memory" }

func (p *Provider) record(op, resource string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.fail[resource]; ok {
		return err
	}
	p.ops = append(p.ops, OpRecord{Op: op, Resource: resource})
	return nil
}

// Create assigns a fake identifier for the node.
func (p *Provider) Create(_ context.Context, node *graph.Node, _ map[string]state.Resource) (map[string]string, error) {
	if err := p.record("create", node.ID); err != nil {
		return nil, err
	}
	return map[string]string{"id": fmt.Sprintf("mem-%s", node.ID)}, nil
}

// Update keeps the previously assigned identifiers.
func (p *Provider) Update(_ context.Context, node *graph.Node, prev state.Resource, _ map[string]state.Resource) (map[string]string, error) {
	if err := p.record("update", node.ID); err != nil {
		return nil, err
	}
	return prev.Identifiers, nil
}

// Delete forgets the resource.
func (p *Provider) Delete(_ context.Context, prev state.Resource) error {
	return p.record("delete", prev.Name)
}
