// Package graph builds the typed resource graph for one stage: a DAG of
// resource nodes with explicit dependency edges, reconstructed from the
// application model on every planning pass.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the type of a resource node.
type Kind string

const (
	KindRole               Kind = "iam_role"
	KindFunction           Kind = "lambda_function"
	KindAuthorizer         Kind = "authorizer"
	KindAPIDefinition      Kind = "rest_api"
	KindRouteBinding       Kind = "route"
	KindEventSourceBinding Kind = "event_source"
)

// kindRank orders kinds for stable topological sorts: dependencies sort
// before their usual dependents, ties break by id.
var kindRank = map[Kind]int{
	KindRole:               0,
	KindFunction:           1,
	KindAPIDefinition:      2,
	KindAuthorizer:         3,
	KindRouteBinding:       4,
	KindEventSourceBinding: 5,
}

// Node is one typed resource in the graph.
type Node struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Name        string         `json:"name"`
	Attributes  map[string]any `json:"attributes"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Fingerprint string         `json:"fingerprint"`
}

// Graph is the dependency DAG of resource nodes for one stage, unique
// by node id. It is never mutated after Build returns.
type Graph struct {
	Stage string
	nodes map[string]*Node
	order []string // insertion order, for stable iteration
}

// ValidationError reports an inconsistency found while assembling the
// graph: duplicate ids or references to undeclared nodes.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid resource graph: %s", strings.Join(e.Problems, "; "))
}

// CyclicError reports a dependency cycle. A cycle is a defect in the
// application model and aborts planning with no partial result.
type CyclicError struct {
	Remaining []string
}

func (e *CyclicError) Error() string {
	return fmt.Sprintf("dependency cycle involving: %s", strings.Join(e.Remaining, ", "))
}

// New returns an empty graph for a stage.
func New(stage string) *Graph {
	return &Graph{Stage: stage, nodes: make(map[string]*Node)}
}

// Add inserts a node, recording a duplicate-id problem if the id is taken.
func (g *Graph) Add(n *Node, problems *[]string) {
	if _, exists := g.nodes[n.ID]; exists {
		*problems = append(*problems, fmt.Sprintf("duplicate resource id %q", n.ID))
		return
	}
	sort.Strings(n.DependsOn)
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodesOfKind returns all nodes of one kind, sorted by id.
func (g *Graph) NodesOfKind(kind Kind) []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TopoSort returns node ids in dependency order (dependencies first).
// The order is deterministic: among ready nodes, lower kind rank wins,
// then lexicographic id. Returns CyclicError if the graph has a cycle.
func (g *Graph) TopoSort() ([]string, error) {
	return topoSort(g.edges())
}

// edges returns id -> dependency ids for every node.
func (g *Graph) edges() map[string][]string {
	e := make(map[string][]string, len(g.nodes))
	for id, n := range g.nodes {
		e[id] = n.DependsOn
	}
	return e
}

// SortIDs topologically sorts an arbitrary id -> dependency-ids map
// with the same deterministic ordering as TopoSort. Edges pointing
// outside the map are treated as already satisfied. The planner uses
// this to order deletions from dependency edges recorded in a prior
// deployment.
func SortIDs(deps map[string][]string) ([]string, error) {
	return topoSort(deps)
}

// topoSort is Kahn's algorithm with a deterministic ready queue.
func topoSort(deps map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(deps))
	dependents := make(map[string][]string, len(deps))
	for id, ds := range deps {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, d := range ds {
			if _, ok := deps[d]; !ok {
				continue // edge to a node outside this set is already satisfied
			}
			indegree[id]++
			dependents[d] = append(dependents[d], id)
		}
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}

	var order []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return rankLess(ready[i], ready[j]) })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(indegree) {
		var remaining []string
		done := make(map[string]bool, len(order))
		for _, id := range order {
			done[id] = true
		}
		for id := range indegree {
			if !done[id] {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &CyclicError{Remaining: remaining}
	}
	return order, nil
}

// rankLess orders ids by the kind prefix rank, then lexicographically.
// Node ids are "<kind>/<name>".
func rankLess(a, b string) bool {
	ra, rb := idRank(a), idRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func idRank(id string) int {
	i := strings.IndexByte(id, '/')
	if i < 0 {
		return len(kindRank)
	}
	rank, ok := kindRank[Kind(id[:i])]
	if !ok {
		return len(kindRank)
	}
	return rank
}

// NodeID builds the canonical id for a node: "<kind>/<name>".
func NodeID(kind Kind, name string) string {
	return string(kind) + "/" + name
}
