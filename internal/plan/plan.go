// Package plan implements the desired-state diff engine: it compares
// the freshly built resource graph against the previously deployed
// record and produces a dependency-ordered list of instructions.
package plan

import (
	"github.com/szaher/stratus/internal/graph"
	"github.com/szaher/stratus/internal/state"
)

// Op is the operation an instruction performs.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Instruction is one planned change. For creates and updates Node is
// the desired node; for deletes only the recorded resource is carried.
// DependsOn lists the ids of instructions in the same plan that must
// complete first.
type Instruction struct {
	Op        Op
	ID        string
	Node      *graph.Node     // creates and updates
	Recorded  *state.Resource // updates and deletes
	DependsOn []string
	Reason    string
}

// Plan is the ordered instruction list for one stage. The order is a
// total order respecting dependencies: creates and updates in
// topological order, then deletes in reverse topological order.
type Plan struct {
	Stage        string
	Instructions []Instruction
}

// Empty reports whether the plan contains no work, the idempotence
// signal for an unchanged model.
func (p *Plan) Empty() bool {
	return len(p.Instructions) == 0
}

// Counts returns the number of creates, updates and deletes.
func (p *Plan) Counts() (creates, updates, deletes int) {
	for _, in := range p.Instructions {
		switch in.Op {
		case OpCreate:
			creates++
		case OpUpdate:
			updates++
		case OpDelete:
			deletes++
		}
	}
	return
}

// Compute diffs the desired graph against the previous record. It is a
// pure function of its inputs: no I/O, no mutation of either argument.
// A dependency cycle aborts with graph.CyclicError and no partial plan.
func Compute(g *graph.Graph, previous *state.Record) (*Plan, error) {
	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	p := &Plan{Stage: g.Stage}

	// Creates and updates, in topological order of the desired graph.
	for _, id := range order {
		n := g.Node(id)
		prev := previous.Get(id)
		switch {
		case prev == nil:
			p.Instructions = append(p.Instructions, Instruction{
				Op:        OpCreate,
				ID:        id,
				Node:      n,
				DependsOn: append([]string(nil), n.DependsOn...),
				Reason:    "resource does not exist",
			})
		case prev.Fingerprint != n.Fingerprint:
			p.Instructions = append(p.Instructions, Instruction{
				Op:        OpUpdate,
				ID:        id,
				Node:      n,
				Recorded:  prev,
				DependsOn: append([]string(nil), n.DependsOn...),
				Reason:    "attributes changed",
			})
		}
		// Unchanged fingerprint: no instruction, the no-op guarantee.
	}

	// Deletes: recorded resources absent from the desired graph, in
	// reverse topological order of the edges recorded at deploy time so
	// dependents go before their dependencies.
	removed := make(map[string][]string)
	for _, res := range previous.Resources {
		if g.Node(res.Name) == nil {
			removed[res.Name] = res.DependsOn
		}
	}
	if len(removed) > 0 {
		delOrder, err := graph.SortIDs(removed)
		if err != nil {
			return nil, err
		}
		// Reversed edges: deleting X waits for every removed Y that
		// depends on X.
		dependents := make(map[string][]string)
		for id, deps := range removed {
			for _, d := range deps {
				if _, ok := removed[d]; ok {
					dependents[d] = append(dependents[d], id)
				}
			}
		}
		for i := len(delOrder) - 1; i >= 0; i-- {
			id := delOrder[i]
			p.Instructions = append(p.Instructions, Instruction{
				Op:        OpDelete,
				ID:        id,
				Recorded:  previous.Get(id),
				DependsOn: dependents[id],
				Reason:    "resource no longer defined",
			})
		}
	}

	return p, nil
}
