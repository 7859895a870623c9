package graph

import (
	"errors"
	"reflect"
	"testing"
)

func addTestNode(t *testing.T, g *Graph, kind Kind, name string, deps ...string) *Node {
	t.Helper()
	var problems []string
	n := &Node{
		ID:         NodeID(kind, name),
		Kind:       kind,
		Name:       name,
		Attributes: map[string]any{"name": name},
		DependsOn:  deps,
	}
	g.Add(n, &problems)
	if len(problems) != 0 {
		t.Fatalf("Add(%s) problems = %v", n.ID, problems)
	}
	return n
}

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	g := New("dev")
	addTestNode(t, g, KindRole, "index")
	addTestNode(t, g, KindFunction, "index", NodeID(KindRole, "index"))
	addTestNode(t, g, KindAPIDefinition, "app")
	addTestNode(t, g, KindRouteBinding, "GET /",
		NodeID(KindAPIDefinition, "app"), NodeID(KindFunction, "index"))

	order, err := g.TopoSort()
	if err != nil {
		t.Fatalf("TopoSort() error = %v", err)
	}
	want := []string{
		"iam_role/index",
		"lambda_function/index",
		"rest_api/app",
		"route/GET /",
	}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("TopoSort() = %v, want %v", order, want)
	}
}

func TestTopoSortDeterministic(t *testing.T) {
	build := func() *Graph {
		g := New("dev")
		for _, name := range []string{"c", "a", "b"} {
			addTestNode(t, g, KindRole, name)
			addTestNode(t, g, KindFunction, name, NodeID(KindRole, name))
		}
		return g
	}

	first, err := build().TopoSort()
	if err != nil {
		t.Fatalf("TopoSort() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := build().TopoSort()
		if err != nil {
			t.Fatalf("TopoSort() error = %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: order = %v, want %v", i, again, first)
		}
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	g := New("dev")
	var problems []string
	g.Add(&Node{ID: "a", Kind: KindFunction, DependsOn: []string{"b"}}, &problems)
	g.Add(&Node{ID: "b", Kind: KindFunction, DependsOn: []string{"a"}}, &problems)

	_, err := g.TopoSort()
	var cyc *CyclicError
	if !errors.As(err, &cyc) {
		t.Fatalf("TopoSort() error = %v, want CyclicError", err)
	}
	if len(cyc.Remaining) != 2 {
		t.Errorf("Remaining = %v, want both nodes", cyc.Remaining)
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	g := New("dev")
	var problems []string
	g.Add(&Node{ID: "iam_role/x", Kind: KindRole}, &problems)
	g.Add(&Node{ID: "iam_role/x", Kind: KindRole}, &problems)
	if len(problems) != 1 {
		t.Errorf("problems = %v, want one duplicate-id problem", problems)
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

func TestSortIDsIgnoresExternalEdges(t *testing.T) {
	// Edges to ids outside the map are treated as satisfied.
	order, err := SortIDs(map[string][]string{
		"route/GET /": {"rest_api/app", "lambda_function/index"},
		"rest_api/app": nil,
	})
	if err != nil {
		t.Fatalf("SortIDs() error = %v", err)
	}
	want := []string{"rest_api/app", "route/GET /"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("SortIDs() = %v, want %v", order, want)
	}
}

func TestFingerprintStability(t *testing.T) {
	attrs := map[string]any{
		"b":   1,
		"a":   "x",
		"sub": map[string]any{"z": true, "y": []any{"q"}},
	}
	first, err := Fingerprint(attrs)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if first == "" {
		t.Fatal("Fingerprint() = empty")
	}
	for i := 0; i < 5; i++ {
		got, err := Fingerprint(attrs)
		if err != nil {
			t.Fatalf("Fingerprint() error = %v", err)
		}
		if got != first {
			t.Fatalf("Fingerprint() = %q, want %q", got, first)
		}
	}

	attrs["a"] = "changed"
	if got, _ := Fingerprint(attrs); got == first {
		t.Error("Fingerprint() unchanged after attribute edit")
	}
}

func TestFingerprintUnserializableAttributes(t *testing.T) {
	attrs := map[string]any{"bad": func() {}}
	if got, err := Fingerprint(attrs); err == nil {
		t.Errorf("Fingerprint() = %q, want error", got)
	}
}
