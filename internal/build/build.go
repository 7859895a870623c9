// Package build lowers an application model into the resource graph
// for one stage, attaching inferred permission sets to roles and the
// generated API document to the API definition node.
package build

import (
	"fmt"
	"strings"

	"github.com/szaher/stratus/internal/apidoc"
	"github.com/szaher/stratus/internal/graph"
	"github.com/szaher/stratus/internal/model"
	"github.com/szaher/stratus/internal/policy"
)

// Result carries the built graph plus the generated API documents and
// any policy analysis diagnostics.
type Result struct {
	Graph       *graph.Graph
	Documents   map[string]*apidoc.Document // keyed by API definition node id
	Diagnostics []policy.Diagnostic
}

// Builder constructs resource graphs. It is pure apart from reading
// function source for permission inference; it never talks to a remote
// API.
type Builder struct {
	analyzer *policy.Analyzer
}

// NewBuilder returns a Builder using the given policy analyzer.
func NewBuilder(analyzer *policy.Analyzer) *Builder {
	return &Builder{analyzer: analyzer}
}

// Build constructs the full resource graph for one stage. The graph is
// rebuilt from scratch on every call so it always reflects the current
// model; nothing is carried over from prior runs.
func (b *Builder) Build(app *model.Application, stage string) (*Result, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}

	g := graph.New(stage)
	res := &Result{Graph: g, Documents: make(map[string]*apidoc.Document)}
	var problems []string

	// Roles and functions. Each function gets its own role carrying the
	// permission set inferred from its source.
	for _, fn := range app.Functions {
		set, diags, err := b.analyzer.Analyze(fn.SourceRef)
		if err != nil {
			// Unresolvable source degrades to the base permission set,
			// matching the fail-soft contract of the analyzer.
			set, diags = policy.Empty(), append(diags, policy.Diagnostic{
				File:    fn.SourceRef,
				Message: err.Error(),
			})
		}
		res.Diagnostics = append(res.Diagnostics, diags...)

		roleID := graph.NodeID(graph.KindRole, fn.Name)
		addNode(g, &problems, &graph.Node{
			ID:   roleID,
			Kind: graph.KindRole,
			Name: fn.Name,
			Attributes: map[string]any{
				"function": fn.Name,
				"policy":   set.Document(),
			},
		})

		addNode(g, &problems, &graph.Node{
			ID:   graph.NodeID(graph.KindFunction, fn.Name),
			Kind: graph.KindFunction,
			Name: fn.Name,
			Attributes: map[string]any{
				"source_ref": fn.SourceRef,
				"handler":    fn.Handler,
				"runtime":    fn.Runtime,
				"memory_mb":  fn.MemoryMB,
				"timeout_s":  fn.TimeoutS,
				"env":        stringMapAttr(fn.Env),
				"stage":      stage,
			},
			DependsOn: []string{roleID},
		})
	}

	// One API definition per stage, present only when routes exist.
	var apiNode *graph.Node
	if len(app.Routes) > 0 {
		apiNode = &graph.Node{
			ID:   graph.NodeID(graph.KindAPIDefinition, app.Name),
			Kind: graph.KindAPIDefinition,
			Name: app.Name,
			Attributes: map[string]any{
				"stage": stage,
			},
		}
		addNode(g, &problems, apiNode)
	}

	// Authorizers. Token and request authorizers are backed by one of
	// the declared functions; they attach to the API definition.
	for _, auth := range app.Authorizers {
		n := &graph.Node{
			ID:   graph.NodeID(graph.KindAuthorizer, auth.Name),
			Kind: graph.KindAuthorizer,
			Name: auth.Name,
			Attributes: map[string]any{
				"kind":   auth.Kind,
				"config": auth.Config,
			},
		}
		if apiNode != nil {
			n.DependsOn = append(n.DependsOn, apiNode.ID)
		}
		if auth.Function != "" {
			fnID := graph.NodeID(graph.KindFunction, auth.Function)
			if g.Node(fnID) == nil {
				problems = append(problems, fmt.Sprintf(
					"authorizer %q references unknown function %q", auth.Name, auth.Function))
			}
			n.Attributes["function"] = auth.Function
			n.DependsOn = append(n.DependsOn, fnID)
		}
		addNode(g, &problems, n)
	}

	// Route bindings, one per (method, path).
	for _, r := range app.Routes {
		for _, method := range r.Methods {
			method = strings.ToUpper(method)
			name := method + " " + r.Path
			deps := []string{apiNode.ID, graph.NodeID(graph.KindFunction, r.Function)}
			attrs := map[string]any{
				"path":     r.Path,
				"method":   method,
				"function": r.Function,
			}
			if r.Authorizer != "" {
				authID := graph.NodeID(graph.KindAuthorizer, r.Authorizer)
				if g.Node(authID) == nil {
					problems = append(problems, fmt.Sprintf(
						"route %q references unknown authorizer %q", name, r.Authorizer))
				} else {
					deps = append(deps, authID)
				}
				attrs["authorizer"] = r.Authorizer
			}
			if r.CORS != nil {
				attrs["cors"] = corsAttr(r.CORS)
			}
			if len(r.ContentTypes) > 0 {
				attrs["content_types"] = stringsAttr(r.ContentTypes)
			}
			if len(r.QueryParams) > 0 {
				attrs["query_params"] = stringsAttr(r.QueryParams)
			}
			if len(r.HeaderParams) > 0 {
				attrs["header_params"] = stringsAttr(r.HeaderParams)
			}

			addNode(g, &problems, &graph.Node{
				ID:         graph.NodeID(graph.KindRouteBinding, name),
				Kind:       graph.KindRouteBinding,
				Name:       name,
				Attributes: attrs,
				DependsOn:  deps,
			})
		}
	}

	// Event source bindings.
	for _, es := range app.EventSources {
		addNode(g, &problems, &graph.Node{
			ID:   graph.NodeID(graph.KindEventSourceBinding, es.Name),
			Kind: graph.KindEventSourceBinding,
			Name: es.Name,
			Attributes: map[string]any{
				"type":     es.Type,
				"function": es.Function,
				"config":   es.Config,
			},
			DependsOn: []string{graph.NodeID(graph.KindFunction, es.Function)},
		})
	}

	if len(problems) > 0 {
		return nil, &graph.ValidationError{Problems: problems}
	}

	// Generate the API document and fold it into the definition node so
	// fingerprint changes track document changes.
	if apiNode != nil {
		doc, err := apidoc.Generate(apiNode, g.NodesOfKind(graph.KindRouteBinding))
		if err != nil {
			return nil, err
		}
		canonical, err := doc.Canonical()
		if err != nil {
			return nil, err
		}
		apiNode.Attributes["document"] = string(canonical)
		res.Documents[apiNode.ID] = doc
	}

	for _, n := range g.Nodes() {
		n.Attributes["stage"] = stage
		fp, err := graph.Fingerprint(n.Attributes)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		n.Fingerprint = fp
	}

	// A cycle here is a programming defect, surfaced before planning.
	if _, err := g.TopoSort(); err != nil {
		return nil, err
	}
	return res, nil
}

func addNode(g *graph.Graph, problems *[]string, n *graph.Node) {
	g.Add(n, problems)
}

// stringMapAttr converts env maps to the any-typed form the canonical
// serializer expects.
func stringMapAttr(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stringsAttr(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func corsAttr(c *model.CORSConfig) map[string]any {
	attrs := map[string]any{}
	if c.AllowOrigin != "" {
		attrs["allow_origin"] = c.AllowOrigin
	}
	if len(c.AllowHeaders) > 0 {
		attrs["allow_headers"] = stringsAttr(c.AllowHeaders)
	}
	if c.AllowCredentials {
		attrs["allow_credentials"] = true
	}
	if c.MaxAgeS > 0 {
		attrs["max_age_s"] = c.MaxAgeS
	}
	return attrs
}
