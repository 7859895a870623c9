// Package apidoc generates the structured API document for an API
// definition node from the route subset of the resource graph. Output
// is deterministic: paths sort lexicographically and methods follow a
// fixed canonical order, so an unchanged model yields byte-identical
// documents and the planner sees a no-op.
package apidoc

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/szaher/stratus/internal/graph"
)

// canonicalMethods fixes the method ordering inside one path.
var canonicalMethods = map[string]int{
	"GET": 0, "HEAD": 1, "POST": 2, "PUT": 3,
	"PATCH": 4, "DELETE": 5, "OPTIONS": 6,
}

// Document describes all routes of one API definition.
type Document struct {
	Name    string     `json:"name"`
	Stage   string     `json:"stage"`
	Version string     `json:"version"`
	Paths   []PathItem `json:"paths"`
}

// PathItem groups the operations declared on one path.
type PathItem struct {
	Path       string      `json:"path"`
	Operations []Operation `json:"operations"`
	CORS       *CORS       `json:"cors,omitempty"`
}

// Operation is one method binding on a path.
type Operation struct {
	Method       string   `json:"method"`
	Function     string   `json:"function"`
	Authorizer   string   `json:"authorizer,omitempty"`
	PathParams   []string `json:"path_params,omitempty"`
	QueryParams  []string `json:"query_params,omitempty"`
	HeaderParams []string `json:"header_params,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`
}

// CORS is the rendered cross-origin policy for a path.
type CORS struct {
	AllowOrigin      string   `json:"allow_origin"`
	AllowMethods     []string `json:"allow_methods"`
	AllowHeaders     []string `json:"allow_headers,omitempty"`
	AllowCredentials bool     `json:"allow_credentials,omitempty"`
	MaxAgeS          int      `json:"max_age_s,omitempty"`
}

// Generate builds the document for one API definition node from its
// route binding nodes. Route nodes not referencing apiNode are ignored.
func Generate(apiNode *graph.Node, routes []*graph.Node) (*Document, error) {
	doc := &Document{
		Name:    apiNode.Name,
		Stage:   attrString(apiNode, "stage"),
		Version: "2.0",
	}

	byPath := make(map[string]*PathItem)
	for _, r := range routes {
		if r.Kind != graph.KindRouteBinding {
			continue
		}
		if !dependsOn(r, apiNode.ID) {
			continue
		}
		path := attrString(r, "path")
		item, ok := byPath[path]
		if !ok {
			item = &PathItem{Path: path}
			byPath[path] = item
		}

		op := Operation{
			Method:       attrString(r, "method"),
			Function:     attrString(r, "function"),
			Authorizer:   attrString(r, "authorizer"),
			PathParams:   PathParams(path),
			QueryParams:  attrStrings(r, "query_params"),
			HeaderParams: attrStrings(r, "header_params"),
			ContentTypes: attrStrings(r, "content_types"),
		}
		if _, known := canonicalMethods[op.Method]; !known {
			return nil, fmt.Errorf("route %q: unknown method %q", r.ID, op.Method)
		}
		item.Operations = append(item.Operations, op)

		if cors, ok := r.Attributes["cors"].(map[string]any); ok {
			item.CORS = mergeCORS(item.CORS, cors)
		}
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		item := byPath[p]
		sort.Slice(item.Operations, func(i, j int) bool {
			return canonicalMethods[item.Operations[i].Method] < canonicalMethods[item.Operations[j].Method]
		})
		if item.CORS != nil {
			hasOptions := false
			for _, op := range item.Operations {
				item.CORS.AllowMethods = append(item.CORS.AllowMethods, op.Method)
				if op.Method == "OPTIONS" {
					hasOptions = true
				}
			}
			if !hasOptions {
				item.CORS.AllowMethods = append(item.CORS.AllowMethods, "OPTIONS")
			}
		}
		doc.Paths = append(doc.Paths, *item)
	}
	return doc, nil
}

// Canonical renders the document as compact JSON. Field order is fixed
// by the struct definitions and slice ordering is fixed by Generate, so
// equal documents are byte-identical.
func (d *Document) Canonical() ([]byte, error) {
	return json.Marshal(d)
}

// Indented renders the document for artifact output.
func (d *Document) Indented() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// PathParams extracts {param} segment names from a path template.
func PathParams(path string) []string {
	var params []string
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			params = append(params, strings.Trim(seg, "{}"))
		}
	}
	return params
}

func mergeCORS(existing *CORS, attrs map[string]any) *CORS {
	if existing != nil {
		return existing
	}
	c := &CORS{AllowOrigin: "*"}
	if v, ok := attrs["allow_origin"].(string); ok && v != "" {
		c.AllowOrigin = v
	}
	if v, ok := attrs["allow_headers"].([]any); ok {
		for _, h := range v {
			if s, ok := h.(string); ok {
				c.AllowHeaders = append(c.AllowHeaders, s)
			}
		}
		sort.Strings(c.AllowHeaders)
	}
	if v, ok := attrs["allow_credentials"].(bool); ok {
		c.AllowCredentials = v
	}
	if v, ok := attrs["max_age_s"].(int); ok {
		c.MaxAgeS = v
	}
	return c
}

func attrString(n *graph.Node, key string) string {
	s, _ := n.Attributes[key].(string)
	return s
}

func attrStrings(n *graph.Node, key string) []string {
	switch v := n.Attributes[key].(type) {
	case []string:
		out := append([]string(nil), v...)
		sort.Strings(out)
		return out
	case []any:
		var out []string
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		sort.Strings(out)
		return out
	}
	return nil
}

func dependsOn(n *graph.Node, id string) bool {
	for _, d := range n.DependsOn {
		if d == id {
			return true
		}
	}
	return false
}
