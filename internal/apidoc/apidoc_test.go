package apidoc

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/szaher/stratus/internal/graph"
)

func apiFixture() (*graph.Node, []*graph.Node) {
	api := &graph.Node{
		ID:         "rest_api/app",
		Kind:       graph.KindAPIDefinition,
		Name:       "app",
		Attributes: map[string]any{"stage": "dev"},
	}
	route := func(method, path, fn string, attrs map[string]any) *graph.Node {
		if attrs == nil {
			attrs = map[string]any{}
		}
		attrs["method"] = method
		attrs["path"] = path
		attrs["function"] = fn
		return &graph.Node{
			ID:         "route/" + method + " " + path,
			Kind:       graph.KindRouteBinding,
			Name:       method + " " + path,
			Attributes: attrs,
			DependsOn:  []string{api.ID, "lambda_function/" + fn},
		}
	}
	routes := []*graph.Node{
		route("POST", "/users", "users", nil),
		route("GET", "/users/{id}", "users", nil),
		route("GET", "/", "index", map[string]any{
			"cors": map[string]any{"allow_origin": "https://example.com"},
		}),
	}
	return api, routes
}

func TestGenerateSortsPathsAndMethods(t *testing.T) {
	api, routes := apiFixture()
	doc, err := Generate(api, routes)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var paths []string
	for _, p := range doc.Paths {
		paths = append(paths, p.Path)
	}
	want := []string{"/", "/users", "/users/{id}"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestGenerateByteIdentical(t *testing.T) {
	api, routes := apiFixture()
	first, err := Generate(api, routes)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	firstBytes, err := first.Canonical()
	if err != nil {
		t.Fatalf("Canonical() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := Generate(api, routes)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		againBytes, err := again.Canonical()
		if err != nil {
			t.Fatalf("Canonical() error = %v", err)
		}
		if !bytes.Equal(firstBytes, againBytes) {
			t.Fatalf("run %d: document bytes differ", i)
		}
	}
}

func TestGeneratePathParams(t *testing.T) {
	api, routes := apiFixture()
	doc, err := Generate(api, routes)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for _, p := range doc.Paths {
		if p.Path != "/users/{id}" {
			continue
		}
		if got := p.Operations[0].PathParams; !reflect.DeepEqual(got, []string{"id"}) {
			t.Errorf("PathParams = %v, want [id]", got)
		}
		return
	}
	t.Fatal("path /users/{id} not found")
}

func TestGenerateCORS(t *testing.T) {
	api, routes := apiFixture()
	doc, err := Generate(api, routes)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	root := doc.Paths[0]
	if root.Path != "/" {
		t.Fatalf("first path = %q, want /", root.Path)
	}
	if root.CORS == nil {
		t.Fatal("CORS = nil, want policy")
	}
	if root.CORS.AllowOrigin != "https://example.com" {
		t.Errorf("AllowOrigin = %q, want https://example.com", root.CORS.AllowOrigin)
	}
	if !reflect.DeepEqual(root.CORS.AllowMethods, []string{"GET", "OPTIONS"}) {
		t.Errorf("AllowMethods = %v, want [GET OPTIONS]", root.CORS.AllowMethods)
	}
}

func TestGenerateCORSExplicitOptionsRoute(t *testing.T) {
	api, routes := apiFixture()
	explicit := &graph.Node{
		ID:   "route/OPTIONS /",
		Kind: graph.KindRouteBinding,
		Name: "OPTIONS /",
		Attributes: map[string]any{
			"method": "OPTIONS", "path": "/", "function": "index",
			"cors": map[string]any{"allow_origin": "https://example.com"},
		},
		DependsOn: []string{api.ID, "lambda_function/index"},
	}
	doc, err := Generate(api, append(routes, explicit))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	root := doc.Paths[0]
	if root.Path != "/" {
		t.Fatalf("first path = %q, want /", root.Path)
	}
	if got, want := root.CORS.AllowMethods, []string{"GET", "OPTIONS"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AllowMethods = %v, want %v", got, want)
	}
}

func TestGenerateIgnoresForeignRoutes(t *testing.T) {
	api, routes := apiFixture()
	foreign := &graph.Node{
		ID:         "route/GET /other",
		Kind:       graph.KindRouteBinding,
		Name:       "GET /other",
		Attributes: map[string]any{"method": "GET", "path": "/other", "function": "x"},
		DependsOn:  []string{"rest_api/other-api"},
	}
	doc, err := Generate(api, append(routes, foreign))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, p := range doc.Paths {
		if p.Path == "/other" {
			t.Error("document contains a route bound to another API definition")
		}
	}
}
