package integration_tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/szaher/stratus/internal/apply"
	"github.com/szaher/stratus/internal/build"
	"github.com/szaher/stratus/internal/model"
	"github.com/szaher/stratus/internal/plan"
	"github.com/szaher/stratus/internal/policy"
	"github.com/szaher/stratus/internal/providers/memory"
	"github.com/szaher/stratus/internal/state"
)

const handlerSource = `package handler

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Handler struct {
	client *s3.Client
}

func (h *Handler) Handle(ctx context.Context, bucket, key string) error {
	_, err := h.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	return err
}
`

func appDefinition(t *testing.T) *model.Application {
	t.Helper()
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "handler.go"), []byte(handlerSource), 0644); err != nil {
		t.Fatal(err)
	}

	yaml := fmt.Sprintf(`name: orders
functions:
  - name: index
    source_ref: %s
    handler: bootstrap
    runtime: provided.al2023
    memory_mb: 256
    env:
      TABLE: "{{ app }}-{{ stage }}-orders"
routes:
  - path: /orders
    methods: [GET, POST]
    function: index
  - path: /orders/{id}
    methods: [GET]
    function: index
event_sources:
  - name: nightly
    type: schedule
    function: index
    config:
      expression: "0 3 * * *"
`, src)

	app, err := model.Parse([]byte(yaml), "dev")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return app
}

// deployOnce builds, plans and applies the application model for one
// stage, returning the apply result.
func deployOnce(t *testing.T, app *model.Application, stage string, provider *memory.Provider, store state.Store) *apply.Result {
	t.Helper()
	built, err := build.NewBuilder(policy.NewAnalyzer()).Build(app, stage)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	prev, err := store.Load(stage)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	p, err := plan.Compute(built.Graph, prev)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	res, err := apply.New(provider, store).Apply(context.Background(), p, prev)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	return res
}

func TestDeployLifecycle(t *testing.T) {
	app := appDefinition(t)
	provider := memory.New()
	store := state.NewLocalStore(t.TempDir())

	// First deployment creates everything: role, function, api, three
	// route bindings and the schedule binding.
	res := deployOnce(t, app, "dev", provider, store)
	if res.Created != 7 || res.Failed != 0 {
		t.Fatalf("first deploy = created %d failed %d, want 7 0", res.Created, res.Failed)
	}

	// Redeploying the unchanged model is a no-op.
	res = deployOnce(t, app, "dev", provider, store)
	if res.Created+res.Updated+res.Deleted != 0 {
		t.Fatalf("redeploy did work: %+v", res)
	}

	// Raising the memory only updates the function.
	app.Functions[0].MemoryMB = 512
	res = deployOnce(t, app, "dev", provider, store)
	if res.Updated != 1 || res.Created != 0 || res.Deleted != 0 {
		t.Fatalf("memory bump = %+v, want exactly one update", res)
	}

	// Dropping the schedule deletes only its binding.
	app.EventSources = nil
	res = deployOnce(t, app, "dev", provider, store)
	if res.Deleted != 1 || res.Created != 0 || res.Updated != 0 {
		t.Fatalf("drop schedule = %+v, want exactly one delete", res)
	}

	rec, err := store.Load("dev")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.Get("event_source/nightly") != nil {
		t.Error("deleted schedule still recorded")
	}
	if len(rec.Resources) != 6 {
		t.Errorf("record has %d resources, want 6", len(rec.Resources))
	}
}

func TestDeployInfersPermissionsFromSource(t *testing.T) {
	app := appDefinition(t)
	store := state.NewLocalStore(t.TempDir())
	deployOnce(t, app, "dev", memory.New(), store)

	built, err := build.NewBuilder(policy.NewAnalyzer()).Build(app, "dev")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	role := built.Graph.Node("iam_role/index")
	doc, ok := role.Attributes["policy"].(map[string]any)
	if !ok {
		t.Fatalf("policy attribute = %T", role.Attributes["policy"])
	}
	stmts, ok := doc["Statement"].([]any)
	if !ok {
		t.Fatalf("Statement = %T", doc["Statement"])
	}
	var actions []string
	for _, raw := range stmts {
		stmt, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if got, ok := stmt["Action"].([]string); ok {
			actions = append(actions, got...)
		}
	}
	var sawS3 bool
	for _, a := range actions {
		if a == "s3:GetObject" {
			sawS3 = true
		}
	}
	if !sawS3 {
		t.Errorf("inferred actions %v, want s3:GetObject from handler source", actions)
	}
}

func TestDeployStagesDoNotInterfere(t *testing.T) {
	app := appDefinition(t)
	provider := memory.New()
	store := state.NewLocalStore(t.TempDir())

	deployOnce(t, app, "dev", provider, store)
	deployOnce(t, app, "prod", provider, store)

	// Tearing down dev leaves prod untouched.
	app.Functions = nil
	app.Routes = nil
	app.EventSources = nil
	res := deployOnce(t, app, "dev", provider, store)
	if res.Deleted != 7 {
		t.Fatalf("dev teardown deleted %d, want 7", res.Deleted)
	}

	prod, err := store.Load("prod")
	if err != nil {
		t.Fatalf("Load(prod) error = %v", err)
	}
	if len(prod.Resources) != 7 {
		t.Errorf("prod has %d resources after dev teardown, want 7", len(prod.Resources))
	}
}
