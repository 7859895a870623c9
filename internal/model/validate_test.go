package model

import (
	"errors"
	"strings"
	"testing"
)

func validApp() *Application {
	return &Application{
		Name: "orders",
		Functions: []Function{
			{Name: "index", SourceRef: "./src/index"},
			{Name: "auth", SourceRef: "./src/auth"},
		},
		Authorizers: []Authorizer{
			{Name: "jwt", Kind: AuthorizerToken, Function: "auth"},
		},
		Routes: []Route{
			{Path: "/orders", Methods: []string{"GET", "POST"}, Function: "index", Authorizer: "jwt"},
		},
		EventSources: []EventSource{
			{Name: "nightly", Type: EventSchedule, Function: "index",
				Config: map[string]any{"expression": "0 3 * * *"}},
		},
	}
}

func problemsOf(t *testing.T, app *Application) []string {
	t.Helper()
	err := app.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want failure")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want ValidationError", err)
	}
	return verr.Problems
}

func hasProblem(problems []string, substr string) bool {
	for _, p := range problems {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

func TestValidateAcceptsWellFormedApp(t *testing.T) {
	if err := validApp().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRequiresName(t *testing.T) {
	app := validApp()
	app.Name = ""
	if !hasProblem(problemsOf(t, app), "application name is required") {
		t.Error("missing name not reported")
	}
}

func TestValidateDuplicateFunction(t *testing.T) {
	app := validApp()
	app.Functions = append(app.Functions, Function{Name: "index", SourceRef: "./other"})
	if !hasProblem(problemsOf(t, app), `duplicate function "index"`) {
		t.Error("duplicate function not reported")
	}
}

func TestValidateFunctionNeedsSource(t *testing.T) {
	app := validApp()
	app.Functions[0].SourceRef = ""
	if !hasProblem(problemsOf(t, app), "has no source_ref") {
		t.Error("missing source_ref not reported")
	}
}

func TestValidateRouteProblems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Application)
		want   string
	}{
		{"relative path", func(a *Application) { a.Routes[0].Path = "orders" }, "must start with /"},
		{"no methods", func(a *Application) { a.Routes[0].Methods = nil }, "declares no methods"},
		{"unknown method", func(a *Application) { a.Routes[0].Methods = []string{"FETCH"} }, `unknown method "FETCH"`},
		{"unknown function", func(a *Application) { a.Routes[0].Function = "ghost" }, `unknown function "ghost"`},
		{"unknown authorizer", func(a *Application) { a.Routes[0].Authorizer = "ghost" }, `unknown authorizer "ghost"`},
		{"duplicate", func(a *Application) {
			a.Routes = append(a.Routes, Route{Path: "/orders", Methods: []string{"get"}, Function: "index"})
		}, `duplicate route "GET /orders"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := validApp()
			tt.mutate(app)
			if !hasProblem(problemsOf(t, app), tt.want) {
				t.Errorf("problem %q not reported", tt.want)
			}
		})
	}
}

func TestValidateEventSourceProblems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Application)
		want   string
	}{
		{"unknown type", func(a *Application) { a.EventSources[0].Type = "kafka" }, `unknown type "kafka"`},
		{"unknown function", func(a *Application) { a.EventSources[0].Function = "ghost" }, `unknown function "ghost"`},
		{"empty schedule", func(a *Application) { a.EventSources[0].Config = nil }, "has no expression"},
		{"bad schedule", func(a *Application) {
			a.EventSources[0].Config = map[string]any{"expression": "every darn minute"}
		}, `schedule "nightly"`},
		{"sqs without queue", func(a *Application) {
			a.EventSources[0] = EventSource{Name: "work", Type: EventSQS, Function: "index"}
		}, "has no queue"},
		{"s3 without bucket", func(a *Application) {
			a.EventSources[0] = EventSource{Name: "drop", Type: EventS3, Function: "index"}
		}, "has no bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := validApp()
			tt.mutate(app)
			if !hasProblem(problemsOf(t, app), tt.want) {
				t.Errorf("problem %q not reported", tt.want)
			}
		})
	}
}

func TestValidateAcceptsProviderNativeSchedules(t *testing.T) {
	app := validApp()
	app.EventSources[0].Config = map[string]any{"expression": "rate(5 minutes)"}
	if err := app.Validate(); err != nil {
		t.Errorf("Validate() error = %v for rate expression", err)
	}
	app.EventSources[0].Config = map[string]any{"expression": "cron(0 12 * * ? *)"}
	if err := app.Validate(); err != nil {
		t.Errorf("Validate() error = %v for cron expression", err)
	}
}

func TestValidateAuthorizerProblems(t *testing.T) {
	app := validApp()
	app.Authorizers[0].Function = "ghost"
	if !hasProblem(problemsOf(t, app), `authorizer "jwt" references unknown function "ghost"`) {
		t.Error("authorizer dangling function not reported")
	}

	app = validApp()
	app.Authorizers[0].Kind = "oauth"
	if !hasProblem(problemsOf(t, app), `unknown kind "oauth"`) {
		t.Error("unknown authorizer kind not reported")
	}
}
