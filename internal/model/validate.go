package model

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError reports a malformed or self-contradictory application
// model. It is fatal and surfaced before any planning takes place.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid application model: %s", strings.Join(e.Problems, "; "))
}

// knownMethods is the set of HTTP methods a route may declare.
var knownMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"PATCH": true, "DELETE": true, "OPTIONS": true,
}

// Validate checks the application model for internal consistency:
// unique names, resolvable function and authorizer references, known
// event source types and parseable schedule expressions.
func (a *Application) Validate() error {
	var problems []string

	if a.Name == "" {
		problems = append(problems, "application name is required")
	}

	seenFn := map[string]bool{}
	for _, fn := range a.Functions {
		if fn.Name == "" {
			problems = append(problems, "function with empty name")
			continue
		}
		if seenFn[fn.Name] {
			problems = append(problems, fmt.Sprintf("duplicate function %q", fn.Name))
		}
		seenFn[fn.Name] = true
		if fn.SourceRef == "" {
			problems = append(problems, fmt.Sprintf("function %q has no source_ref", fn.Name))
		}
	}

	seenAuth := map[string]bool{}
	for _, auth := range a.Authorizers {
		if seenAuth[auth.Name] {
			problems = append(problems, fmt.Sprintf("duplicate authorizer %q", auth.Name))
		}
		seenAuth[auth.Name] = true
		switch auth.Kind {
		case AuthorizerToken, AuthorizerRequest:
			if !seenFn[auth.Function] {
				problems = append(problems, fmt.Sprintf(
					"authorizer %q references unknown function %q", auth.Name, auth.Function))
			}
		case AuthorizerIAM:
		default:
			problems = append(problems, fmt.Sprintf("authorizer %q has unknown kind %q", auth.Name, auth.Kind))
		}
	}

	seenRoute := map[string]bool{}
	for _, r := range a.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			problems = append(problems, fmt.Sprintf("route path %q must start with /", r.Path))
		}
		if len(r.Methods) == 0 {
			problems = append(problems, fmt.Sprintf("route %q declares no methods", r.Path))
		}
		for _, m := range r.Methods {
			if !knownMethods[strings.ToUpper(m)] {
				problems = append(problems, fmt.Sprintf("route %q has unknown method %q", r.Path, m))
			}
			key := strings.ToUpper(m) + " " + r.Path
			if seenRoute[key] {
				problems = append(problems, fmt.Sprintf("duplicate route %q", key))
			}
			seenRoute[key] = true
		}
		if !seenFn[r.Function] {
			problems = append(problems, fmt.Sprintf("route %q references unknown function %q", r.Path, r.Function))
		}
		if r.Authorizer != "" && !seenAuth[r.Authorizer] {
			problems = append(problems, fmt.Sprintf("route %q references unknown authorizer %q", r.Path, r.Authorizer))
		}
	}

	seenEvent := map[string]bool{}
	for _, es := range a.EventSources {
		if seenEvent[es.Name] {
			problems = append(problems, fmt.Sprintf("duplicate event source %q", es.Name))
		}
		seenEvent[es.Name] = true
		if !seenFn[es.Function] {
			problems = append(problems, fmt.Sprintf("event source %q references unknown function %q", es.Name, es.Function))
		}
		switch es.Type {
		case EventSchedule:
			sched, _ := es.Config["expression"].(string)
			switch {
			case sched == "":
				problems = append(problems, fmt.Sprintf("schedule %q has no expression", es.Name))
			case strings.HasPrefix(sched, "rate(") || strings.HasPrefix(sched, "cron("):
				// Provider-native expression, validated remotely.
			default:
				if _, err := cron.ParseStandard(sched); err != nil {
					problems = append(problems, fmt.Sprintf("schedule %q: %v", es.Name, err))
				}
			}
		case EventSQS:
			if q, _ := es.Config["queue"].(string); q == "" {
				problems = append(problems, fmt.Sprintf("sqs event source %q has no queue", es.Name))
			}
		case EventS3:
			if b, _ := es.Config["bucket"].(string); b == "" {
				problems = append(problems, fmt.Sprintf("s3 event source %q has no bucket", es.Name))
			}
		default:
			problems = append(problems, fmt.Sprintf("event source %q has unknown type %q", es.Name, es.Type))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
