package model

import (
	"fmt"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"
)

// Load reads an application definition from a YAML file and resolves it
// for the given stage: stage env overlays are merged into every function
// and {{ ... }} templates inside env values are evaluated.
func Load(path, stage string) (*Application, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading application definition: %w", err)
	}
	return Parse(data, stage)
}

// Parse decodes and resolves an application definition from raw YAML.
func Parse(data []byte, stage string) (*Application, error) {
	var app Application
	if err := yaml.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("parsing application definition: %w", err)
	}

	overlay := map[string]string{}
	if sc, ok := app.Stages[stage]; ok {
		overlay = sc.Env
	}

	for i := range app.Functions {
		fn := &app.Functions[i]
		merged := make(map[string]string, len(fn.Env)+len(overlay))
		for k, v := range fn.Env {
			merged[k] = v
		}
		for k, v := range overlay {
			merged[k] = v
		}
		for k, v := range merged {
			resolved, err := resolveTemplate(v, app.Name, stage)
			if err != nil {
				return nil, fmt.Errorf("function %q env %q: %w", fn.Name, k, err)
			}
			merged[k] = resolved
		}
		if len(merged) > 0 {
			fn.Env = merged
		}
	}

	return &app, nil
}

// templateEnv is the evaluation scope for env value templates.
type templateEnv struct {
	Stage string `expr:"stage"`
	App   string `expr:"app"`
}

// resolveTemplate evaluates {{ ... }} segments in an env value using the
// expression engine. Values without template markers pass through as-is.
func resolveTemplate(value, app, stage string) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}

	var sb strings.Builder
	rest := value
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return "", fmt.Errorf("unterminated template in %q", value)
		}
		sb.WriteString(rest[:start])

		src := strings.TrimSpace(rest[start+2 : start+end])
		program, err := expr.Compile(src, expr.Env(templateEnv{}))
		if err != nil {
			return "", fmt.Errorf("compiling template %q: %w", src, err)
		}
		out, err := expr.Run(program, templateEnv{Stage: stage, App: app})
		if err != nil {
			return "", fmt.Errorf("evaluating template %q: %w", src, err)
		}
		fmt.Fprintf(&sb, "%v", out)

		rest = rest[start+end+2:]
	}
}
