// Package model defines the normalized application model consumed by
// the Stratus deployment core: functions, routes, event sources and
// authorizers, plus per-stage configuration overlays.
package model

// Application is the fully-resolved declarative model of one serverless
// application. It is pure data; the graph builder turns it into resources.
type Application struct {
	Name         string                 `yaml:"name" json:"name"`
	Version      string                 `yaml:"version,omitempty" json:"version,omitempty"`
	Functions    []Function             `yaml:"functions" json:"functions"`
	Routes       []Route                `yaml:"routes,omitempty" json:"routes,omitempty"`
	EventSources []EventSource          `yaml:"event_sources,omitempty" json:"event_sources,omitempty"`
	Authorizers  []Authorizer           `yaml:"authorizers,omitempty" json:"authorizers,omitempty"`
	Stages       map[string]StageConfig `yaml:"stages,omitempty" json:"stages,omitempty"`
	State        StateConfig            `yaml:"state,omitempty" json:"state,omitempty"`
	Artifacts    ArtifactConfig         `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
}

// ArtifactConfig names the agreed location of uploaded code artifacts.
// Packaging and upload happen outside the core; providers only
// reference the location.
type ArtifactConfig struct {
	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// Function declares one deployable unit of code.
type Function struct {
	Name      string            `yaml:"name" json:"name"`
	SourceRef string            `yaml:"source_ref" json:"source_ref"`
	Handler   string            `yaml:"handler,omitempty" json:"handler,omitempty"`
	Runtime   string            `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	MemoryMB  int               `yaml:"memory_mb,omitempty" json:"memory_mb,omitempty"`
	TimeoutS  int               `yaml:"timeout_s,omitempty" json:"timeout_s,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Route binds an HTTP path and method set to a function.
type Route struct {
	Path         string      `yaml:"path" json:"path"`
	Methods      []string    `yaml:"methods" json:"methods"`
	Function     string      `yaml:"function" json:"function"`
	Authorizer   string      `yaml:"authorizer,omitempty" json:"authorizer,omitempty"`
	CORS         *CORSConfig `yaml:"cors,omitempty" json:"cors,omitempty"`
	ContentTypes []string    `yaml:"content_types,omitempty" json:"content_types,omitempty"`
	QueryParams  []string    `yaml:"query_params,omitempty" json:"query_params,omitempty"`
	HeaderParams []string    `yaml:"header_params,omitempty" json:"header_params,omitempty"`
}

// CORSConfig declares the cross-origin policy for a route.
type CORSConfig struct {
	AllowOrigin      string   `yaml:"allow_origin,omitempty" json:"allow_origin,omitempty"`
	AllowHeaders     []string `yaml:"allow_headers,omitempty" json:"allow_headers,omitempty"`
	AllowCredentials bool     `yaml:"allow_credentials,omitempty" json:"allow_credentials,omitempty"`
	MaxAgeS          int      `yaml:"max_age_s,omitempty" json:"max_age_s,omitempty"`
}

// EventSource binds a non-HTTP trigger to a function.
type EventSource struct {
	Name     string         `yaml:"name" json:"name"`
	Type     string         `yaml:"type" json:"type"` // schedule, sqs, s3
	Function string         `yaml:"function" json:"function"`
	Config   map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Event source types understood by the graph builder and providers.
const (
	EventSchedule = "schedule"
	EventSQS      = "sqs"
	EventS3       = "s3"
)

// Authorizer declares a request authorizer referenced by routes.
type Authorizer struct {
	Name     string         `yaml:"name" json:"name"`
	Kind     string         `yaml:"kind" json:"kind"` // token, request, iam
	Function string         `yaml:"function,omitempty" json:"function,omitempty"`
	Config   map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Authorizer kinds. Token and request authorizers are backed by a
// declared function; iam authorizers are not.
const (
	AuthorizerToken   = "token"
	AuthorizerRequest = "request"
	AuthorizerIAM     = "iam"
)

// StageConfig overlays per-stage settings onto the application.
type StageConfig struct {
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// StateConfig selects and configures the state backend for all stages.
type StateConfig struct {
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"` // local, s3, postgres
	Dir     string `yaml:"dir,omitempty" json:"dir,omitempty"`
	Bucket  string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix  string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	DSN     string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// FunctionByName returns the declared function with the given name.
func (a *Application) FunctionByName(name string) *Function {
	for i := range a.Functions {
		if a.Functions[i].Name == name {
			return &a.Functions[i]
		}
	}
	return nil
}

// AuthorizerByName returns the declared authorizer with the given name.
func (a *Application) AuthorizerByName(name string) *Authorizer {
	for i := range a.Authorizers {
		if a.Authorizers[i].Name == name {
			return &a.Authorizers[i]
		}
	}
	return nil
}
