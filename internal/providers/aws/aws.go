// Package aws implements the provider for the AWS control plane: IAM
// roles, Lambda functions, API Gateway v2 HTTP APIs, EventBridge rules
// and Lambda event source mappings.
package aws

import (
	"context"
	"errors"
	"fmt"
	"os"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/szaher/stratus/internal/graph"
	"github.com/szaher/stratus/internal/providers"
	"github.com/szaher/stratus/internal/state"
)

func init() {
	providers.Register("aws", func(ctx context.Context) (providers.Provider, error) {
		return New(ctx, Options{
			ArtifactBucket: os.Getenv("STRATUS_ARTIFACT_BUCKET"),
			ArtifactPrefix: os.Getenv("STRATUS_ARTIFACT_PREFIX"),
		})
	})
}

// Options configures the AWS provider.
type Options struct {
	// ArtifactBucket and ArtifactPrefix name the agreed S3 location of
	// uploaded function code: <prefix>/<stage>/<function>.zip.
	ArtifactBucket string
	ArtifactPrefix string
}

// Provider applies resource operations through the AWS SDK clients.
type Provider struct {
	opts   Options
	region string

	iamClient    *iam.Client
	lambdaClient *lambda.Client
	apiClient    *apigatewayv2.Client
	eventsClient *eventbridge.Client
	s3Client     *s3.Client
}

// New loads the default AWS configuration and returns a provider.
func New(ctx context.Context, opts Options) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Provider{
		opts:         opts,
		region:       cfg.Region,
		iamClient:    iam.NewFromConfig(cfg),
		lambdaClient: lambda.NewFromConfig(cfg),
		apiClient:    apigatewayv2.NewFromConfig(cfg),
		eventsClient: eventbridge.NewFromConfig(cfg),
		s3Client:     s3.NewFromConfig(cfg),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "aws" }

// Create provisions one resource according to its kind.
func (p *Provider) Create(ctx context.Context, node *graph.Node, deps map[string]state.Resource) (map[string]string, error) {
	var (
		ids map[string]string
		err error
	)
	switch node.Kind {
	case graph.KindRole:
		ids, err = p.createRole(ctx, node)
	case graph.KindFunction:
		ids, err = p.createFunction(ctx, node, deps)
	case graph.KindAPIDefinition:
		ids, err = p.createAPI(ctx, node)
	case graph.KindAuthorizer:
		ids, err = p.createAuthorizer(ctx, node, deps)
	case graph.KindRouteBinding:
		ids, err = p.createRoute(ctx, node, deps)
	case graph.KindEventSourceBinding:
		ids, err = p.createEventSource(ctx, node, deps)
	default:
		err = fmt.Errorf("unsupported resource kind %q", node.Kind)
	}
	if err != nil {
		return nil, p.wrap(node.ID, err)
	}
	return ids, nil
}

// Update converges one resource according to its kind.
func (p *Provider) Update(ctx context.Context, node *graph.Node, prev state.Resource, deps map[string]state.Resource) (map[string]string, error) {
	var (
		ids map[string]string
		err error
	)
	switch node.Kind {
	case graph.KindRole:
		ids, err = p.updateRole(ctx, node, prev)
	case graph.KindFunction:
		ids, err = p.updateFunction(ctx, node, prev, deps)
	case graph.KindAPIDefinition:
		// The API container itself has no mutable attributes beyond its
		// generated document, which routes realize individually.
		ids, err = prev.Identifiers, nil
	case graph.KindAuthorizer:
		ids, err = p.updateAuthorizer(ctx, node, prev, deps)
	case graph.KindRouteBinding:
		ids, err = p.updateRoute(ctx, node, prev, deps)
	case graph.KindEventSourceBinding:
		// Event configuration is recreated in place.
		if err = p.Delete(ctx, prev); err == nil {
			ids, err = p.createEventSource(ctx, node, deps)
		}
	default:
		err = fmt.Errorf("unsupported resource kind %q", node.Kind)
	}
	if err != nil {
		return nil, p.wrap(node.ID, err)
	}
	return ids, nil
}

// Delete removes one resource according to its recorded type.
func (p *Provider) Delete(ctx context.Context, prev state.Resource) error {
	var err error
	switch graph.Kind(prev.ResourceType) {
	case graph.KindRole:
		err = p.deleteRole(ctx, prev)
	case graph.KindFunction:
		err = p.deleteFunction(ctx, prev)
	case graph.KindAPIDefinition:
		err = p.deleteAPI(ctx, prev)
	case graph.KindAuthorizer:
		err = p.deleteAuthorizer(ctx, prev)
	case graph.KindRouteBinding:
		err = p.deleteRoute(ctx, prev)
	case graph.KindEventSourceBinding:
		err = p.deleteEventSource(ctx, prev)
	default:
		err = fmt.Errorf("unsupported resource type %q", prev.ResourceType)
	}
	if err != nil {
		return p.wrap(prev.Name, err)
	}
	return nil
}

// retryableCodes are transient control-plane failures worth retrying
// with backoff. InvalidParameterValueException covers the window where
// a freshly created IAM role cannot yet be assumed by Lambda.
var retryableCodes = map[string]bool{
	"Throttling":                      true,
	"ThrottlingException":             true,
	"TooManyRequestsException":        true,
	"RequestLimitExceeded":            true,
	"ServiceUnavailableException":     true,
	"ConcurrentModificationException": true,
	"InvalidParameterValueException":  true,
}

// wrap converts an SDK error into an OpError with retryability derived
// from the smithy error code.
func (p *Provider) wrap(resource string, err error) error {
	var apiErr smithy.APIError
	retryable := false
	if errors.As(err, &apiErr) {
		retryable = retryableCodes[apiErr.ErrorCode()]
	}
	return &providers.OpError{Resource: resource, Retryable: retryable, Err: err}
}

// notFound reports whether err is a not-found control-plane answer,
// which deletes treat as already done.
func notFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceNotFoundException", "NoSuchEntity", "NotFoundException", "NoSuchEntityException":
			return true
		}
	}
	return false
}

// conflict reports whether err means the resource or grant already
// exists, which idempotent creates treat as success.
func conflict(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceConflictException", "ConflictException", "EntityAlreadyExists":
			return true
		}
	}
	return false
}

func str(s string) *string { return awssdk.String(s) }
