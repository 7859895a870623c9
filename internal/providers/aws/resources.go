package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	apitypes "github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/szaher/stratus/internal/graph"
	"github.com/szaher/stratus/internal/model"
	"github.com/szaher/stratus/internal/state"
)

const lambdaAssumeRolePolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "lambda.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

const inlinePolicyName = "stratus-inferred"

// remoteName namespaces a resource name with its stage so stages never
// collide on the shared control plane.
func remoteName(node *graph.Node) string {
	stage := attrString(node, "stage")
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', ' ', '{', '}':
			return '-'
		}
		return r
	}, node.Name)
	return stage + "-" + name
}

// Roles.

func (p *Provider) createRole(ctx context.Context, node *graph.Node) (map[string]string, error) {
	name := remoteName(node)
	out, err := p.iamClient.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 str(name),
		AssumeRolePolicyDocument: str(lambdaAssumeRolePolicy),
	})
	if err != nil {
		return nil, err
	}
	if err := p.putRolePolicy(ctx, name, node); err != nil {
		return nil, err
	}
	return map[string]string{
		"role_name": name,
		"role_arn":  *out.Role.Arn,
	}, nil
}

func (p *Provider) updateRole(ctx context.Context, node *graph.Node, prev state.Resource) (map[string]string, error) {
	if err := p.putRolePolicy(ctx, prev.Identifiers["role_name"], node); err != nil {
		return nil, err
	}
	return prev.Identifiers, nil
}

// putRolePolicy overwrites the inline policy with the inferred
// permission document. PutRolePolicy replaces, never merges, which is
// how stale permissions drop out.
func (p *Provider) putRolePolicy(ctx context.Context, roleName string, node *graph.Node) error {
	policyDoc, err := json.Marshal(node.Attributes["policy"])
	if err != nil {
		return fmt.Errorf("marshaling policy document: %w", err)
	}
	_, err = p.iamClient.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       str(roleName),
		PolicyName:     str(inlinePolicyName),
		PolicyDocument: str(string(policyDoc)),
	})
	return err
}

func (p *Provider) deleteRole(ctx context.Context, prev state.Resource) error {
	name := prev.Identifiers["role_name"]
	if _, err := p.iamClient.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
		RoleName:   str(name),
		PolicyName: str(inlinePolicyName),
	}); err != nil && !notFound(err) {
		return err
	}
	if _, err := p.iamClient.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: str(name)}); err != nil && !notFound(err) {
		return err
	}
	return nil
}

// Functions.

func (p *Provider) artifactKey(node *graph.Node) string {
	return path.Join(p.opts.ArtifactPrefix, attrString(node, "stage"), node.Name+".zip")
}

func (p *Provider) createFunction(ctx context.Context, node *graph.Node, deps map[string]state.Resource) (map[string]string, error) {
	roleArn := depIdentifier(deps, graph.KindRole, "role_arn")
	if roleArn == "" {
		return nil, fmt.Errorf("role for function %q not yet deployed", node.Name)
	}
	name := remoteName(node)
	out, err := p.lambdaClient.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName: str(name),
		Role:         str(roleArn),
		Handler:      str(attrString(node, "handler")),
		Runtime:      lambdatypes.Runtime(attrString(node, "runtime")),
		Code: &lambdatypes.FunctionCode{
			S3Bucket: str(p.opts.ArtifactBucket),
			S3Key:    str(p.artifactKey(node)),
		},
		Environment: &lambdatypes.Environment{Variables: attrStringMap(node, "env")},
		MemorySize:  int32Attr(node, "memory_mb"),
		Timeout:     int32Attr(node, "timeout_s"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"function_name": name,
		"function_arn":  *out.FunctionArn,
	}, nil
}

func (p *Provider) updateFunction(ctx context.Context, node *graph.Node, prev state.Resource, deps map[string]state.Resource) (map[string]string, error) {
	name := prev.Identifiers["function_name"]
	roleArn := depIdentifier(deps, graph.KindRole, "role_arn")
	if _, err := p.lambdaClient.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: str(name),
		Role:         str(roleArn),
		Handler:      str(attrString(node, "handler")),
		Runtime:      lambdatypes.Runtime(attrString(node, "runtime")),
		Environment:  &lambdatypes.Environment{Variables: attrStringMap(node, "env")},
		MemorySize:   int32Attr(node, "memory_mb"),
		Timeout:      int32Attr(node, "timeout_s"),
	}); err != nil {
		return nil, err
	}
	if _, err := p.lambdaClient.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: str(name),
		S3Bucket:     str(p.opts.ArtifactBucket),
		S3Key:        str(p.artifactKey(node)),
	}); err != nil {
		return nil, err
	}
	return prev.Identifiers, nil
}

func (p *Provider) deleteFunction(ctx context.Context, prev state.Resource) error {
	_, err := p.lambdaClient.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: str(prev.Identifiers["function_name"]),
	})
	if err != nil && !notFound(err) {
		return err
	}
	return nil
}

// API definitions.

func (p *Provider) createAPI(ctx context.Context, node *graph.Node) (map[string]string, error) {
	name := remoteName(node)
	out, err := p.apiClient.CreateApi(ctx, &apigatewayv2.CreateApiInput{
		Name:         str(name),
		ProtocolType: apitypes.ProtocolTypeHttp,
	})
	if err != nil {
		return nil, err
	}
	stage := attrString(node, "stage")
	if _, err := p.apiClient.CreateStage(ctx, &apigatewayv2.CreateStageInput{
		ApiId:      out.ApiId,
		StageName:  str(stage),
		AutoDeploy: boolPtr(true),
	}); err != nil {
		return nil, err
	}
	return map[string]string{
		"api_id":       *out.ApiId,
		"endpoint_url": fmt.Sprintf("%s/%s", *out.ApiEndpoint, stage),
	}, nil
}

func (p *Provider) deleteAPI(ctx context.Context, prev state.Resource) error {
	_, err := p.apiClient.DeleteApi(ctx, &apigatewayv2.DeleteApiInput{
		ApiId: str(prev.Identifiers["api_id"]),
	})
	if err != nil && !notFound(err) {
		return err
	}
	return nil
}

// Authorizers.

func (p *Provider) authorizerURI(functionArn string) string {
	return fmt.Sprintf("arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/%s/invocations",
		p.region, functionArn)
}

func (p *Provider) createAuthorizer(ctx context.Context, node *graph.Node, deps map[string]state.Resource) (map[string]string, error) {
	apiID := depIdentifier(deps, graph.KindAPIDefinition, "api_id")
	fnArn := depIdentifier(deps, graph.KindFunction, "function_arn")
	if apiID == "" || fnArn == "" {
		return nil, fmt.Errorf("authorizer %q dependencies not yet deployed", node.Name)
	}
	out, err := p.apiClient.CreateAuthorizer(ctx, &apigatewayv2.CreateAuthorizerInput{
		ApiId:                          str(apiID),
		Name:                           str(node.Name),
		AuthorizerType:                 apitypes.AuthorizerTypeRequest,
		AuthorizerUri:                  str(p.authorizerURI(fnArn)),
		AuthorizerPayloadFormatVersion: str("2.0"),
		IdentitySource:                 []string{"$request.header.Authorization"},
	})
	if err != nil {
		return nil, err
	}
	if err := p.allowInvoke(ctx, fnArn, "apigateway.amazonaws.com", "auth-"+node.Name); err != nil {
		return nil, err
	}
	return map[string]string{
		"api_id":        apiID,
		"authorizer_id": *out.AuthorizerId,
	}, nil
}

func (p *Provider) updateAuthorizer(ctx context.Context, node *graph.Node, prev state.Resource, deps map[string]state.Resource) (map[string]string, error) {
	fnArn := depIdentifier(deps, graph.KindFunction, "function_arn")
	_, err := p.apiClient.UpdateAuthorizer(ctx, &apigatewayv2.UpdateAuthorizerInput{
		ApiId:          str(prev.Identifiers["api_id"]),
		AuthorizerId:   str(prev.Identifiers["authorizer_id"]),
		AuthorizerUri:  str(p.authorizerURI(fnArn)),
		IdentitySource: []string{"$request.header.Authorization"},
	})
	if err != nil {
		return nil, err
	}
	return prev.Identifiers, nil
}

func (p *Provider) deleteAuthorizer(ctx context.Context, prev state.Resource) error {
	_, err := p.apiClient.DeleteAuthorizer(ctx, &apigatewayv2.DeleteAuthorizerInput{
		ApiId:        str(prev.Identifiers["api_id"]),
		AuthorizerId: str(prev.Identifiers["authorizer_id"]),
	})
	if err != nil && !notFound(err) {
		return err
	}
	return nil
}

// Route bindings.

func (p *Provider) createRoute(ctx context.Context, node *graph.Node, deps map[string]state.Resource) (map[string]string, error) {
	apiID := depIdentifier(deps, graph.KindAPIDefinition, "api_id")
	fnArn := depIdentifier(deps, graph.KindFunction, "function_arn")
	if apiID == "" || fnArn == "" {
		return nil, fmt.Errorf("route %q dependencies not yet deployed", node.Name)
	}

	integ, err := p.apiClient.CreateIntegration(ctx, &apigatewayv2.CreateIntegrationInput{
		ApiId:                str(apiID),
		IntegrationType:      apitypes.IntegrationTypeAwsProxy,
		IntegrationUri:       str(fnArn),
		PayloadFormatVersion: str("2.0"),
	})
	if err != nil {
		return nil, err
	}

	routeKey := attrString(node, "method") + " " + attrString(node, "path")
	in := &apigatewayv2.CreateRouteInput{
		ApiId:    str(apiID),
		RouteKey: str(routeKey),
		Target:   str("integrations/" + *integ.IntegrationId),
	}
	if authID := depIdentifier(deps, graph.KindAuthorizer, "authorizer_id"); authID != "" {
		in.AuthorizationType = apitypes.AuthorizationTypeCustom
		in.AuthorizerId = str(authID)
	}
	route, err := p.apiClient.CreateRoute(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := p.allowInvoke(ctx, fnArn, "apigateway.amazonaws.com", "route-"+remoteName(node)); err != nil {
		return nil, err
	}
	return map[string]string{
		"api_id":         apiID,
		"route_id":       *route.RouteId,
		"integration_id": *integ.IntegrationId,
	}, nil
}

func (p *Provider) updateRoute(ctx context.Context, node *graph.Node, prev state.Resource, deps map[string]state.Resource) (map[string]string, error) {
	in := &apigatewayv2.UpdateRouteInput{
		ApiId:    str(prev.Identifiers["api_id"]),
		RouteId:  str(prev.Identifiers["route_id"]),
		RouteKey: str(attrString(node, "method") + " " + attrString(node, "path")),
		Target:   str("integrations/" + prev.Identifiers["integration_id"]),
	}
	if authID := depIdentifier(deps, graph.KindAuthorizer, "authorizer_id"); authID != "" {
		in.AuthorizationType = apitypes.AuthorizationTypeCustom
		in.AuthorizerId = str(authID)
	} else {
		in.AuthorizationType = apitypes.AuthorizationTypeNone
	}
	if _, err := p.apiClient.UpdateRoute(ctx, in); err != nil {
		return nil, err
	}
	return prev.Identifiers, nil
}

func (p *Provider) deleteRoute(ctx context.Context, prev state.Resource) error {
	apiID := prev.Identifiers["api_id"]
	if _, err := p.apiClient.DeleteRoute(ctx, &apigatewayv2.DeleteRouteInput{
		ApiId:   str(apiID),
		RouteId: str(prev.Identifiers["route_id"]),
	}); err != nil && !notFound(err) {
		return err
	}
	if _, err := p.apiClient.DeleteIntegration(ctx, &apigatewayv2.DeleteIntegrationInput{
		ApiId:         str(apiID),
		IntegrationId: str(prev.Identifiers["integration_id"]),
	}); err != nil && !notFound(err) {
		return err
	}
	return nil
}

// Event sources.

func (p *Provider) createEventSource(ctx context.Context, node *graph.Node, deps map[string]state.Resource) (map[string]string, error) {
	fnArn := depIdentifier(deps, graph.KindFunction, "function_arn")
	if fnArn == "" {
		return nil, fmt.Errorf("function for event source %q not yet deployed", node.Name)
	}
	config, _ := node.Attributes["config"].(map[string]any)

	switch attrString(node, "type") {
	case model.EventSchedule:
		return p.createScheduleRule(ctx, node, fnArn, config)

	case model.EventSQS:
		queueArn, _ := config["queue"].(string) // queue ARN
		out, err := p.lambdaClient.CreateEventSourceMapping(ctx, &lambda.CreateEventSourceMappingInput{
			EventSourceArn: str(queueArn),
			FunctionName:   str(fnArn),
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{"type": model.EventSQS, "mapping_uuid": *out.UUID}, nil

	case model.EventS3:
		bucket, _ := config["bucket"].(string)
		if err := p.allowInvoke(ctx, fnArn, "s3.amazonaws.com", "s3-"+remoteName(node)); err != nil {
			return nil, err
		}
		// Overwrites any notification config on the bucket not managed here.
		_, err := p.s3Client.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
			Bucket: str(bucket),
			NotificationConfiguration: &s3types.NotificationConfiguration{
				LambdaFunctionConfigurations: []s3types.LambdaFunctionConfiguration{{
					LambdaFunctionArn: str(fnArn),
					Events:            []s3types.Event{"s3:ObjectCreated:*"},
				}},
			},
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{"type": model.EventS3, "bucket": bucket}, nil
	}
	return nil, fmt.Errorf("unsupported event source type %q", attrString(node, "type"))
}

func (p *Provider) createScheduleRule(ctx context.Context, node *graph.Node, fnArn string, config map[string]any) (map[string]string, error) {
	raw, _ := config["expression"].(string)
	expr, err := translateSchedule(raw)
	if err != nil {
		return nil, err
	}
	name := remoteName(node)
	rule, err := p.eventsClient.PutRule(ctx, &eventbridge.PutRuleInput{
		Name:               str(name),
		ScheduleExpression: str(expr),
	})
	if err != nil {
		return nil, err
	}
	if _, err := p.eventsClient.PutTargets(ctx, &eventbridge.PutTargetsInput{
		Rule:    str(name),
		Targets: []ebtypes.Target{{Arn: str(fnArn), Id: str("stratus-target")}},
	}); err != nil {
		return nil, err
	}
	if err := p.allowInvoke(ctx, fnArn, "events.amazonaws.com", "sched-"+name); err != nil {
		return nil, err
	}
	return map[string]string{
		"type":      model.EventSchedule,
		"rule_name": name,
		"rule_arn":  *rule.RuleArn,
	}, nil
}

func (p *Provider) deleteEventSource(ctx context.Context, prev state.Resource) error {
	switch prev.Identifiers["type"] {
	case model.EventSchedule:
		name := prev.Identifiers["rule_name"]
		if _, err := p.eventsClient.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
			Rule: str(name),
			Ids:  []string{"stratus-target"},
		}); err != nil && !notFound(err) {
			return err
		}
		if _, err := p.eventsClient.DeleteRule(ctx, &eventbridge.DeleteRuleInput{Name: str(name)}); err != nil && !notFound(err) {
			return err
		}
	case model.EventSQS:
		if _, err := p.lambdaClient.DeleteEventSourceMapping(ctx, &lambda.DeleteEventSourceMappingInput{
			UUID: str(prev.Identifiers["mapping_uuid"]),
		}); err != nil && !notFound(err) {
			return err
		}
	case model.EventS3:
		if _, err := p.s3Client.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
			Bucket:                    str(prev.Identifiers["bucket"]),
			NotificationConfiguration: &s3types.NotificationConfiguration{},
		}); err != nil && !notFound(err) {
			return err
		}
	}
	return nil
}

// allowInvoke grants a service principal permission to invoke the
// function. An existing statement id means the grant is already there.
func (p *Provider) allowInvoke(ctx context.Context, fnArn, principal, statementID string) error {
	_, err := p.lambdaClient.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: str(fnArn),
		StatementId:  str(statementID),
		Action:       str("lambda:InvokeFunction"),
		Principal:    str(principal),
	})
	if err != nil && !conflict(err) {
		return err
	}
	return nil
}

// Attribute and dependency helpers.

func attrString(n *graph.Node, key string) string {
	s, _ := n.Attributes[key].(string)
	return s
}

func attrStringMap(n *graph.Node, key string) map[string]string {
	raw, _ := n.Attributes[key].(map[string]any)
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func int32Attr(n *graph.Node, key string) *int32 {
	v, ok := n.Attributes[key].(int)
	if !ok || v == 0 {
		return nil
	}
	i := int32(v)
	return &i
}

// depIdentifier finds the first dependency of the given kind and
// returns one of its recorded identifiers.
func depIdentifier(deps map[string]state.Resource, kind graph.Kind, key string) string {
	for id, res := range deps {
		if strings.HasPrefix(id, string(kind)+"/") {
			if v, ok := res.Identifiers[key]; ok {
				return v
			}
		}
	}
	return ""
}

func boolPtr(b bool) *bool { return &b }
