package provisioner

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/pkg/retry"
	"github.com/csakilan/FoundryBackend/template"
)

// CloudFormationAPI is the slice of the CloudFormation client the
// engine uses. Narrowed for substitution in tests.
type CloudFormationAPI interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput,
		optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// AWSEngine applies documents through CloudFormation. Stacks are
// created with CAPABILITY_IAM (documents carry instance roles) and
// roll back on failure. Every call runs under a bounded timeout;
// CreateStack additionally retries transient backend failures.
type AWSEngine struct {
	api         CloudFormationAPI
	callTimeout time.Duration
	retry       retry.Config
}

// AWSOption configures an AWSEngine.
type AWSOption func(*AWSEngine)

// WithCallTimeout bounds each backend call. Default 15s.
func WithCallTimeout(d time.Duration) AWSOption {
	return func(e *AWSEngine) { e.callTimeout = d }
}

// WithRetry overrides the CreateStack retry policy.
func WithRetry(cfg retry.Config) AWSOption {
	return func(e *AWSEngine) { e.retry = cfg }
}

// NewAWSEngine wraps a CloudFormation client. Build the client with
// cloudformation.NewFromConfig over a loaded AWS config.
func NewAWSEngine(api CloudFormationAPI, opts ...AWSOption) *AWSEngine {
	e := &AWSEngine{
		api:         api,
		callTimeout: 15 * time.Second,
		retry:       retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateStack implements Engine.
func (e *AWSEngine) CreateStack(ctx context.Context, name string, doc *template.Document,
	params map[string]string) (string, error) {
	body, err := doc.JSON()
	if err != nil {
		return "", errors.WrapInvalid(err, "AWSEngine", "CreateStack", "render document")
	}

	input := &cloudformation.CreateStackInput{
		StackName:    aws.String(name),
		TemplateBody: aws.String(string(body)),
		Parameters:   cfParameters(params),
		Capabilities: []cftypes.Capability{cftypes.CapabilityCapabilityIam},
		OnFailure:    cftypes.OnFailureRollback,
	}

	out, err := retry.DoWithResult(ctx, e.retry, func() (*cloudformation.CreateStackOutput, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
		res, callErr := e.api.CreateStack(callCtx, input)
		if callErr != nil {
			mapped := mapAWSError(callErr, "CreateStack", "create stack "+name)
			if !errors.IsTransient(mapped) {
				return nil, retry.NonRetryable(mapped)
			}
			return nil, mapped
		}
		return res, nil
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.StackId), nil
}

// DescribeEvents implements Engine. Returns the first event page,
// newest-first; the tracker's dedup makes deeper history redundant
// once a poll cycle has seen it.
func (e *AWSEngine) DescribeEvents(ctx context.Context, name string) ([]StackEvent, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	out, err := e.api.DescribeStackEvents(callCtx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return nil, mapAWSError(err, "DescribeEvents", "describe events for "+name)
	}

	events := make([]StackEvent, 0, len(out.StackEvents))
	for _, ev := range out.StackEvents {
		events = append(events, StackEvent{
			EventID:    aws.ToString(ev.EventId),
			LogicalID:  aws.ToString(ev.LogicalResourceId),
			Type:       aws.ToString(ev.ResourceType),
			Status:     string(ev.ResourceStatus),
			Reason:     aws.ToString(ev.ResourceStatusReason),
			PhysicalID: aws.ToString(ev.PhysicalResourceId),
			Timestamp:  aws.ToTime(ev.Timestamp),
		})
	}
	return events, nil
}

// DescribeStatus implements Engine.
func (e *AWSEngine) DescribeStatus(ctx context.Context, name string) (string, error) {
	stack, err := e.describeStack(ctx, name, "DescribeStatus")
	if err != nil {
		return "", err
	}
	return string(stack.StackStatus), nil
}

// DescribeOutputs implements Engine.
func (e *AWSEngine) DescribeOutputs(ctx context.Context, name string) ([]StackOutput, error) {
	stack, err := e.describeStack(ctx, name, "DescribeOutputs")
	if err != nil {
		return nil, err
	}

	outputs := make([]StackOutput, 0, len(stack.Outputs))
	for _, o := range stack.Outputs {
		outputs = append(outputs, StackOutput{
			Key:         aws.ToString(o.OutputKey),
			Value:       aws.ToString(o.OutputValue),
			Description: aws.ToString(o.Description),
		})
	}
	return outputs, nil
}

func (e *AWSEngine) describeStack(ctx context.Context, name, method string) (*cftypes.Stack, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	out, err := e.api.DescribeStacks(callCtx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return nil, mapAWSError(err, method, "describe stack "+name)
	}
	if len(out.Stacks) == 0 {
		return nil, errors.WrapInvalid(errors.ErrStackNotFound, "AWSEngine", method, "describe stack "+name)
	}
	return &out.Stacks[0], nil
}

// cfParameters converts the deploy parameter map to the backend's
// key/value form, sorted for deterministic submissions.
func cfParameters(params map[string]string) []cftypes.Parameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	converted := make([]cftypes.Parameter, 0, len(keys))
	for _, k := range keys {
		converted = append(converted, cftypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(params[k]),
		})
	}
	return converted
}

// mapAWSError translates backend failures onto the shared taxonomy.
// A ValidationError naming a nonexistent stack becomes
// ErrStackNotFound; throttles and timeouts are transient; any other
// backend rejection (expired credentials, denied access) is fatal and
// stops a tracking loop. Transport-level failures stay transient so
// the next poll cycle retries them.
func mapAWSError(err error, method, action string) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist") {
			return errors.WrapInvalid(errors.ErrStackNotFound, "AWSEngine", method, action)
		}
		if errors.IsTransient(err) {
			return errors.WrapTransient(err, "AWSEngine", method, action)
		}
		return errors.WrapFatal(err, "AWSEngine", method, action)
	}
	return errors.WrapTransient(err, "AWSEngine", method, action)
}
