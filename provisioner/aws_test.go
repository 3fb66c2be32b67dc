package provisioner

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/pkg/retry"
	"github.com/csakilan/FoundryBackend/template"
)

type stubAPI struct {
	createInputs []*cloudformation.CreateStackInput
	createErrs   []error
	stackID      string

	events    []cftypes.StackEvent
	eventsErr error

	stacks      []cftypes.Stack
	describeErr error
}

func (s *stubAPI) CreateStack(_ context.Context, in *cloudformation.CreateStackInput,
	_ ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	s.createInputs = append(s.createInputs, in)
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &cloudformation.CreateStackOutput{StackId: aws.String(s.stackID)}, nil
}

func (s *stubAPI) DescribeStackEvents(_ context.Context, _ *cloudformation.DescribeStackEventsInput,
	_ ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error) {
	if s.eventsErr != nil {
		return nil, s.eventsErr
	}
	return &cloudformation.DescribeStackEventsOutput{StackEvents: s.events}, nil
}

func (s *stubAPI) DescribeStacks(_ context.Context, _ *cloudformation.DescribeStacksInput,
	_ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if s.describeErr != nil {
		return nil, s.describeErr
	}
	return &cloudformation.DescribeStacksOutput{Stacks: s.stacks}, nil
}

func fastRetry() AWSOption {
	return WithRetry(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	})
}

func testDocument(t *testing.T) *template.Document {
	t.Helper()
	doc := template.New("test stack")
	require.NoError(t, doc.AddResource("Thing", &template.Resource{
		Type:       "AWS::S3::Bucket",
		Properties: map[string]any{"BucketName": "b"},
	}))
	return doc
}

func TestCreateStackSubmission(t *testing.T) {
	api := &stubAPI{stackID: "arn:stack/foundry-stack-ab12cd34"}
	engine := NewAWSEngine(api, fastRetry())

	id, err := engine.CreateStack(context.Background(), "foundry-stack-ab12cd34", testDocument(t),
		map[string]string{
			"SubnetId":        "subnet-1",
			"VpcId":           "vpc-1",
			"SecurityGroupId": "sg-1",
		})
	require.NoError(t, err)
	assert.Equal(t, "arn:stack/foundry-stack-ab12cd34", id)

	require.Len(t, api.createInputs, 1)
	in := api.createInputs[0]
	assert.Equal(t, "foundry-stack-ab12cd34", aws.ToString(in.StackName))
	assert.Contains(t, aws.ToString(in.TemplateBody), "AWSTemplateFormatVersion")
	assert.Equal(t, []cftypes.Capability{cftypes.CapabilityCapabilityIam}, in.Capabilities)
	assert.Equal(t, cftypes.OnFailureRollback, in.OnFailure)

	keys := make([]string, 0, len(in.Parameters))
	for _, p := range in.Parameters {
		keys = append(keys, aws.ToString(p.ParameterKey))
	}
	assert.Equal(t, []string{"SecurityGroupId", "SubnetId", "VpcId"}, keys)
}

func TestCreateStackRetriesThrottle(t *testing.T) {
	api := &stubAPI{
		stackID:    "arn:stack/x",
		createErrs: []error{&smithy.GenericAPIError{Code: "Throttling", Message: "Rate exceeded"}},
	}
	engine := NewAWSEngine(api, fastRetry())

	id, err := engine.CreateStack(context.Background(), "x", testDocument(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "arn:stack/x", id)
	assert.Len(t, api.createInputs, 2)
}

func TestCreateStackDoesNotRetryDenied(t *testing.T) {
	api := &stubAPI{
		stackID:    "arn:stack/x",
		createErrs: []error{&smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"}},
	}
	engine := NewAWSEngine(api, fastRetry())

	_, err := engine.CreateStack(context.Background(), "x", testDocument(t), nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Len(t, api.createInputs, 1)
}

func TestDescribeEventsMapsFields(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	api := &stubAPI{events: []cftypes.StackEvent{
		{
			EventId:              aws.String("ev-2"),
			LogicalResourceId:    aws.String("S3store1"),
			ResourceType:         aws.String("AWS::S3::Bucket"),
			ResourceStatus:       cftypes.ResourceStatusCreateComplete,
			ResourceStatusReason: aws.String(""),
			PhysicalResourceId:   aws.String("demo-store1-bucket"),
			Timestamp:            aws.Time(ts),
		},
		{
			EventId:           aws.String("ev-1"),
			LogicalResourceId: aws.String("S3store1"),
			ResourceType:      aws.String("AWS::S3::Bucket"),
			ResourceStatus:    cftypes.ResourceStatusCreateInProgress,
			Timestamp:         aws.Time(ts.Add(-10 * time.Second)),
		},
	}}
	engine := NewAWSEngine(api)

	events, err := engine.DescribeEvents(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, StackEvent{
		EventID:    "ev-2",
		LogicalID:  "S3store1",
		Type:       "AWS::S3::Bucket",
		Status:     "CREATE_COMPLETE",
		PhysicalID: "demo-store1-bucket",
		Timestamp:  ts,
	}, events[0])
	assert.Equal(t, "CREATE_IN_PROGRESS", events[1].Status)
}

func TestDescribeEventsStackNotFound(t *testing.T) {
	api := &stubAPI{eventsErr: &smithy.GenericAPIError{
		Code:    "ValidationError",
		Message: "Stack with id foundry-stack-x does not exist",
	}}
	engine := NewAWSEngine(api)

	_, err := engine.DescribeEvents(context.Background(), "foundry-stack-x")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDescribeEventsThrottleIsTransient(t *testing.T) {
	api := &stubAPI{eventsErr: &smithy.GenericAPIError{Code: "Throttling", Message: "Rate exceeded"}}
	engine := NewAWSEngine(api)

	_, err := engine.DescribeEvents(context.Background(), "demo")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.False(t, errors.IsNotFound(err))
}

func TestDescribeStatus(t *testing.T) {
	api := &stubAPI{stacks: []cftypes.Stack{{StackStatus: cftypes.StackStatusCreateComplete}}}
	engine := NewAWSEngine(api)

	status, err := engine.DescribeStatus(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "CREATE_COMPLETE", status)
}

func TestDescribeStatusNoStacks(t *testing.T) {
	api := &stubAPI{}
	engine := NewAWSEngine(api)

	_, err := engine.DescribeStatus(context.Background(), "demo")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDescribeOutputs(t *testing.T) {
	api := &stubAPI{stacks: []cftypes.Stack{{
		StackStatus: cftypes.StackStatusCreateComplete,
		Outputs: []cftypes.Output{
			{
				OutputKey:   aws.String("S3store1Name"),
				OutputValue: aws.String("demo-store1-bucket"),
				Description: aws.String("Bucket name"),
			},
		},
	}}}
	engine := NewAWSEngine(api)

	outputs, err := engine.DescribeOutputs(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, []StackOutput{
		{Key: "S3store1Name", Value: "demo-store1-bucket", Description: "Bucket name"},
	}, outputs)
}
