package deployer

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/provisioner"
)

func filterValues(filters []ec2types.Filter, name string) []string {
	for _, f := range filters {
		if aws.ToString(f.Name) == name {
			return f.Values
		}
	}
	return nil
}

func TestDiscoverNetworkFindsDefaults(t *testing.T) {
	ec2Stub := defaultStubEC2()
	d := newTestDeployer(t, provisioner.NewFake(), ec2Stub, &stubRDS{})

	network, err := d.discoverNetwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &NetworkResources{
		VpcID:           "vpc-123",
		SubnetID:        "subnet-a1",
		SecurityGroupID: "sg-123",
	}, network)

	assert.Equal(t, []string{"true"}, filterValues(ec2Stub.vpcFilters, "isDefault"))
	assert.Equal(t, []string{"vpc-123"}, filterValues(ec2Stub.subnetFilters, "vpc-id"))
	assert.Equal(t, []string{"vpc-123"}, filterValues(ec2Stub.groupFilters, "vpc-id"))
	assert.Equal(t, []string{"default"}, filterValues(ec2Stub.groupFilters, "group-name"))
}

func TestDiscoverNetworkMissingResources(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*stubEC2)
		wantMsg string
	}{
		{
			name:    "no default VPC",
			mutate:  func(s *stubEC2) { s.vpcs = nil },
			wantMsg: "no default VPC found",
		},
		{
			name:    "no subnets",
			mutate:  func(s *stubEC2) { s.subnets = nil },
			wantMsg: "no subnets found in VPC vpc-123",
		},
		{
			name:    "no default security group",
			mutate:  func(s *stubEC2) { s.groups = nil },
			wantMsg: "no default security group found in VPC vpc-123",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ec2Stub := defaultStubEC2()
			tc.mutate(ec2Stub)
			d := newTestDeployer(t, provisioner.NewFake(), ec2Stub, &stubRDS{})

			_, err := d.discoverNetwork(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsFatal(err))
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestDiscoverNetworkThrottleIsTransient(t *testing.T) {
	ec2Stub := defaultStubEC2()
	ec2Stub.vpcsErr = &smithy.GenericAPIError{Code: "Throttling", Message: "Rate exceeded"}
	d := newTestDeployer(t, provisioner.NewFake(), ec2Stub, &stubRDS{})

	_, err := d.discoverNetwork(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestEnsureDBSubnetGroupReusesExisting(t *testing.T) {
	rdsStub := &stubRDS{}
	d := newTestDeployer(t, provisioner.NewFake(), defaultStubEC2(), rdsStub)

	group, err := d.ensureDBSubnetGroup(context.Background(), "vpc-123")
	require.NoError(t, err)
	assert.Equal(t, "foundry-db-subnet-group-vpc-123", group)
	assert.Equal(t, []string{"foundry-db-subnet-group-vpc-123"}, rdsStub.describes)
	assert.Empty(t, rdsStub.creates)
}

func TestEnsureDBSubnetGroupCreates(t *testing.T) {
	ec2Stub := defaultStubEC2()
	ec2Stub.subnets = []ec2types.Subnet{
		{SubnetId: aws.String("subnet-a1"), AvailabilityZone: aws.String("us-east-1a")},
		{SubnetId: aws.String("subnet-a2"), AvailabilityZone: aws.String("us-east-1a")},
		{SubnetId: aws.String("subnet-b1"), AvailabilityZone: aws.String("us-east-1b")},
		{SubnetId: aws.String("subnet-c1"), AvailabilityZone: aws.String("us-east-1c")},
	}
	rdsStub := &stubRDS{describeErr: subnetGroupNotFound()}
	d := newTestDeployer(t, provisioner.NewFake(), ec2Stub, rdsStub)

	group, err := d.ensureDBSubnetGroup(context.Background(), "vpc-123")
	require.NoError(t, err)
	assert.Equal(t, "foundry-db-subnet-group-vpc-123", group)

	require.Len(t, rdsStub.creates, 1)
	in := rdsStub.creates[0]
	assert.Equal(t, "foundry-db-subnet-group-vpc-123", aws.ToString(in.DBSubnetGroupName))
	assert.Equal(t, "Foundry auto-generated DB subnet group for VPC vpc-123",
		aws.ToString(in.DBSubnetGroupDescription))
	// First subnet of each zone, first two zones.
	assert.Equal(t, []string{"subnet-a1", "subnet-b1"}, in.SubnetIds)

	require.Len(t, in.Tags, 2)
	assert.Equal(t, "Name", aws.ToString(in.Tags[0].Key))
	assert.Equal(t, "foundry-db-subnet-group-vpc-123", aws.ToString(in.Tags[0].Value))
	assert.Equal(t, "ManagedBy", aws.ToString(in.Tags[1].Key))
	assert.Equal(t, "Foundry", aws.ToString(in.Tags[1].Value))
}

func TestEnsureDBSubnetGroupRequiresTwoSubnets(t *testing.T) {
	ec2Stub := defaultStubEC2()
	ec2Stub.subnets = []ec2types.Subnet{
		{SubnetId: aws.String("subnet-a1"), AvailabilityZone: aws.String("us-east-1a")},
	}
	d := newTestDeployer(t, provisioner.NewFake(), ec2Stub, &stubRDS{describeErr: subnetGroupNotFound()})

	_, err := d.ensureDBSubnetGroup(context.Background(), "vpc-123")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "at least 2 subnets")
}

func TestEnsureDBSubnetGroupRequiresTwoZones(t *testing.T) {
	ec2Stub := defaultStubEC2()
	ec2Stub.subnets = []ec2types.Subnet{
		{SubnetId: aws.String("subnet-a1"), AvailabilityZone: aws.String("us-east-1a")},
		{SubnetId: aws.String("subnet-a2"), AvailabilityZone: aws.String("us-east-1a")},
	}
	d := newTestDeployer(t, provisioner.NewFake(), ec2Stub, &stubRDS{describeErr: subnetGroupNotFound()})

	_, err := d.ensureDBSubnetGroup(context.Background(), "vpc-123")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "at least 2 different AZs")
}

func TestEnsureDBSubnetGroupDescribeFailure(t *testing.T) {
	rdsStub := &stubRDS{describeErr: &smithy.GenericAPIError{
		Code: "AccessDenied", Message: "not authorized",
	}}
	d := newTestDeployer(t, provisioner.NewFake(), defaultStubEC2(), rdsStub)

	_, err := d.ensureDBSubnetGroup(context.Background(), "vpc-123")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Empty(t, rdsStub.creates)
}
