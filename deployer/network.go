package deployer

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/smithy-go"

	"github.com/csakilan/FoundryBackend/errors"
)

// EC2API is the slice of the EC2 client the deployer uses. Narrowed
// for substitution in tests.
type EC2API interface {
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput,
		optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput,
		optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput,
		optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	CreateKeyPair(ctx context.Context, params *ec2.CreateKeyPairInput,
		optFns ...func(*ec2.Options)) (*ec2.CreateKeyPairOutput, error)
}

// RDSAPI is the slice of the RDS client the deployer uses.
type RDSAPI interface {
	DescribeDBSubnetGroups(ctx context.Context, params *rds.DescribeDBSubnetGroupsInput,
		optFns ...func(*rds.Options)) (*rds.DescribeDBSubnetGroupsOutput, error)
	CreateDBSubnetGroup(ctx context.Context, params *rds.CreateDBSubnetGroupInput,
		optFns ...func(*rds.Options)) (*rds.CreateDBSubnetGroupOutput, error)
}

// NetworkResources identifies where a stack lands: the account's
// default VPC, its first subnet, and the VPC's default security group.
type NetworkResources struct {
	VpcID           string
	SubnetID        string
	SecurityGroupID string
}

// discoverNetwork resolves the default-VPC placement used for every
// deployment. An account without a default VPC cannot host Foundry
// stacks, so the misses are fatal rather than retried.
func (d *Deployer) discoverNetwork(ctx context.Context) (*NetworkResources, error) {
	vpcs, err := d.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("isDefault"), Values: []string{"true"}},
		},
	})
	if err != nil {
		return nil, wrapAWS(err, "Deploy", "describe default VPC")
	}
	if len(vpcs.Vpcs) == 0 {
		return nil, errors.WrapFatal(fmt.Errorf("no default VPC found"),
			"Deployer", "Deploy", "discover network")
	}
	vpcID := aws.ToString(vpcs.Vpcs[0].VpcId)

	subnets, err := d.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: vpcFilter(vpcID),
	})
	if err != nil {
		return nil, wrapAWS(err, "Deploy", "describe subnets in "+vpcID)
	}
	if len(subnets.Subnets) == 0 {
		return nil, errors.WrapFatal(fmt.Errorf("no subnets found in VPC %s", vpcID),
			"Deployer", "Deploy", "discover network")
	}
	subnetID := aws.ToString(subnets.Subnets[0].SubnetId)

	groups, err := d.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: append(vpcFilter(vpcID),
			ec2types.Filter{Name: aws.String("group-name"), Values: []string{"default"}}),
	})
	if err != nil {
		return nil, wrapAWS(err, "Deploy", "describe security groups in "+vpcID)
	}
	if len(groups.SecurityGroups) == 0 {
		return nil, errors.WrapFatal(fmt.Errorf("no default security group found in VPC %s", vpcID),
			"Deployer", "Deploy", "discover network")
	}

	return &NetworkResources{
		VpcID:           vpcID,
		SubnetID:        subnetID,
		SecurityGroupID: aws.ToString(groups.SecurityGroups[0].GroupId),
	}, nil
}

// ensureDBSubnetGroup returns the VPC's Foundry DB subnet group,
// creating it over the first subnet of each of two availability zones
// when it does not exist yet. Relational instances refuse single-zone
// placement, so a VPC without two zones of subnets fails here instead
// of mid-provisioning.
func (d *Deployer) ensureDBSubnetGroup(ctx context.Context, vpcID string) (string, error) {
	group := dbSubnetGroupPrefix + vpcID

	_, err := d.rds.DescribeDBSubnetGroups(ctx, &rds.DescribeDBSubnetGroupsInput{
		DBSubnetGroupName: aws.String(group),
	})
	if err == nil {
		d.logger.Debug("using existing DB subnet group", "group", group)
		return group, nil
	}
	var apiErr smithy.APIError
	if !stderrors.As(err, &apiErr) || apiErr.ErrorCode() != "DBSubnetGroupNotFoundFault" {
		return "", wrapAWS(err, "Deploy", "describe DB subnet group "+group)
	}

	subnets, err := d.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: vpcFilter(vpcID),
	})
	if err != nil {
		return "", wrapAWS(err, "Deploy", "describe subnets for DB subnet group")
	}
	if len(subnets.Subnets) < 2 {
		return "", errors.WrapFatal(
			fmt.Errorf("VPC %s must have at least 2 subnets in different AZs for a relational database", vpcID),
			"Deployer", "Deploy", "create DB subnet group")
	}

	// First subnet per availability zone, first two zones win.
	seen := make(map[string]bool)
	var subnetIDs []string
	for _, subnet := range subnets.Subnets {
		az := aws.ToString(subnet.AvailabilityZone)
		if seen[az] {
			continue
		}
		seen[az] = true
		subnetIDs = append(subnetIDs, aws.ToString(subnet.SubnetId))
	}
	if len(subnetIDs) < 2 {
		return "", errors.WrapFatal(
			fmt.Errorf("VPC %s must have subnets in at least 2 different AZs for a relational database", vpcID),
			"Deployer", "Deploy", "create DB subnet group")
	}
	subnetIDs = subnetIDs[:2]

	_, err = d.rds.CreateDBSubnetGroup(ctx, &rds.CreateDBSubnetGroupInput{
		DBSubnetGroupName:        aws.String(group),
		DBSubnetGroupDescription: aws.String("Foundry auto-generated DB subnet group for VPC " + vpcID),
		SubnetIds:                subnetIDs,
		Tags: []rdstypes.Tag{
			{Key: aws.String("Name"), Value: aws.String(group)},
			{Key: aws.String("ManagedBy"), Value: aws.String("Foundry")},
		},
	})
	if err != nil {
		return "", wrapAWS(err, "Deploy", "create DB subnet group "+group)
	}
	d.logger.Info("DB subnet group created", "group", group, "subnets", subnetIDs)
	return group, nil
}

func vpcFilter(vpcID string) []ec2types.Filter {
	return []ec2types.Filter{
		{Name: aws.String("vpc-id"), Values: []string{vpcID}},
	}
}

// wrapAWS classifies backend failures: throttles, timeouts and
// transport errors stay transient, anything the backend rejected
// outright is fatal.
func wrapAWS(err error, method, action string) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		if errors.IsTransient(err) {
			return errors.WrapTransient(err, "Deployer", method, action)
		}
		return errors.WrapFatal(err, "Deployer", method, action)
	}
	return errors.WrapTransient(err, "Deployer", method, action)
}
