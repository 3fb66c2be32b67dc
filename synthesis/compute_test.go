package synthesis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csakilan/FoundryBackend/canvas"
	pkgerrors "github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/template"
)

func computeNode(data map[string]any) *canvas.Node {
	return &canvas.Node{ID: "web1", Kind: canvas.KindCompute, Data: data}
}

func minimalComputeData() map[string]any {
	return map[string]any{
		"name":         "web-server",
		"imageId":      "Amazon Linux",
		"instanceType": "t2.micro",
	}
}

func TestResolveImage(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Amazon Linux", "{{resolve:ssm:/aws/service/ami-amazon-linux-latest/al2023-ami-kernel-default-x86_64}}"},
		{"Ubuntu", "{{resolve:ssm:/aws/service/canonical/ubuntu/server/22.04/stable/current/amd64/hvm/ebs-gp2/ami-id}}"},
		{"Windows", "{{resolve:ssm:/aws/service/ami-windows-latest/Windows_Server-2022-English-Full-Base}}"},
		{"ami-0123456789abcdef0", "ami-0123456789abcdef0"},
		{"{{resolve:ssm:/custom/path}}", "{{resolve:ssm:/custom/path}}"},
		{"macOS", "macOS"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveImage(tt.input), "input %q", tt.input)
	}
}

func TestComputeSynthesize(t *testing.T) {
	res, err := (&Compute{}).Synthesize(Input{DeploymentID: "demo", Node: computeNode(minimalComputeData())})
	require.NoError(t, err)

	assert.Equal(t, "EC2web1", res.LogicalID)
	assert.Equal(t, "web-server", res.PhysicalName)
	require.Len(t, res.Resources, 1, "no grant means no role resources")

	instance := res.Resources[0].Resource
	assert.Equal(t, "AWS::EC2::Instance", instance.Type)
	assert.Equal(t, "t2.micro", instance.Properties["InstanceType"])
	assert.True(t, strings.HasPrefix(instance.Properties["ImageId"].(string), "{{resolve:ssm:"))
	assert.Equal(t, map[string]any{"Ref": "SubnetId"}, instance.Properties["SubnetId"])
	assert.Equal(t, []any{map[string]any{"Ref": "SecurityGroupId"}}, instance.Properties["SecurityGroupIds"])

	_, hasProfile := instance.Properties["IamInstanceProfile"]
	assert.False(t, hasProfile)
	_, hasUserData := instance.Properties["UserData"]
	assert.False(t, hasUserData)
	_, hasKey := instance.Properties["KeyName"]
	assert.False(t, hasKey)

	tags := instance.Properties["Tags"].([]map[string]any)
	require.Len(t, tags, 1)
	assert.Equal(t, "web-server", tags[0]["Value"])
}

func TestComputeDefaultBlockDevice(t *testing.T) {
	res, err := (&Compute{}).Synthesize(Input{DeploymentID: "demo", Node: computeNode(minimalComputeData())})
	require.NoError(t, err)

	devices := res.Resources[0].Resource.Properties["BlockDeviceMappings"].([]map[string]any)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/xvda", devices[0]["DeviceName"])

	ebs := devices[0]["Ebs"].(map[string]any)
	assert.Equal(t, 20, ebs["VolumeSize"])
	assert.Equal(t, "gp3", ebs["VolumeType"])
	assert.Equal(t, true, ebs["DeleteOnTermination"])
}

func TestComputeStorageOverrides(t *testing.T) {
	data := minimalComputeData()
	data["storage"] = map[string]any{
		"rootVolumeSizeGiB":   float64(100),
		"rootVolumeType":      "io2",
		"deleteOnTermination": false,
	}

	res, err := (&Compute{}).Synthesize(Input{DeploymentID: "demo", Node: computeNode(data)})
	require.NoError(t, err)

	ebs := res.Resources[0].Resource.Properties["BlockDeviceMappings"].([]map[string]any)[0]["Ebs"].(map[string]any)
	assert.Equal(t, 100, ebs["VolumeSize"])
	assert.Equal(t, "io2", ebs["VolumeType"])
	assert.Equal(t, false, ebs["DeleteOnTermination"])
}

func TestComputeOptionalKeyName(t *testing.T) {
	data := minimalComputeData()
	data["keyName"] = "deploy-key"

	res, err := (&Compute{}).Synthesize(Input{DeploymentID: "demo", Node: computeNode(data)})
	require.NoError(t, err)

	assert.Equal(t, "deploy-key", res.Resources[0].Resource.Properties["KeyName"])
}

func TestComputeUserDataWithoutEnv(t *testing.T) {
	data := minimalComputeData()
	data["userData"] = "yum install -y nginx"

	res, err := (&Compute{}).Synthesize(Input{DeploymentID: "demo", Node: computeNode(data)})
	require.NoError(t, err)

	userData := res.Resources[0].Resource.Properties["UserData"].(map[string]any)
	sub := userData["Fn::Base64"].(map[string]any)
	assert.Equal(t, "yum install -y nginx", sub["Fn::Sub"])
}

func TestComputeEnvInjection(t *testing.T) {
	data := minimalComputeData()
	data["userData"] = "systemctl start app"

	env := []EnvVar{
		{Name: "S3_BUCKET_NAME", Value: "${S3store1}"},
		{Name: "DB_HOST", Value: "${RDSdb1.Endpoint.Address}"},
		{Name: "DB_NAME", Value: "appdb"},
	}

	res, err := (&Compute{}).Synthesize(Input{DeploymentID: "demo", Node: computeNode(data), Env: env})
	require.NoError(t, err)

	userData := res.Resources[0].Resource.Properties["UserData"].(map[string]any)
	script := userData["Fn::Base64"].(map[string]any)["Fn::Sub"].(string)

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n"))
	assert.Contains(t, script, `export S3_BUCKET_NAME="${S3store1}"`)
	assert.Contains(t, script, `echo "export S3_BUCKET_NAME=\"${S3store1}\"" >> /etc/environment`)
	assert.Contains(t, script, `export DB_HOST="${RDSdb1.Endpoint.Address}"`)
	assert.Contains(t, script, `export DB_NAME="appdb"`)
	assert.Contains(t, script, "# User-provided UserData\nsystemctl start app")

	assert.Less(t, strings.Index(script, "S3_BUCKET_NAME"), strings.Index(script, "DB_HOST"),
		"env exports keep binder order")
}

func TestComputeGrantProducesRoleAndProfile(t *testing.T) {
	grant := &AccessGrant{Policies: []PolicyGrant{
		{
			Name:      "S3AccessPolicy",
			Actions:   []string{"s3:GetObject", "s3:PutObject", "s3:DeleteObject", "s3:ListBucket"},
			Resources: []any{template.GetAtt("S3store1", "Arn")},
		},
	}}

	res, err := (&Compute{}).Synthesize(Input{DeploymentID: "demo", Node: computeNode(minimalComputeData()), Grant: grant})
	require.NoError(t, err)

	require.Len(t, res.Resources, 3)
	assert.Equal(t, "EC2web1Role", res.Resources[0].LogicalID)
	assert.Equal(t, "EC2web1RoleInstanceProfile", res.Resources[1].LogicalID)
	assert.Equal(t, "EC2web1", res.Resources[2].LogicalID)

	role := res.Resources[0].Resource
	assert.Equal(t, "AWS::IAM::Role", role.Type)

	assume := role.Properties["AssumeRolePolicyDocument"].(map[string]any)
	statements := assume["Statement"].([]map[string]any)
	assert.Equal(t, map[string]any{"Service": "ec2.amazonaws.com"}, statements[0]["Principal"])
	assert.Equal(t, "sts:AssumeRole", statements[0]["Action"])

	policies := role.Properties["Policies"].([]map[string]any)
	require.Len(t, policies, 1)
	assert.Equal(t, "S3AccessPolicy", policies[0]["PolicyName"])

	profile := res.Resources[1].Resource
	assert.Equal(t, "AWS::IAM::InstanceProfile", profile.Type)
	assert.Equal(t, []any{map[string]any{"Ref": "EC2web1Role"}}, profile.Properties["Roles"])

	instance := res.Resources[2].Resource
	assert.Equal(t, map[string]any{"Ref": "EC2web1RoleInstanceProfile"}, instance.Properties["IamInstanceProfile"])
}

func TestComputeOutputs(t *testing.T) {
	res, err := (&Compute{}).Synthesize(Input{DeploymentID: "demo", Node: computeNode(minimalComputeData())})
	require.NoError(t, err)

	require.Len(t, res.Outputs, 4)
	assert.Equal(t, "EC2web1Id", res.Outputs[0].Name)
	assert.Equal(t, map[string]any{"Ref": "EC2web1"}, res.Outputs[0].Value)
	assert.Equal(t, "EC2web1PrivateIp", res.Outputs[1].Name)
	assert.Equal(t, "EC2web1PublicIp", res.Outputs[2].Name)
	assert.Equal(t, "EC2web1NameTag", res.Outputs[3].Name)
	assert.Equal(t, "web-server", res.Outputs[3].Value)
}

func TestComputeMissingAttributes(t *testing.T) {
	for _, field := range []string{"name", "imageId", "instanceType"} {
		t.Run(field, func(t *testing.T) {
			data := minimalComputeData()
			delete(data, field)

			_, err := (&Compute{}).Synthesize(Input{DeploymentID: "demo", Node: computeNode(data)})
			require.Error(t, err)
			assert.ErrorIs(t, err, pkgerrors.ErrMissingAttribute)
			assert.Contains(t, err.Error(), field)
		})
	}
}
