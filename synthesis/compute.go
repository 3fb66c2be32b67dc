package synthesis

import (
	"fmt"
	"strings"

	"github.com/csakilan/FoundryBackend/canvas"
	"github.com/csakilan/FoundryBackend/naming"
	"github.com/csakilan/FoundryBackend/template"
)

// imageAliases maps the catalog names the canvas editor offers onto
// provider parameter-store paths that always point at the current
// image. Resolved references render as {{resolve:ssm:...}} so the
// engine looks them up at apply time.
var imageAliases = map[string]string{
	"Amazon Linux": "/aws/service/ami-amazon-linux-latest/al2023-ami-kernel-default-x86_64",
	"Ubuntu":       "/aws/service/canonical/ubuntu/server/22.04/stable/current/amd64/hvm/ebs-gp2/ami-id",
	"Windows":      "/aws/service/ami-windows-latest/Windows_Server-2022-English-Full-Base",
}

// ResolveImage maps a catalog alias to its resolvable reference. Values
// already in native form ("ami-..." or a {{resolve expression) pass
// through, as do unrecognized aliases; native-format validation happens
// engine-side.
func ResolveImage(image string) string {
	if strings.HasPrefix(image, "ami-") || strings.HasPrefix(image, "{{resolve") {
		return image
	}
	if path, ok := imageAliases[image]; ok {
		return fmt.Sprintf("{{resolve:ssm:%s}}", path)
	}
	return image
}

// Root volume defaults; a node's storage attribute overrides them.
const (
	defaultRootDevice     = "/dev/xvda"
	defaultRootVolumeSize = 20
	defaultRootVolumeType = "gp3"
)

// Compute synthesizes a virtual machine instance plus, when the access
// binder attached a non-empty grant, the role and instance profile that
// carry its policies. Boot-time configuration lands in the instance
// user data as shell exports, substituted by the engine through Sub.
type Compute struct{}

// Kind implements Synthesizer.
func (s *Compute) Kind() canvas.Kind { return canvas.KindCompute }

// Synthesize implements Synthesizer.
func (s *Compute) Synthesize(in Input) (*Result, error) {
	node := in.Node

	name, err := node.Require("name")
	if err != nil {
		return nil, err
	}
	imageID, err := node.Require("imageId")
	if err != nil {
		return nil, err
	}
	instanceType, err := node.Require("instanceType")
	if err != nil {
		return nil, err
	}

	lid := naming.LogicalID("EC2", node.ID)

	props := map[string]any{
		"ImageId":             ResolveImage(imageID),
		"InstanceType":        instanceType,
		"SubnetId":            template.Ref(ParamSubnetID),
		"SecurityGroupIds":    []any{template.Ref(ParamSecurityGroup)},
		"BlockDeviceMappings": blockDevices(node),
		"Tags": []map[string]any{
			{"Key": "Name", "Value": name},
		},
	}

	result := &Result{
		LogicalID:    lid,
		PhysicalName: name,
	}

	if !in.Grant.Empty() {
		roleLid := lid + "Role"
		profileLid := roleLid + "InstanceProfile"
		result.Resources = append(result.Resources,
			NamedResource{LogicalID: roleLid, Resource: roleResource(roleLid, in.Grant)},
			NamedResource{LogicalID: profileLid, Resource: &template.Resource{
				Type:       "AWS::IAM::InstanceProfile",
				Properties: map[string]any{"Roles": []any{template.Ref(roleLid)}},
			}},
		)
		props["IamInstanceProfile"] = template.Ref(profileLid)
	}

	if keyName, ok := node.StringAttr("keyName"); ok && keyName != "" {
		props["KeyName"] = keyName
	}

	userData, _ := node.StringAttr("userData")
	if script := bootScript(in.Env, userData); script != "" {
		props["UserData"] = template.Base64(template.Sub(script))
	}

	result.Resources = append(result.Resources, NamedResource{
		LogicalID: lid,
		Resource:  &template.Resource{Type: "AWS::EC2::Instance", Properties: props},
	})
	result.Outputs = []template.Output{
		{Name: lid + "Id", Value: template.Ref(lid)},
		{Name: lid + "PrivateIp", Value: template.GetAtt(lid, "PrivateIp")},
		{Name: lid + "PublicIp", Value: template.GetAtt(lid, "PublicIp")},
		{Name: lid + "NameTag", Value: name},
	}

	return result, nil
}

// blockDevices renders the root volume mapping with any per-node
// storage overrides applied over the locked defaults.
func blockDevices(node *canvas.Node) []map[string]any {
	size := defaultRootVolumeSize
	volumeType := defaultRootVolumeType
	deleteOnTermination := true

	if storage, ok := node.MapAttr("storage"); ok {
		override := &canvas.Node{ID: node.ID, Data: storage}
		if v, ok := override.IntAttr("rootVolumeSizeGiB"); ok {
			size = v
		}
		if v, ok := override.StringAttr("rootVolumeType"); ok && v != "" {
			volumeType = v
		}
		if v, ok := override.BoolAttr("deleteOnTermination"); ok {
			deleteOnTermination = v
		}
	}

	return []map[string]any{
		{
			"DeviceName": defaultRootDevice,
			"Ebs": map[string]any{
				"VolumeSize":          size,
				"VolumeType":          volumeType,
				"DeleteOnTermination": deleteOnTermination,
			},
		},
	}
}

// bootScript combines the injected environment exports with the user's
// own script. Exports are written twice: into the current shell and
// appended to /etc/environment so they survive re-login. The result is
// a Sub template; ${...} fragments in env values resolve to physical
// names and endpoints at apply time.
func bootScript(env []EnvVar, userData string) string {
	if len(env) == 0 {
		return userData
	}

	lines := make([]string, 0, len(env)*2)
	for _, e := range env {
		lines = append(lines,
			fmt.Sprintf("export %s=\"%s\"", e.Name, e.Value),
			fmt.Sprintf("echo \"export %s=\\\"%s\\\"\" >> /etc/environment", e.Name, e.Value),
		)
	}

	return fmt.Sprintf(`#!/bin/bash
# Auto-generated environment variables for service connections
%s

# User-provided UserData
%s
`, strings.Join(lines, "\n"), userData)
}

// roleResource renders the combined least-privilege role for one
// compute node: one named policy per dependency kind, assumable by the
// instance service.
func roleResource(roleLid string, grant *AccessGrant) *template.Resource {
	policies := make([]map[string]any, 0, len(grant.Policies))
	for _, p := range grant.Policies {
		policies = append(policies, map[string]any{
			"PolicyName": p.Name,
			"PolicyDocument": map[string]any{
				"Version": "2012-10-17",
				"Statement": []map[string]any{
					{
						"Effect":   "Allow",
						"Action":   p.Actions,
						"Resource": p.Resources,
					},
				},
			},
		})
	}

	return &template.Resource{
		Type: "AWS::IAM::Role",
		Properties: map[string]any{
			"AssumeRolePolicyDocument": map[string]any{
				"Version": "2012-10-17",
				"Statement": []map[string]any{
					{
						"Effect":    "Allow",
						"Principal": map[string]any{"Service": "ec2.amazonaws.com"},
						"Action":    "sts:AssumeRole",
					},
				},
			},
			"Policies": policies,
			"Tags": []map[string]any{
				{"Key": "Name", "Value": roleLid},
				{"Key": "ManagedBy", "Value": managedByTag},
			},
		},
	}
}
