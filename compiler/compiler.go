package compiler

import (
	"fmt"

	"github.com/csakilan/FoundryBackend/canvas"
	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/synthesis"
	"github.com/csakilan/FoundryBackend/template"
)

// DefaultDeploymentID substitutes for canvases submitted without a
// build identifier, typically template previews that never deploy.
const DefaultDeploymentID = "foundry-build"

const stackDescription = "Foundry v1 - Single stack for EC2/S3/RDS/DynamoDB"

// Compiler lowers a canvas into one provisioning document. It owns no
// mutable state beyond the synthesizer registry and is safe for
// concurrent use.
type Compiler struct {
	registry *synthesis.Registry
}

// New creates a compiler over the given synthesizer registry.
func New(registry *synthesis.Registry) *Compiler {
	return &Compiler{registry: registry}
}

// Default returns a compiler covering all four node kinds.
func Default() *Compiler {
	return New(synthesis.Defaults())
}

// Compile assembles the full document for a canvas: parameters first,
// then non-compute resources in canvas order, then compute resources
// wired against their resolved dependencies. Compilation is
// all-or-nothing; the first synthesis failure aborts with the
// offending node named and no document is returned.
func (c *Compiler) Compile(cv *canvas.Canvas) (*template.Document, error) {
	deploymentID := cv.DeploymentID
	if deploymentID == "" {
		deploymentID = DefaultDeploymentID
	}

	deps := ResolveDependencies(cv)

	doc := template.New(stackDescription)
	hasRelational := cv.HasKind(canvas.KindRelationalDB)
	if err := declareParameters(doc, hasRelational); err != nil {
		return nil, err
	}

	// Non-compute resources synthesize first so compute wiring can
	// reference them.
	resolved := make(map[string]*synthesis.Result, len(cv.Nodes))
	for i := range cv.Nodes {
		node := &cv.Nodes[i]
		if node.Kind == canvas.KindCompute {
			continue
		}
		res, err := c.synthesizeNode(doc, synthesis.Input{DeploymentID: deploymentID, Node: node})
		if err != nil {
			return nil, err
		}
		resolved[node.ID] = res
	}

	for i := range cv.Nodes {
		node := &cv.Nodes[i]
		if node.Kind != canvas.KindCompute {
			continue
		}
		env, grant := BindAccess(deps[node.ID], resolved)
		_, err := c.synthesizeNode(doc, synthesis.Input{
			DeploymentID: deploymentID,
			Node:         node,
			Env:          env,
			Grant:        grant,
		})
		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func (c *Compiler) synthesizeNode(doc *template.Document, in synthesis.Input) (*synthesis.Result, error) {
	synth, err := c.registry.For(in.Node.Kind)
	if err != nil {
		return nil, errors.Wrap(err, "Compiler", "Compile", fmt.Sprintf("synthesize node %s", in.Node.ID))
	}
	res, err := synth.Synthesize(in)
	if err != nil {
		return nil, errors.Wrap(err, "Compiler", "Compile", fmt.Sprintf("synthesize node %s", in.Node.ID))
	}
	for _, nr := range res.Resources {
		if err := doc.AddResource(nr.LogicalID, nr.Resource); err != nil {
			return nil, errors.Wrap(err, "Compiler", "Compile", fmt.Sprintf("register node %s", in.Node.ID))
		}
	}
	if err := doc.AddOutputs(res.Outputs); err != nil {
		return nil, errors.Wrap(err, "Compiler", "Compile", fmt.Sprintf("register node %s", in.Node.ID))
	}
	return res, nil
}

// declareParameters sets up the document's input slots. Base networking
// parameters are always present; the subnet-group slot exists only when
// a relational database does. VpcId stays declared although resources
// consume subnet and security group directly, so stacks created by
// earlier revisions keep updating cleanly.
func declareParameters(doc *template.Document, hasRelational bool) error {
	groupedParams := []string{synthesis.ParamSubnetID, synthesis.ParamSecurityGroup}
	if hasRelational {
		groupedParams = append(groupedParams, synthesis.ParamDBSubnetGroup)
	}
	doc.Metadata = map[string]any{
		"AWS::CloudFormation::Interface": map[string]any{
			"ParameterGroups": []map[string]any{
				{
					"Label":      map[string]any{"default": "Networking"},
					"Parameters": groupedParams,
				},
			},
			"ParameterLabels": map[string]any{
				synthesis.ParamSubnetID:      map[string]any{"default": "Target Subnet"},
				synthesis.ParamSecurityGroup: map[string]any{"default": "Instance Security Group"},
				synthesis.ParamDBSubnetGroup: map[string]any{"default": "DB Subnet Group"},
			},
		},
	}

	params := []struct {
		name  string
		param template.Parameter
	}{
		{synthesis.ParamVpcID, template.Parameter{Type: "AWS::EC2::VPC::Id", Description: "(Reserved for future use)"}},
		{synthesis.ParamSubnetID, template.Parameter{Type: "AWS::EC2::Subnet::Id", Description: "Target subnet"}},
		{synthesis.ParamSecurityGroup, template.Parameter{Type: "AWS::EC2::SecurityGroup::Id", Description: "Security group"}},
	}
	if hasRelational {
		params = append(params, struct {
			name  string
			param template.Parameter
		}{synthesis.ParamDBSubnetGroup, template.Parameter{
			Type:        "String",
			Description: "DB Subnet Group for RDS instances (must span at least 2 AZs)",
		}})
	}

	for _, p := range params {
		if err := doc.AddParameter(p.name, p.param); err != nil {
			return err
		}
	}
	return nil
}
