package synthesis

import (
	"github.com/csakilan/FoundryBackend/canvas"
	"github.com/csakilan/FoundryBackend/naming"
	"github.com/csakilan/FoundryBackend/template"
)

// ObjectStore synthesizes a storage bucket from a node's optional
// bucketName label. Every security-relevant property is hardcoded:
// server-side encryption on, all public access blocked, ACLs disabled.
type ObjectStore struct{}

// Kind implements Synthesizer.
func (s *ObjectStore) Kind() canvas.Kind { return canvas.KindObjectStore }

// Synthesize implements Synthesizer.
func (s *ObjectStore) Synthesize(in Input) (*Result, error) {
	node := in.Node
	label, _ := node.StringAttr("bucketName")

	name, err := naming.PhysicalName(in.DeploymentID, node.ID, label, naming.Bucket)
	if err != nil {
		return nil, err
	}
	originalName := label
	if originalName == "" {
		originalName = naming.Bucket.Fallback
	}

	lid := naming.LogicalID("S3", node.ID)

	resource := &template.Resource{
		Type: "AWS::S3::Bucket",
		Properties: map[string]any{
			"BucketName": name,
			"Tags": []map[string]any{
				{"Key": "Name", "Value": name},
				{"Key": "OriginalName", "Value": originalName},
				{"Key": "ManagedBy", "Value": managedByTag},
				{"Key": "BuildId", "Value": in.DeploymentID},
			},
			"BucketEncryption": map[string]any{
				"ServerSideEncryptionConfiguration": []map[string]any{
					{"ServerSideEncryptionByDefault": map[string]any{"SSEAlgorithm": "AES256"}},
				},
			},
			"PublicAccessBlockConfiguration": map[string]any{
				"BlockPublicAcls":       true,
				"BlockPublicPolicy":     true,
				"IgnorePublicAcls":      true,
				"RestrictPublicBuckets": true,
			},
			"OwnershipControls": map[string]any{
				"Rules": []map[string]any{
					{"ObjectOwnership": "BucketOwnerEnforced"},
				},
			},
		},
	}

	return &Result{
		LogicalID:    lid,
		PhysicalName: name,
		Resources:    []NamedResource{{LogicalID: lid, Resource: resource}},
		Outputs: []template.Output{
			{Name: lid + "Name", Description: "Generated unique bucket name", Value: template.Ref(lid)},
			{Name: lid + "OriginalName", Description: "User's original bucket name", Value: originalName},
			{Name: lid + "Arn", Description: "ARN of the S3 bucket", Value: template.GetAtt(lid, "Arn")},
			{Name: lid + "DomainName", Description: "Domain name of the S3 bucket", Value: template.GetAtt(lid, "DomainName")},
		},
		Bindings: Bindings{
			NameSub: nameSub(lid),
			ArnRef:  template.GetAtt(lid, "Arn"),
		},
	}, nil
}
