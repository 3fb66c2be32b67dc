package synthesis

import (
	"github.com/csakilan/FoundryBackend/canvas"
	"github.com/csakilan/FoundryBackend/naming"
	"github.com/csakilan/FoundryBackend/template"
)

// KeyValueTable synthesizes an on-demand key-value table. The node
// declares the key schema (partition key required, sort key optional);
// billing mode, encryption and point-in-time recovery are hardcoded.
type KeyValueTable struct{}

// Kind implements Synthesizer.
func (s *KeyValueTable) Kind() canvas.Kind { return canvas.KindKeyValueTable }

// Synthesize implements Synthesizer.
func (s *KeyValueTable) Synthesize(in Input) (*Result, error) {
	node := in.Node

	tableName, err := node.Require("tableName")
	if err != nil {
		return nil, err
	}
	partitionKey, err := node.Require("partitionKey")
	if err != nil {
		return nil, err
	}
	partitionKeyType, err := node.Require("partitionKeyType")
	if err != nil {
		return nil, err
	}

	name, err := naming.PhysicalName(in.DeploymentID, node.ID, tableName, naming.Table)
	if err != nil {
		return nil, err
	}

	lid := naming.LogicalID("DynamoDB", node.ID)

	attributes := []map[string]any{
		{"AttributeName": partitionKey, "AttributeType": partitionKeyType},
	}
	keySchema := []map[string]any{
		{"AttributeName": partitionKey, "KeyType": "HASH"},
	}

	// Sort key is optional; a blank form field means none.
	if sortKey, ok := node.StringAttr("sortKey"); ok && sortKey != "" {
		sortKeyType, err := node.Require("sortKeyType")
		if err != nil {
			return nil, err
		}
		attributes = append(attributes, map[string]any{
			"AttributeName": sortKey, "AttributeType": sortKeyType,
		})
		keySchema = append(keySchema, map[string]any{
			"AttributeName": sortKey, "KeyType": "RANGE",
		})
	}

	resource := &template.Resource{
		Type: "AWS::DynamoDB::Table",
		Properties: map[string]any{
			"TableName":            name,
			"AttributeDefinitions": attributes,
			"KeySchema":            keySchema,
			"BillingMode":          "PAY_PER_REQUEST",
			"SSESpecification": map[string]any{
				"SSEEnabled": true,
			},
			"PointInTimeRecoverySpecification": map[string]any{
				"PointInTimeRecoveryEnabled": true,
			},
			"DeletionProtectionEnabled": false,
			"Tags": []map[string]any{
				{"Key": "Name", "Value": name},
				{"Key": "OriginalName", "Value": tableName},
				{"Key": "ManagedBy", "Value": managedByTag},
				{"Key": "BuildId", "Value": in.DeploymentID},
			},
		},
	}

	return &Result{
		LogicalID:    lid,
		PhysicalName: name,
		Resources:    []NamedResource{{LogicalID: lid, Resource: resource}},
		Outputs: []template.Output{
			{Name: lid + "Name", Description: "Generated unique table name", Value: template.Ref(lid)},
			{Name: lid + "OriginalName", Description: "User's original table name", Value: tableName},
			{Name: lid + "Arn", Description: "ARN of the DynamoDB table", Value: template.GetAtt(lid, "Arn")},
		},
		Bindings: Bindings{
			NameSub: nameSub(lid),
			ArnRef:  template.GetAtt(lid, "Arn"),
		},
	}, nil
}
