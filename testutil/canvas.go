package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/csakilan/FoundryBackend/canvas"
)

// ComputeNode returns a compute node carrying the attributes compute
// synthesis requires.
func ComputeNode(id, name string) canvas.Node {
	return canvas.Node{
		ID:      id,
		Kind:    canvas.KindCompute,
		RawType: "EC2",
		Data: map[string]any{
			"name":         name,
			"imageId":      "Amazon Linux",
			"instanceType": "t2.micro",
		},
	}
}

// BucketNode returns an object store node with the given bucket label.
func BucketNode(id, bucketName string) canvas.Node {
	return canvas.Node{
		ID:      id,
		Kind:    canvas.KindObjectStore,
		RawType: "S3",
		Data:    map[string]any{"bucketName": bucketName},
	}
}

// TableNode returns a key-value table node with a string partition key.
func TableNode(id, tableName string) canvas.Node {
	return canvas.Node{
		ID:      id,
		Kind:    canvas.KindKeyValueTable,
		RawType: "DynamoDB",
		Data: map[string]any{
			"tableName":        tableName,
			"partitionKey":     "id",
			"partitionKeyType": "S",
		},
	}
}

// DatabaseNode returns a relational database node carrying the full
// credential set database synthesis requires.
func DatabaseNode(id, dbName string) canvas.Node {
	return canvas.Node{
		ID:      id,
		Kind:    canvas.KindRelationalDB,
		RawType: "RDS",
		Data: map[string]any{
			"dbName":             dbName,
			"engine":             "postgres",
			"masterUsername":     "dbadmin",
			"masterUserPassword": "change-me-123",
		},
	}
}

// Edge returns a "needs access to" edge from source onto target.
func Edge(source, target string) canvas.Edge {
	return canvas.Edge{Source: source, Target: target}
}

// Canvas assembles a validated canvas from the given nodes and edges.
func Canvas(t *testing.T, deploymentID string, nodes []canvas.Node, edges ...canvas.Edge) *canvas.Canvas {
	t.Helper()
	cv, err := canvas.New(deploymentID, nodes, edges)
	require.NoError(t, err)
	return cv
}

// WireJSON renders nodes and edges in the submission shape the canvas
// editor posts, for driving HTTP handlers end to end.
func WireJSON(t *testing.T, deploymentID string, nodes []canvas.Node, edges ...canvas.Edge) string {
	t.Helper()

	type wireNode struct {
		ID   string         `json:"id"`
		Kind string         `json:"kind"`
		Data map[string]any `json:"data"`
	}
	wire := struct {
		BuildID string        `json:"buildId,omitempty"`
		Nodes   []wireNode    `json:"nodes"`
		Edges   []canvas.Edge `json:"edges,omitempty"`
	}{BuildID: deploymentID, Edges: edges}

	for _, n := range nodes {
		kind := n.RawType
		if kind == "" {
			kind = n.Kind.String()
		}
		wire.Nodes = append(wire.Nodes, wireNode{ID: n.ID, Kind: kind, Data: n.Data})
	}

	data, err := json.Marshal(wire)
	require.NoError(t, err)
	return string(data)
}
