package deployer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/template"
)

func TestKeyPairName(t *testing.T) {
	tests := []struct {
		name         string
		deploymentID string
		nodeID       string
		instance     string
		want         string
	}{
		{
			name:         "plain node id",
			deploymentID: "ab12cd34",
			nodeID:       "dndnode_0",
			instance:     "web server",
			want:         "ab12cd34-dndnod-web-server-key",
		},
		{
			name:         "separators stripped from node id",
			deploymentID: "ab12cd34",
			nodeID:       "a-b:c-def",
			instance:     "api",
			want:         "ab12cd34-abc-api-key",
		},
		{
			name:         "short node id",
			deploymentID: "build42",
			nodeID:       "n1",
			instance:     "worker",
			want:         "build42-n1-worker-key",
		},
		{
			name:         "colons in instance name",
			deploymentID: "ab12cd34",
			nodeID:       "node-9",
			instance:     "db:primary",
			want:         "ab12cd34-node9-db-primary-key",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KeyPairName(tc.deploymentID, tc.nodeID, tc.instance))
		})
	}
}

func TestKeyPairNameCapsLength(t *testing.T) {
	long := KeyPairName("ab12cd34", "dndnode_0", strings.Repeat("x", 300))
	assert.Len(t, long, 255)
}

func TestInjectKeyNamesMissingResource(t *testing.T) {
	doc := template.New("test")
	err := injectKeyNames(doc, []KeyPair{{Name: "ab12cd34-dndnod-web-key", NodeID: "dndnode_0"}})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "EC2dndnode0")
}
