package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/csakilan/FoundryBackend/errors"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		policy Policy
		want   string
	}{
		{"simple lowercase", "assets", Bucket, "assets"},
		{"case folded", "MyAppStorage", Bucket, "myappstorage"},
		{"spaces to hyphens", "my app storage", Bucket, "my-app-storage"},
		{"punctuation to hyphens", "user@data!files", Bucket, "user-data-files"},
		{"runs collapsed", "a__--..b", Bucket, "a-b"},
		{"edges trimmed", "--stuff--", Bucket, "stuff"},
		{"only invalid chars", "@@@", Bucket, ""},
		{"empty", "", Bucket, ""},
		{"case preserved for tables", "UserSessions", Table, "UserSessions"},
		{"underscores mapped for tables", "user_sessions", Table, "user-sessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input, tt.policy))
		})
	}
}

func TestShortNodeID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a1b2c3d4-e5f6-7890", "a1b2c3"},
		{"dndnode_0", "dndnod"},
		{"a-b:c_d", "abcd"},
		{"ab", "ab"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ShortNodeID(tt.input), "input %q", tt.input)
	}
}

func TestPhysicalName(t *testing.T) {
	name, err := PhysicalName("demo-build", "a1b2c3d4-e5f6", "My Assets", Bucket)
	require.NoError(t, err)
	assert.Equal(t, "demo-build-a1b2c3-my-assets", name)
}

func TestPhysicalNameIdempotent(t *testing.T) {
	first, err := PhysicalName("foundry-1a2b3c4d", "node-9", "uploads", Bucket)
	require.NoError(t, err)
	second, err := PhysicalName("foundry-1a2b3c4d", "node-9", "uploads", Bucket)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPhysicalNameDistinctNodes(t *testing.T) {
	a, err := PhysicalName("build", "a1b2c3-x", "data", Bucket)
	require.NoError(t, err)
	b, err := PhysicalName("build", "f9e8d7-x", "data", Bucket)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPhysicalNameFallbackLabel(t *testing.T) {
	name, err := PhysicalName("build", "a1b2c3", "", Bucket)
	require.NoError(t, err)
	assert.Equal(t, "build-a1b2c3-bucket", name)

	name, err = PhysicalName("build", "a1b2c3", "???", DBInstance)
	require.NoError(t, err)
	assert.Equal(t, "build-a1b2c3-db", name)
}

func TestPhysicalNameTruncatesLabelOnly(t *testing.T) {
	longLabel := strings.Repeat("x", 80) + "-tail"
	name, err := PhysicalName("demo-build", "a1b2c3", longLabel, Bucket)
	require.NoError(t, err)

	assert.Len(t, name, Bucket.MaxLen)
	assert.True(t, strings.HasPrefix(name, "demo-build-a1b2c3-"), "prefix segments survive truncation, got %q", name)
	assert.False(t, strings.HasSuffix(name, "-"), "no trailing separator after truncation")
}

func TestPhysicalNameDropsLabelWithoutRoom(t *testing.T) {
	dep := strings.Repeat("d", 55)
	name, err := PhysicalName(dep, "a1b2c3", "uploads", Bucket)
	require.NoError(t, err)
	assert.Equal(t, dep+"-a1b2c3", name)
}

func TestPhysicalNameSanitizesDeploymentID(t *testing.T) {
	name, err := PhysicalName("Demo Build!", "n1", "x", Bucket)
	require.NoError(t, err)
	assert.Equal(t, "demo-build-n1-x", name)
}

func TestPhysicalNameEmptyDeploymentID(t *testing.T) {
	_, err := PhysicalName("", "n1", "x", Bucket)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyName)
	assert.True(t, pkgerrors.IsInvalid(err))

	_, err = PhysicalName("@@@", "n1", "x", Bucket)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyName)
}

func TestPhysicalNamePrefixOverLimit(t *testing.T) {
	_, err := PhysicalName(strings.Repeat("d", 70), "a1b2c3", "x", Bucket)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))
}

func TestLogicalID(t *testing.T) {
	tests := []struct {
		prefix string
		nodeID string
		want   string
	}{
		{"S3", "dndnode_0", "S3dndnode0"},
		{"EC2", "a1b2-c3:d4_e5", "EC2a1b2c3d4e5"},
		{"DynamoDB", "node.7", "DynamoDBnode7"},
		{"RDS", "db", "RDSdb"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LogicalID(tt.prefix, tt.nodeID))
	}
}

func TestPolicyLimits(t *testing.T) {
	assert.Equal(t, 63, Bucket.MaxLen)
	assert.Equal(t, 63, DBInstance.MaxLen)
	assert.Equal(t, 255, Table.MaxLen)
	assert.True(t, Bucket.Lower)
	assert.False(t, Table.Lower)
}
