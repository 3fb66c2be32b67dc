package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{
			name:    "empty path",
			path:    "",
			wantErr: "empty config path",
		},
		{
			name:    "non-JSON file",
			path:    "config.yaml",
			wantErr: "only JSON config files allowed",
		},
		{
			name:    "relative traversal",
			path:    "../../etc/passwd.json",
			wantErr: "path traversal not allowed",
		},
		{
			name: "valid relative path",
			path: "config.json",
		},
		{
			name:    "path too long",
			path:    strings.Repeat("a", maxPathLen+1) + ".json",
			wantErr: "path too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSafeReadFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := safeReadFile(filepath.Join(tmpDir, "missing.json"))
		assert.Error(t, err)
	})

	t.Run("directory is rejected", func(t *testing.T) {
		dir := filepath.Join(tmpDir, "dir.json")
		require.NoError(t, os.Mkdir(dir, 0755))

		_, err := safeReadFile(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a regular file")
	})

	t.Run("regular file reads", func(t *testing.T) {
		path := filepath.Join(tmpDir, "ok.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"server":{}}`), 0644))

		data, err := safeReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, `{"server":{}}`, string(data))
	})
}

func TestValidateEnvVar(t *testing.T) {
	assert.NoError(t, validateEnvVar("FOUNDRY_AWS_REGION", ""))
	assert.NoError(t, validateEnvVar("FOUNDRY_AWS_REGION", "us-east-1"))

	err := validateEnvVar("FOUNDRY_AWS_REGION", strings.Repeat("x", maxEnvVarLen+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too long")

	err = validateEnvVar("FOUNDRY_AWS_REGION", "bad\x00value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null byte")
}

func TestValidateJSONDepth(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name: "flat object",
			data: `{"a": 1}`,
		},
		{
			name: "nested within limit",
			data: `{"a": {"b": {"c": [1, 2, 3]}}}`,
		},
		{
			name: "brackets inside strings ignored",
			data: `{"a": "{[{["}`,
		},
		{
			name:    "too deep",
			data:    strings.Repeat(`{"a":`, maxJSONDepth+1) + "1" + strings.Repeat("}", maxJSONDepth+1),
			wantErr: "JSON nesting too deep",
		},
		{
			name:    "unbalanced close",
			data:    `{"a": 1}}`,
			wantErr: "unbalanced brackets",
		},
		{
			name:    "unclosed open",
			data:    `{"a": {`,
			wantErr: "unclosed brackets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJSONDepth([]byte(tt.data))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
