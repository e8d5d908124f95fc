package resourcefactory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "factory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadFactoryParams_ValidDocument(t *testing.T) {
	path := writeConfigFile(t, `
uri: file:///var/lib/assets
max_resources: 2048
stream_buffer_size: 1048576
reload_support: true
http_server: true
control_port: 9001
`)
	params, err := LoadFactoryParams(path)
	require.NoError(t, err)
	assert.Equal(t, "file:///var/lib/assets", params.URI)
	assert.Equal(t, 2048, params.MaxResources)
	assert.Equal(t, 9001, params.ControlPort)
	assert.NotZero(t, params.Flags&ReloadSupport)
	assert.NotZero(t, params.Flags&HTTPServer)
}

func TestLoadFactoryParams_MissingURIFailsSchemaValidation(t *testing.T) {
	path := writeConfigFile(t, `max_resources: 10`)
	_, err := LoadFactoryParams(path)
	require.Error(t, err)
}

func TestLoadFactoryParams_InvalidYAMLReturnsError(t *testing.T) {
	path := writeConfigFile(t, "uri: [unterminated")
	_, err := LoadFactoryParams(path)
	require.Error(t, err)
}

func TestLoadFactoryParams_MissingFileReturnsError(t *testing.T) {
	_, err := LoadFactoryParams(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
