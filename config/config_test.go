package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "Layerdeck", cfg.DynamoDBTable)
	assert.Equal(t, "DeleteDesignLayersQueue", cfg.DeleteLayersQueue)
	assert.Equal(t, "8080", cfg.HostPort)
	assert.Equal(t, 500, cfg.DebounceMS)
	assert.Equal(t, 60000, cfg.TouchFlushMS)
	assert.Equal(t, 10, cfg.MaxUploadMB)
	assert.Equal(t, 50.0, cfg.DefaultLayerX)
	assert.Equal(t, 200.0, cfg.DefaultLayerWidth)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().DynamoDBTable, cfg.DynamoDBTable)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layerdeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host_port: "9090"
dynamodb_table: ""
debounce_ms: 250
max_layers_per_design: 10
allowed_mime_types: [image/png]
`), 0o644))

	t.Setenv("HOST_PORT", "7070")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("REDIS_ENDPOINT", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.HostPort, "env wins over file")
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "localhost:6379", cfg.RedisEndpoint)
	assert.Equal(t, 250, cfg.DebounceMS)
	assert.Equal(t, 10, cfg.MaxLayersPerDesign)
	assert.Equal(t, []string{"image/png"}, cfg.AllowedMimeTypes)
	assert.Equal(t, "Layerdeck", cfg.DynamoDBTable, "blank essentials fall back to defaults")
	assert.Equal(t, 200.0, cfg.DefaultLayerHeight, "unset fields keep defaults")
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debounce_ms: [1"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")

	require.NoError(t, os.WriteFile(path, []byte("debounce_ms: -1"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "debounce_ms")

	t.Setenv("DEBOUNCE_MS", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "DEBOUNCE_MS")
}

func TestJWTSecretBytes(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.JWTSecretBytes()
	assert.Error(t, err)

	cfg.JWTSecret = "c2VjcmV0"
	secret, err := cfg.JWTSecretBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), secret)

	cfg.JWTSecret = "not base64!"
	_, err = cfg.JWTSecretBytes()
	assert.Error(t, err)
}
