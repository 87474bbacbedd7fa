package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestReloadJSON(t *testing.T) {
	path := writeTemp(t, "setting.json", `{
		"listen": "127.0.0.1:9000",
		"credentials": [{"username": "alice", "password": "secret"}],
		"cache": {"maxCost": 2048}
	}`)

	require.NoError(t, Reload(path))
	assert.Equal(t, "127.0.0.1:9000", GlobalCfg.Listen)
	assert.Equal(t, "tcp", GlobalCfg.Transport)
	assert.Equal(t, 2048, GlobalCfg.Cache.MaxCost)
	require.Len(t, GlobalCfg.Credentials, 1)
	assert.Equal(t, "alice", GlobalCfg.Credentials[0].Username)
}

func TestReloadTOML(t *testing.T) {
	path := writeTemp(t, "setting.toml", `
listen = "127.0.0.1:9001"
transport = "quic"

[[credentials]]
username = "bob"
password = "hunter2"
`)

	require.NoError(t, Reload(path))
	assert.Equal(t, "127.0.0.1:9001", GlobalCfg.Listen)
	assert.Equal(t, "quic", GlobalCfg.Transport)
	require.Len(t, GlobalCfg.Credentials, 1)
	assert.Equal(t, "bob", GlobalCfg.Credentials[0].Username)
}

func TestReloadRejectsEmptyListenAddress(t *testing.T) {
	path := writeTemp(t, "setting.json", `{}`)
	err := Reload(path)
	assert.Error(t, err)
}

func TestReloadRejectsUnknownTransport(t *testing.T) {
	path := writeTemp(t, "setting.json", `{"listen": "127.0.0.1:9000", "transport": "carrier-pigeon"}`)
	err := Reload(path)
	assert.Error(t, err)
}

func TestApplyDefaultsFillsPlannerAndLogDefaults(t *testing.T) {
	cfg := &ServerConfig{Listen: "127.0.0.1:9000"}
	applyDefaults(cfg)

	assert.Equal(t, "tcp", cfg.Transport)
	assert.Equal(t, 16*1024*1024, cfg.Cache.MaxCost)
	assert.Equal(t, 100, cfg.Planner.MaxChunkCount)
	assert.Equal(t, 100, cfg.Planner.MinChunkSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Log.Path)
}
