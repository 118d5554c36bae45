package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentflow.yaml")
	content := `
server:
  address: ":9090"
  read_timeout: 5s
engine:
  max_steps: 25
store:
  backend: redis
  redis:
    address: "redis:6379"
    ttl: 1h
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := load(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, 25, cfg.Engine.MaxSteps)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Address)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, "agentflow:", cfg.Store.Redis.Prefix)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentflow.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"store": {"backend": "sqlite", "sqlite": {"dsn": "runs.db"}}}`), 0644))

	cfg, err := load(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "runs.db", cfg.Store.SQLite.DSN)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_steps: 25\n"), 0644))

	cfg, err := load(path, env(map[string]string{
		"AGENTFLOW_MAX_STEPS":    "7",
		"AGENTFLOW_STORE":        "file",
		"AGENTFLOW_CODE_REVIEW":  "false",
		"AGENTFLOW_CORS_ORIGINS": "https://a.example,https://b.example",
		"AGENTFLOW_REDIS_TTL":    "90s",
	}))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.MaxSteps)
	assert.False(t, cfg.Engine.CodeReview)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.Store.Redis.TTL)
}

func TestLoad_StoreProtection(t *testing.T) {
	cfg, err := load("", env(map[string]string{
		"AGENTFLOW_ENCRYPTION_KEY": "bmV3",
		"AGENTFLOW_FALLBACK_KEYS":  "b2xk",
		"AGENTFLOW_MASK_KEYS":      "password,^ssn",
	}))
	require.NoError(t, err)
	assert.Equal(t, "bmV3", cfg.Store.Encryption.Key)
	assert.Equal(t, []string{"b2xk"}, cfg.Store.Encryption.FallbackKeys)
	assert.Equal(t, []string{"password", "^ssn"}, cfg.Store.MaskKeys)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"AGENTFLOW_STORE": "postgres"}},
		{name: "zero max steps", env: map[string]string{"AGENTFLOW_MAX_STEPS": "0"}},
		{name: "bad log level", env: map[string]string{"AGENTFLOW_LOG_LEVEL": "loud"}},
		{name: "bad log format", env: map[string]string{"AGENTFLOW_LOG_FORMAT": "xml"}},
		{name: "fallback without key", env: map[string]string{"AGENTFLOW_FALLBACK_KEYS": "b2xk"}},
		{name: "unknown key", file: "engine:\n  max_stepz: 3\n"},
		{name: "malformed yaml", file: "engine: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), "agentflow.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0644))
			}
			_, err := load(path, env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	assert.Error(t, err)
}
