package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config is the full runtime configuration of the agentflow binary.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address" yaml:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

type EngineConfig struct {
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// CodeReview installs the built-in code-review workflow at startup.
	CodeReview bool `mapstructure:"code_review" yaml:"code_review"`
}

type StoreConfig struct {
	Backend string       `mapstructure:"backend" yaml:"backend"`
	File    FileConfig   `mapstructure:"file" yaml:"file"`
	SQLite  SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	Redis   RedisConfig  `mapstructure:"redis" yaml:"redis"`

	// Encryption seals run state and step logs at rest when a key is set.
	Encryption EncryptionConfig `mapstructure:"encryption" yaml:"encryption"`
	// MaskKeys are regular expressions; matching state keys are masked before persistence.
	MaskKeys []string `mapstructure:"mask_keys" yaml:"mask_keys"`
}

// EncryptionConfig holds base64-encoded 32-byte AES keys.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key" yaml:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

type FileConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type SQLiteConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address" yaml:"address"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// Lock serializes run writes across replicas.
	Lock bool `mapstructure:"lock" yaml:"lock"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		Engine: EngineConfig{
			MaxSteps:   100,
			CodeReview: true,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			File:    FileConfig{Path: ".agentflow"},
			SQLite:  SQLiteConfig{DSN: "agentflow.db"},
			Redis: RedisConfig{
				Address: "localhost:6379",
				Prefix:  "agentflow:",
				Lock:    true,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// envBindings maps environment variables to dotted config keys.
var envBindings = map[string]string{
	"AGENTFLOW_ADDRESS":        "server.address",
	"AGENTFLOW_CORS_ORIGINS":   "server.cors_origins",
	"AGENTFLOW_MAX_STEPS":      "engine.max_steps",
	"AGENTFLOW_CODE_REVIEW":    "engine.code_review",
	"AGENTFLOW_STORE":          "store.backend",
	"AGENTFLOW_FILE_PATH":      "store.file.path",
	"AGENTFLOW_SQLITE_DSN":     "store.sqlite.dsn",
	"AGENTFLOW_REDIS_ADDRESS":  "store.redis.address",
	"AGENTFLOW_REDIS_PASSWORD": "store.redis.password",
	"AGENTFLOW_REDIS_DB":       "store.redis.db",
	"AGENTFLOW_REDIS_PREFIX":   "store.redis.prefix",
	"AGENTFLOW_REDIS_TTL":      "store.redis.ttl",
	"AGENTFLOW_REDIS_LOCK":     "store.redis.lock",
	"AGENTFLOW_ENCRYPTION_KEY": "store.encryption.key",
	"AGENTFLOW_FALLBACK_KEYS":  "store.encryption.fallback_keys",
	"AGENTFLOW_MASK_KEYS":      "store.mask_keys",
	"AGENTFLOW_LOG_LEVEL":      "log.level",
	"AGENTFLOW_LOG_FORMAT":     "log.format",
}

// Load builds the configuration from the defaults, the optional file at path
// (YAML, or JSON by extension), and AGENTFLOW_* environment variables, in that
// order of precedence.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	raw := map[string]any{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if strings.ToLower(filepath.Ext(path)) == ".json" {
			err = json.Unmarshal(data, &raw)
		} else {
			err = yaml.Unmarshal(data, &raw)
		}
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	for env, key := range envBindings {
		if val, ok := lookup(env); ok {
			setPath(raw, key, val)
		}
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setPath stores val under a dotted key, creating intermediate maps.
func setPath(m map[string]any, key string, val any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = val
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Engine.MaxSteps < 1 {
		return fmt.Errorf("engine.max_steps must be at least 1, got %d", c.Engine.MaxSteps)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Encryption.Key == "" && len(c.Store.Encryption.FallbackKeys) > 0 {
		return fmt.Errorf("store.encryption.fallback_keys requires store.encryption.key")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
