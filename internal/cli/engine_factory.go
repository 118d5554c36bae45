package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/agentflow"
	"github.com/aretw0/agentflow/internal/config"
	"github.com/aretw0/agentflow/pkg/adapters/file"
	"github.com/aretw0/agentflow/pkg/adapters/memory"
	"github.com/aretw0/agentflow/pkg/adapters/redis"
	"github.com/aretw0/agentflow/pkg/adapters/sqlite"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/persistence/middleware"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/aretw0/agentflow/pkg/workflows/codereview"
)

// Stores bundles the persistence adapters selected by configuration.
type Stores struct {
	Runs   ports.RunStore
	Graphs ports.GraphStore
	// Locker is nil unless the backend supports cross-replica locking.
	Locker ports.DistributedLocker

	closers []io.Closer
}

// Close releases every connection opened by OpenStores.
func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStores builds the run and graph stores for the configured backend and
// wraps the run store with the configured masking and encryption.
func OpenStores(ctx context.Context, cfg config.StoreConfig) (*Stores, error) {
	stores, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mws, err := storeMiddleware(cfg)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	stores.Runs = middleware.Chain(stores.Runs, mws...)
	return stores, nil
}

// storeMiddleware returns masking ahead of encryption.
func storeMiddleware(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware

	if len(cfg.MaskKeys) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.MaskKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}

	if cfg.Encryption.Key != "" {
		active, err := decodeKey(cfg.Encryption.Key)
		if err != nil {
			return nil, fmt.Errorf("store.encryption.key: %w", err)
		}
		encCfg := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.Encryption.FallbackKeys {
			key, err := decodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("store.encryption.fallback_keys[%d]: %w", i, err)
			}
			encCfg.FallbackKeys = append(encCfg.FallbackKeys, key)
		}
		enc, err := middleware.NewEncryptionMiddleware(encCfg)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}

	return mws, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key must be base64: %w", err)
	}
	return key, nil
}

// openBackend opens the configured backend.
// The redis backend is pinged so a bad address fails at startup.
func openBackend(ctx context.Context, cfg config.StoreConfig) (*Stores, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		store := memory.NewStore()
		return &Stores{Runs: store, Graphs: store}, nil

	case config.BackendFile:
		store := file.New(cfg.File.Path)
		return &Stores{Runs: store, Graphs: store}, nil

	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		return &Stores{Runs: store, Graphs: store, closers: []io.Closer{store}}, nil

	case config.BackendRedis:
		var opts []redis.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		store := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, opts...)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Redis.Address, err)
		}
		stores := &Stores{Runs: store, Graphs: store, closers: []io.Closer{store}}
		if cfg.Redis.Lock {
			prefix := cfg.Redis.Prefix
			if prefix == "" {
				prefix = redis.DefaultPrefix
			}
			stores.Locker = redis.NewLocker(store.Client(), prefix)
		}
		return stores, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewEngine initializes an engine with standard CLI conventions: stores from
// configuration, the configured step limit, and the built-in code-review
// workflow when enabled. The caller must Close the returned Stores.
func NewEngine(ctx context.Context, cfg config.Config, logger *slog.Logger, hooks domain.LifecycleHooks) (*agentflow.Engine, *Stores, error) {
	stores, err := OpenStores(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	opts := []agentflow.Option{
		agentflow.WithLogger(logger),
		agentflow.WithMaxSteps(cfg.Engine.MaxSteps),
		agentflow.WithRunStore(stores.Runs),
		agentflow.WithGraphStore(stores.Graphs),
		agentflow.WithLifecycleHooks(hooks),
	}
	if stores.Locker != nil {
		opts = append(opts, agentflow.WithLocker(stores.Locker))
	}

	engine, err := agentflow.New(opts...)
	if err != nil {
		_ = stores.Close()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}

	if cfg.Engine.CodeReview {
		id, err := codereview.Install(ctx, engine)
		if err != nil {
			_ = stores.Close()
			return nil, nil, fmt.Errorf("failed to install code review workflow: %w", err)
		}
		logger.Debug("workflow installed", "graph_id", id)
	}

	return engine, stores, nil
}
