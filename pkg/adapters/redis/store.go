package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/agentflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "agentflow:"

// farFuture is the index score of records without TTL (2100-01-01).
const farFuture = 4102444800

// Store implements ports.RunStore and ports.GraphStore using Redis.
// Runs are JSON strings indexed by a ZSET scored with their expiry; graph
// definitions never expire and are written with SETNX so an ID is taken once.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for run records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client so a Locker can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) runKey(runID string) string {
	return s.prefix + "run:" + runID
}

func (s *Store) graphKey(graphID string) string {
	return s.prefix + "graph:" + graphID
}

func (s *Store) runIndexKey() string {
	return s.prefix + "index:runs"
}

func (s *Store) graphIndexKey() string {
	return s.prefix + "index:graphs"
}

// SaveRun persists the run to Redis.
func (s *Store) SaveRun(ctx context.Context, run *domain.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := s.client.Pipeline()

	// 1. Save JSON with TTL
	// Use 0 for no expiration if ttl is not set.
	pipe.Set(ctx, s.runKey(run.ID), data, s.ttl)

	// 2. Add to Index (ZSET)
	// Score = Now + TTL. If TTL = 0, Score = far future.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe.ZAdd(ctx, s.runIndexKey(), backend.Z{
		Score:  score,
		Member: run.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run to redis: %w", err)
	}

	return nil
}

// LoadRun retrieves the run from Redis.
func (s *Store) LoadRun(ctx context.Context, runID string) (*domain.Run, error) {
	val, err := s.client.Get(ctx, s.runKey(runID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run from redis: %w", err)
	}

	var run domain.Run
	if err := json.Unmarshal([]byte(val), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}

// DeleteRun removes the run.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.runKey(runID))
	pipe.ZRem(ctx, s.runIndexKey(), runID)

	_, err := pipe.Exec(ctx)
	return err
}

// ListRuns returns live run IDs, pruning expired entries from the index first.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	// Lazy Cleanup: Remove expired keys from Index
	now := float64(time.Now().Unix())

	// If everything is infinite, this removes nothing.
	err := s.client.ZRemRangeByScore(ctx, s.runIndexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired runs: %w", err)
	}

	runs, err := s.client.ZRange(ctx, s.runIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// SaveGraph stores the definition unless its ID is taken.
func (s *Store) SaveGraph(ctx context.Context, spec domain.GraphSpec) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.graphKey(spec.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save graph to redis: %w", err)
	}
	if !created {
		return domain.ErrGraphExists
	}

	// Equal scores keep the index in lexical order.
	if err := s.client.ZAdd(ctx, s.graphIndexKey(), backend.Z{Score: 0, Member: spec.ID}).Err(); err != nil {
		return fmt.Errorf("failed to index graph: %w", err)
	}
	return nil
}

// LoadGraph retrieves a definition.
func (s *Store) LoadGraph(ctx context.Context, graphID string) (domain.GraphSpec, error) {
	val, err := s.client.Get(ctx, s.graphKey(graphID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.GraphSpec{}, domain.ErrGraphNotFound
		}
		return domain.GraphSpec{}, fmt.Errorf("failed to get graph from redis: %w", err)
	}

	var spec domain.GraphSpec
	if err := json.Unmarshal([]byte(val), &spec); err != nil {
		return domain.GraphSpec{}, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	return spec, nil
}

// ListGraphs returns every definition ordered by ID.
func (s *Store) ListGraphs(ctx context.Context) ([]domain.GraphSpec, error) {
	ids, err := s.client.ZRange(ctx, s.graphIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}

	specs := make([]domain.GraphSpec, 0, len(ids))
	for _, id := range ids {
		spec, err := s.LoadGraph(ctx, id)
		if errors.Is(err, domain.ErrGraphNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
