package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/agentflow/pkg/adapters/redis"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	// Setup miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	// Initialize client
	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return redis.NewFromClient(client, opts...), mr
}

func TestRedisStore_RunContract(t *testing.T) {
	store, _ := newTestStore(t)
	ports.RunStoreContract(t, store)
}

func TestRedisStore_GraphContract(t *testing.T) {
	store, _ := newTestStore(t)
	ports.GraphStoreContract(t, store)
}

func TestRedisStore_Prefix(t *testing.T) {
	store, mr := newTestStore(t, redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, &domain.Run{ID: "r1", Status: domain.StatusCompleted}))
	assert.True(t, mr.Exists("test:run:r1"), "run key should use custom prefix")

	require.NoError(t, store.SaveGraph(ctx, domain.GraphSpec{ID: "g1", Entry: "a", Nodes: []string{"a"}}))
	assert.True(t, mr.Exists("test:graph:g1"), "graph key should use custom prefix")
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := newTestStore(t, redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, &domain.Run{ID: "short-lived", Status: domain.StatusCompleted}))
	assert.Equal(t, time.Minute, mr.TTL(redis.DefaultPrefix+"run:short-lived"))

	mr.FastForward(2 * time.Minute)

	_, err := store.LoadRun(ctx, "short-lived")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
