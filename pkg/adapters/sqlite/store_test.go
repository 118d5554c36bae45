package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/agentflow/pkg/adapters/sqlite"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dsn string) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(dsn)
	if err != nil {
		t.Fatalf("sqlite.Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStore_RunContract(t *testing.T) {
	ports.RunStoreContract(t, newTestStore(t, ":memory:"))
}

func TestSQLiteStore_GraphContract(t *testing.T) {
	ports.GraphStoreContract(t, newTestStore(t, ":memory:"))
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "agentflow.db")
	ctx := context.Background()

	first, err := sqlite.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, first.SaveRun(ctx, &domain.Run{
		ID:        "r1",
		GraphID:   "g1",
		Status:    domain.StatusStepLimitExceeded,
		StepCount: 100,
		State:     domain.State{"quality_score": 0.5},
	}))
	require.NoError(t, first.Close())

	second := newTestStore(t, dsn)
	run, err := second.LoadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStepLimitExceeded, run.Status)
	assert.Equal(t, 100, run.StepCount)
	assert.Equal(t, 0.5, run.State["quality_score"])
	assert.True(t, run.FinishedAt.IsZero())
}
