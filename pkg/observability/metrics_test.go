package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/agentflow"
	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	eng, err := agentflow.New(agentflow.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, err)

	calls := 0
	require.NoError(t, eng.Register("work", func(ctx context.Context, s domain.State) (domain.State, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("tired")
		}
		s.GoTo("work")
		return s, nil
	}))

	ctx := context.Background()
	id, err := eng.CreateGraph(ctx, domain.GraphSpec{ID: "metered", Entry: "work", Nodes: []string{"work"}})
	require.NoError(t, err)

	_, err = eng.Run(ctx, id, nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsStarted.WithLabelValues("metered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RunsFinished.WithLabelValues("metered", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.NodeVisits.WithLabelValues("work")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NodeErrors.WithLabelValues("work")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.NodeDuration))
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestAuditHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug, logging.FormatJSON)

	hooks := domain.Combine(observability.AuditHooks(logger))
	eng, err := agentflow.New(agentflow.WithLifecycleHooks(hooks))
	require.NoError(t, err)
	require.NoError(t, eng.Register("a", func(ctx context.Context, s domain.State) (domain.State, error) {
		return s, nil
	}))

	ctx := context.Background()
	id, err := eng.CreateGraph(ctx, domain.GraphSpec{Entry: "a", Nodes: []string{"a"}})
	require.NoError(t, err)
	_, err = eng.Run(ctx, id, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"run_start"`)
	assert.Contains(t, out, `"msg":"node_enter"`)
	assert.Contains(t, out, `"msg":"run_finish"`)
}
