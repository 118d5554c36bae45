package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/agentflow/pkg/domain"
)

// AuditHooks logs every lifecycle event at debug level, and failed runs at warn.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.DebugContext(ctx, "run_start", "run_id", e.RunID, "graph_id", e.GraphID)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			level := slog.LevelDebug
			if e.Status != domain.StatusCompleted {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "run_finish",
				"run_id", e.RunID,
				"graph_id", e.GraphID,
				"status", e.Status,
				"steps", e.StepCount,
				"error", e.Err,
			)
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "run_id", e.RunID, "node_id", e.NodeID, "step", e.Step)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave",
				"run_id", e.RunID,
				"node_id", e.NodeID,
				"step", e.Step,
				"duration", e.Duration,
				"error", e.Err,
			)
		},
	}
}
