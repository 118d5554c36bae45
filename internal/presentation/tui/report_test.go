package tui_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/agentflow/internal/presentation/tui"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestRunReport(t *testing.T) {
	run := &domain.Run{
		ID:        "run-1",
		GraphID:   "code-review",
		Status:    domain.StatusFailed,
		StepCount: 2,
		State:     domain.State{"approved": false},
		Log: []domain.Step{
			{Number: 1, Node: "a", Next: "b", Changes: map[string]any{"z": 1, "y": 2}, Duration: time.Millisecond},
			{Number: 2, Node: "b"},
		},
		Error:     "node execution failed",
		ErrorCode: domain.CodeNodeExecution,
	}

	report := tui.RunReport(run)
	assert.Contains(t, report, "# Run `run-1`")
	assert.Contains(t, report, "| code-review | **failed** | 2 |")
	assert.Contains(t, report, "> **node_execution**: node execution failed")
	assert.Contains(t, report, "| 1 | a | b | `y`, `z` | 1ms |")
	assert.Contains(t, report, "| 2 | b | (stop) | - |")
	assert.Contains(t, report, `"approved": false`)
}

func TestPlainRenderer(t *testing.T) {
	out, err := tui.Plain("# title")
	assert.NoError(t, err)
	assert.Equal(t, "# title", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.True(t, strings.Count(buf.String(), "\n") >= 6)
}
