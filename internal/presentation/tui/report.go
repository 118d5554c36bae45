package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/agentflow/pkg/domain"
)

// RunReport summarizes a run as markdown: outcome, step log and final state.
func RunReport(run *domain.Run) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Run `%s`\n\n", run.ID)
	fmt.Fprintf(&sb, "| Graph | Status | Steps |\n|---|---|---|\n| %s | **%s** | %d |\n\n",
		run.GraphID, run.Status, run.StepCount)

	if run.Error != "" {
		fmt.Fprintf(&sb, "> **%s**: %s\n\n", run.ErrorCode, run.Error)
	}

	if len(run.Log) > 0 {
		sb.WriteString("## Steps\n\n| # | Node | Next | Changed keys | Duration |\n|---|---|---|---|---|\n")
		for _, step := range run.Log {
			next := step.Next
			if next == "" {
				next = "(stop)"
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s |\n",
				step.Number, step.Node, next, changedKeys(step.Changes), step.Duration.Round(time.Microsecond))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Final state\n\n```json\n")
	data, err := json.MarshalIndent(run.State, "", "  ")
	if err != nil {
		fmt.Fprintf(&sb, "%q\n", err.Error())
	} else {
		sb.Write(data)
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")

	return sb.String()
}

func changedKeys(changes map[string]any) string {
	if len(changes) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, "`"+k+"`")
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
