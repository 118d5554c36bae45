package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/agentflow/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
	FailedNode   string

	// Jumps are transitions taken at run time through control keys, keyed by source node.
	Jumps map[string][]string
}

// OverlayFromRun derives the overlay of a recorded run.
// A failed run marks the node that would have run next as failed.
func OverlayFromRun(run *domain.Run, spec domain.GraphSpec) *GraphOverlay {
	if run == nil {
		return nil
	}
	overlay := &GraphOverlay{Jumps: map[string][]string{}}
	seen := map[string]bool{}

	for _, step := range run.Log {
		overlay.VisitedNodes = append(overlay.VisitedNodes, step.Node)
		if step.Next == "" || step.Next == spec.Edges[step.Node] {
			continue
		}
		key := step.Node + "->" + step.Next
		if !seen[key] {
			seen[key] = true
			overlay.Jumps[step.Node] = append(overlay.Jumps[step.Node], step.Next)
		}
	}

	next := spec.Entry
	if n := len(run.Log); n > 0 {
		next = run.Log[n-1].Next
	}
	switch run.Status {
	case domain.StatusRunning:
		overlay.CurrentNode = next
	case domain.StatusFailed:
		overlay.FailedNode = next
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart syntax string from a graph definition.
// It applies semantic styling:
// - Entry: ((Circle))
// - Node without a static edge (steers with control keys): {{Hexagon}}
// - Default: [Rectangle]
// Static edges are solid arrows; jumps observed in the overlay are dotted.
func GenerateMermaid(spec domain.GraphSpec, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range spec.Nodes {
		safeID := sanitizeMermaidID(node)

		opener, closer := "[", "]"
		switch {
		case node == spec.Entry:
			opener, closer = "((", "))"
		case spec.Edges[node] == "":
			opener, closer = "{{", "}}"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, node, closer))

		if to := spec.Edges[node]; to != "" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeMermaidID(to)))
		}

		if overlay != nil {
			targets := append([]string(nil), overlay.Jumps[node]...)
			sort.Strings(targets)
			for _, to := range targets {
				sb.WriteString(fmt.Sprintf("    %s -. \"_next_node\" .-> %s\n", safeID, sanitizeMermaidID(to)))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && id != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
		if overlay.FailedNode != "" {
			sb.WriteString(fmt.Sprintf("    class %s failed;\n", sanitizeMermaidID(overlay.FailedNode)))
		}
	}

	return sb.String()
}

// sanitizeMermaidID prefixes every ID so names such as "end" never clash with Mermaid keywords.
func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "\"", "_")
	return "n_" + r.Replace(id)
}
