package validator

import (
	"fmt"
	"os"
	"sort"

	"github.com/aretw0/agentflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Report describes the static shape of a valid graph.
type Report struct {
	// Reachable lists nodes reachable from the entry by static edges, in visit order.
	Reachable []string
	// Unreachable nodes can only be entered through a _next_node jump.
	Unreachable []string
	// Terminals have no static edge: the run stops there unless the node jumps.
	Terminals []string
}

// ValidateGraph resolves spec against resolve, returning the first definition
// error, then crawls static edges from the entry node.
func ValidateGraph(spec domain.GraphSpec, resolve domain.NodeResolver) (Report, error) {
	if _, err := domain.NewGraph(spec, resolve); err != nil {
		return Report{}, err
	}

	var report Report
	visited := make(map[string]bool, len(spec.Nodes))
	queue := []string{spec.Entry}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true
		report.Reachable = append(report.Reachable, current)

		if next := spec.Edges[current]; next != "" && !visited[next] {
			queue = append(queue, next)
		}
	}

	for _, name := range spec.Nodes {
		if !visited[name] {
			report.Unreachable = append(report.Unreachable, name)
		}
		if spec.Edges[name] == "" {
			report.Terminals = append(report.Terminals, name)
		}
	}
	sort.Strings(report.Unreachable)
	sort.Strings(report.Terminals)

	return report, nil
}

// LoadSpec reads a graph definition from a YAML or JSON file.
func LoadSpec(path string) (domain.GraphSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.GraphSpec{}, err
	}
	var spec domain.GraphSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return domain.GraphSpec{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return spec, nil
}
