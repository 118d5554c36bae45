package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/agentflow/internal/presentation/tui"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
	"gopkg.in/yaml.v3"
)

// ErrRunFailed is returned by Execute when the run did not complete.
var ErrRunFailed = errors.New("run did not complete")

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	GraphID   string
	Context   string // Raw JSON object
	InputFile string // YAML or JSON file with the initial state
	JSON      bool
}

// InitialState merges the input file and the inline context, inline keys winning.
func (o RunOptions) InitialState() (map[string]any, error) {
	initial := map[string]any{}

	if o.InputFile != "" {
		data, err := os.ReadFile(o.InputFile)
		if err != nil {
			return nil, fmt.Errorf("error reading input file: %w", err)
		}
		// YAML is a superset of JSON, so one decoder covers both.
		if err := yaml.Unmarshal(data, &initial); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", o.InputFile, err)
		}
		if initial == nil {
			initial = map[string]any{}
		}
	}

	if o.Context != "" {
		var inline map[string]any
		if err := json.Unmarshal([]byte(o.Context), &inline); err != nil {
			return nil, fmt.Errorf("error parsing --context JSON: %w", err)
		}
		for k, v := range inline {
			initial[k] = v
		}
	}

	return initial, nil
}

// Execute runs a graph once and writes the outcome to out, either as indented
// JSON or as a markdown report passed through render.
func Execute(ctx context.Context, engine ports.Engine, opts RunOptions, out io.Writer, render tui.Renderer) (*domain.Run, error) {
	if opts.GraphID == "" {
		return nil, errors.New("graph id is required")
	}

	initial, err := opts.InitialState()
	if err != nil {
		return nil, err
	}

	run, err := engine.Run(ctx, opts.GraphID, initial)
	if err != nil {
		return nil, err
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return run, err
		}
	} else {
		if render == nil {
			render = tui.Plain
		}
		text, err := render(tui.RunReport(run))
		if err != nil {
			return run, err
		}
		if _, err := fmt.Fprint(out, text); err != nil {
			return run, err
		}
	}

	if run.Status != domain.StatusCompleted {
		return run, fmt.Errorf("%w: %s", ErrRunFailed, run.Status)
	}
	return run, nil
}
