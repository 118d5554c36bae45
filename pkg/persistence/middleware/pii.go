package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/ports"
)

// Mask replaces the value of every sensitive key.
const Mask = "***"

type piiMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of keys matching
// the patterns, in the final state and in every step delta, before they are
// persisted. The caller's run is never modified.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.RunStore) ports.RunStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) SaveRun(ctx context.Context, run *domain.Run) error {
	cloned := run.Copy()

	maskMap(cloned.State, m.patterns)
	for _, step := range cloned.Log {
		maskMap(step.Changes, m.patterns)
	}

	return m.next.SaveRun(ctx, cloned)
}

func (m *piiMiddleware) LoadRun(ctx context.Context, runID string) (*domain.Run, error) {
	return m.next.LoadRun(ctx, runID)
}

func (m *piiMiddleware) DeleteRun(ctx context.Context, runID string) error {
	return m.next.DeleteRun(ctx, runID)
}

func (m *piiMiddleware) ListRuns(ctx context.Context) ([]string, error) {
	return m.next.ListRuns(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if masked {
			continue
		}

		switch val := v.(type) {
		case map[string]any:
			maskMap(val, patterns)
		case domain.State:
			maskMap(val, patterns)
		case []any:
			for _, item := range val {
				if sub, ok := item.(map[string]any); ok {
					maskMap(sub, patterns)
				}
			}
		}
	}
}
