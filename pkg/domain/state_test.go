package domain_test

import (
	"testing"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_CloneIsDeep(t *testing.T) {
	s := domain.NewState(map[string]any{
		"nested": map[string]any{"count": 1},
		"list":   []any{"a"},
	})

	cp := s.Clone()
	cp["nested"].(map[string]any)["count"] = 2
	cp["list"] = append(cp["list"].([]any), "b")

	assert.Equal(t, 1, s["nested"].(map[string]any)["count"])
	assert.Len(t, s["list"], 1)
}

func TestState_DomainStripsControlKeys(t *testing.T) {
	s := domain.NewState(map[string]any{"code": "x"})
	s.GoTo("next")
	s.Halt()

	d := s.Domain()
	assert.Equal(t, domain.State{"code": "x"}, d)

	// The receiver keeps its control keys.
	_, ok := s.Get(domain.KeyNextNode)
	assert.True(t, ok)
}

func TestState_ClearControl(t *testing.T) {
	s := domain.State{"_private": 1, domain.KeyNextNode: "a", domain.KeyStop: false}
	s.ClearControl()
	assert.Equal(t, domain.State{"_private": 1}, s)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		state   domain.State
		static  string
		want    domain.Decision
		wantErr error
	}{
		{name: "absent stops", state: domain.State{}, want: domain.Stop()},
		{name: "absent follows static edge", state: domain.State{}, static: "b", want: domain.Continue("b")},
		{name: "explicit next", state: domain.State{domain.KeyNextNode: "b"}, static: "c", want: domain.Continue("b")},
		{name: "self loop", state: domain.State{domain.KeyNextNode: "a"}, want: domain.Continue("a")},
		{name: "null sentinel stops", state: domain.State{domain.KeyNextNode: nil}, static: "b", want: domain.Stop()},
		{name: "empty sentinel stops", state: domain.State{domain.KeyNextNode: ""}, static: "b", want: domain.Stop()},
		{name: "stop wins over next", state: domain.State{domain.KeyStop: true, domain.KeyNextNode: "b"}, want: domain.Stop()},
		{name: "stop false ignored", state: domain.State{domain.KeyStop: false, domain.KeyNextNode: "b"}, want: domain.Continue("b")},
		{name: "next wrong type", state: domain.State{domain.KeyNextNode: 42}, wantErr: domain.ErrInvalidControlValue},
		{name: "stop wrong type", state: domain.State{domain.KeyStop: "yes"}, wantErr: domain.ErrInvalidControlValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.Decide(tt.state, "a", tt.static)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var cv *domain.InvalidControlValueError
				require.ErrorAs(t, err, &cv)
				assert.Equal(t, "a", cv.Node)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
