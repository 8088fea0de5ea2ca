package js

import (
	"context"
	"slices"
	"testing"

	"github.com/pbinitiative/zencmmn/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testScope struct {
	kind script.ScopeKind
	vars map[string]any
}

func (s *testScope) VariableScopeKind() script.ScopeKind { return s.kind }

func (s *testScope) GetVariable(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *testScope) HasVariable(name string) bool {
	_, ok := s.vars[name]
	return ok
}

func (s *testScope) GetVariableNames() []string {
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func (s *testScope) ActivityId() string { return "PI_Task" }

func newRuntime(t *testing.T) *JsRuntime {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rt, err := NewJsRuntime(ctx, 2, 1)
	require.NoError(t, err)
	return rt
}

func TestEvaluateWithResolver(t *testing.T) {
	rt := newRuntime(t)
	resolver, err := script.NewVariableScopeResolver(&testScope{kind: script.ScopeKindCaseExecution, vars: map[string]any{"amount": int64(1500)}})
	require.NoError(t, err)

	res, err := rt.Evaluate("amount > 1000", resolver)
	require.NoError(t, err)
	assert.Equal(t, true, res)

	res, err = rt.Evaluate("caseExecution.activityId()", resolver)
	require.NoError(t, err)
	assert.Equal(t, "PI_Task", res)
}

func TestEvaluateUnbindsVariables(t *testing.T) {
	rt := newRuntime(t)
	resolver, err := script.NewVariableScopeResolver(&testScope{kind: script.ScopeKindCaseExecution, vars: map[string]any{"leak": 1, "Math": "shadow"}})
	require.NoError(t, err)

	_, err = rt.Evaluate("leak + 1", resolver)
	require.NoError(t, err)

	res, err := rt.RunScript("typeof leak")
	require.NoError(t, err)
	assert.Equal(t, "undefined", res)

	res, err = rt.RunScript("typeof Math.max")
	require.NoError(t, err)
	assert.Equal(t, "function", res)
}

func TestRunScriptError(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.RunScript("this is not javascript")
	assert.Error(t, err)
}
