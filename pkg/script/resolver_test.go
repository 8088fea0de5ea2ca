package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapScope struct {
	kind ScopeKind
	vars map[string]any
}

func (s *mapScope) VariableScopeKind() ScopeKind { return s.kind }

func (s *mapScope) GetVariable(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *mapScope) HasVariable(name string) bool {
	_, ok := s.vars[name]
	return ok
}

func (s *mapScope) GetVariableNames() []string {
	names := []string{}
	for k := range s.vars {
		names = append(names, k)
	}
	return names
}

func TestResolverExposesScopeUnderKindKey(t *testing.T) {
	for _, kind := range []ScopeKind{ScopeKindCaseExecution, ScopeKindExecution, ScopeKindTask} {
		scope := &mapScope{kind: kind, vars: map[string]any{"a": 1}}
		r, err := NewVariableScopeResolver(scope)
		require.NoError(t, err)

		assert.Equal(t, string(kind), r.ScopeKey())
		assert.True(t, r.ContainsKey(string(kind)))
		assert.Same(t, scope, r.Get(string(kind)))
		assert.True(t, r.ContainsKey("a"))
		assert.Equal(t, 1, r.Get("a"))
		assert.False(t, r.ContainsKey("b"))
		assert.Nil(t, r.Get("b"))
		assert.ElementsMatch(t, []string{"a", string(kind)}, r.KeySet())
	}
}

func TestResolverRejectsUnsupportedScopes(t *testing.T) {
	_, err := NewVariableScopeResolver(&mapScope{kind: "processDefinition"})
	assert.ErrorContains(t, err, "unsupported variable scope type")

	_, err = NewVariableScopeResolver(nil)
	assert.Error(t, err)
}

type countingFactory struct {
	created int
}

type countingRunner struct{}

func (countingRunner) Runner() {}

func (f *countingFactory) NewRunner() Runner {
	f.created++
	return countingRunner{}
}

func TestRunnerPool(t *testing.T) {
	factory := &countingFactory{}
	pool, err := NewRunnerPool(t.Context(), factory, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, factory.created)

	r1 := pool.GetRunnerFromPool()
	r2 := pool.GetRunnerFromPool()
	assert.Equal(t, 2, factory.created)
	assert.Equal(t, 2, pool.ActiveRunners())

	pool.ReturnRunnerToPool(r1)
	pool.ReturnRunnerToPool(r2)
	pool.shrink()
	assert.Equal(t, 1, pool.ActiveRunners())

	_, err = NewRunnerPool(t.Context(), factory, 1, 2)
	assert.Error(t, err)
}
