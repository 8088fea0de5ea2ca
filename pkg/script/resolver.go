package script

import (
	"errors"
	"fmt"
	"slices"
)

type ScopeKind string

const (
	ScopeKindCaseExecution ScopeKind = "caseExecution"
	ScopeKindExecution     ScopeKind = "execution"
	ScopeKindTask          ScopeKind = "task"
)

// VariableScope is anything that holds variables and can be exposed to scripts.
type VariableScope interface {
	VariableScopeKind() ScopeKind
	GetVariable(name string) (any, bool)
	HasVariable(name string) bool
	GetVariableNames() []string
}

// VariableScopeResolver resolves script variables against a VariableScope.
// The scope itself is reachable under the key named by its kind.
type VariableScopeResolver struct {
	variableScope    VariableScope
	variableScopeKey string
}

var _ Resolver = &VariableScopeResolver{}

func NewVariableScopeResolver(scope VariableScope) (*VariableScopeResolver, error) {
	if scope == nil {
		return nil, errors.New("variableScope is null")
	}
	kind := scope.VariableScopeKind()
	switch kind {
	case ScopeKindCaseExecution, ScopeKindExecution, ScopeKindTask:
	default:
		return nil, fmt.Errorf("unsupported variable scope type: %T (%s)", scope, kind)
	}
	return &VariableScopeResolver{
		variableScope:    scope,
		variableScopeKey: string(kind),
	}, nil
}

func (r *VariableScopeResolver) ScopeKey() string {
	return r.variableScopeKey
}

func (r *VariableScopeResolver) ContainsKey(key string) bool {
	return key == r.variableScopeKey || r.variableScope.HasVariable(key)
}

func (r *VariableScopeResolver) Get(key string) any {
	if key == r.variableScopeKey {
		return r.variableScope
	}
	v, _ := r.variableScope.GetVariable(key)
	return v
}

func (r *VariableScopeResolver) KeySet() []string {
	names := slices.Clone(r.variableScope.GetVariableNames())
	if !slices.Contains(names, r.variableScopeKey) {
		names = append(names, r.variableScopeKey)
	}
	return names
}
