package cmmn

import (
	"context"
	"fmt"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/model/cmmn10"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/script"
)

// executionScope exposes a case execution to scripts as `caseExecution`.
type executionScope struct {
	execution *runtime.CaseExecution
	holder    *runtime.VariableHolder
}

var _ script.VariableScope = &executionScope{}

func (s *executionScope) VariableScopeKind() script.ScopeKind {
	return script.ScopeKindCaseExecution
}

func (s *executionScope) GetVariable(name string) (any, bool) {
	return s.holder.GetVariable(name)
}

func (s *executionScope) HasVariable(name string) bool {
	return s.holder.HasVariable(name)
}

func (s *executionScope) GetVariableNames() []string {
	return s.holder.GetVariableNames()
}

func (s *executionScope) Id() string {
	return s.execution.Id
}

func (s *executionScope) ActivityId() string {
	return s.execution.ActivityId
}

func (s *executionScope) CaseInstanceId() string {
	return s.execution.CaseInstanceId
}

func (s *executionScope) BusinessKey() string {
	return s.execution.BusinessKey
}

// Variable returns the visible variable or undefined
func (s *executionScope) Variable(name string) any {
	v, _ := s.holder.GetVariable(name)
	return v
}

// evaluateRule evaluates an item control rule in the scope of e.
// A missing rule does not apply, a rule without condition always applies.
func (cc *CommandContext) evaluateRule(ctx context.Context, rule *cmmn10.TRule, e *runtime.CaseExecution) (bool, error) {
	if rule == nil {
		return false, nil
	}
	expression := rule.Expression()
	if expression == "" {
		return true, nil
	}
	return cc.evaluateCondition(ctx, expression, e)
}

func (cc *CommandContext) evaluateCondition(ctx context.Context, expression string, e *runtime.CaseExecution) (bool, error) {
	_, span := cc.engine.tracer.Start(ctx, "condition")
	defer span.End()

	if isFeelExpression(expression) {
		res, err := evaluateFeel(expression, cc.variableHolder(e))
		if err != nil {
			return false, newScriptEvaluationError(expression, err)
		}
		return conditionResult(expression, res)
	}

	jsRuntime, err := cc.engine.scriptRuntime()
	if err != nil {
		return false, newScriptEvaluationError(expression, err)
	}
	resolver, err := script.NewVariableScopeResolver(&executionScope{execution: e, holder: cc.variableHolder(e)})
	if err != nil {
		return false, newScriptEvaluationError(expression, err)
	}
	res, err := jsRuntime.Evaluate(expression, resolver)
	if err != nil {
		return false, newScriptEvaluationError(expression, err)
	}
	return conditionResult(expression, res)
}

func conditionResult(expression string, res any) (bool, error) {
	b, ok := res.(bool)
	if !ok {
		return false, newScriptEvaluationError(expression, fmt.Errorf("expression evaluated to %v (%T) instead of a boolean", res, res))
	}
	return b, nil
}
