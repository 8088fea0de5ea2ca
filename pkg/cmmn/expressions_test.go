package cmmn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
)

func TestFeelManualActivationCondition(t *testing.T) {
	tests := map[string]struct {
		variables map[string]any
		approve   runtime.CaseExecutionState
		escalate  runtime.CaseExecutionState
	}{
		"above limit, gold":  {variables: map[string]any{"amount": int64(2000), "tier": "gold"}, approve: runtime.StateEnabled, escalate: runtime.StateEnabled},
		"below limit, basic": {variables: map[string]any{"amount": int32(10), "tier": "basic"}, approve: runtime.StateActive, escalate: runtime.StateActive},
		"double amount":      {variables: map[string]any{"amount": 1000.5, "tier": "basic"}, approve: runtime.StateEnabled, escalate: runtime.StateActive},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			engine, _ := newTestEngine(t)
			deployFile(t, engine, "feel_case.cmmn")

			ci, err := engine.CaseService().CreateCaseInstanceByKey("feel_case").SetVariables(test.variables).Create(t.Context())
			require.NoError(t, err)

			assert.Equal(t, test.approve, childByActivity(t, engine, ci.Id, "PI_Approve").State)
			assert.Equal(t, test.escalate, childByActivity(t, engine, ci.Id, "PI_Escalate").State)
		})
	}
}

func TestFeelConditionMustBeBoolean(t *testing.T) {
	holder := runtime.NewVariableHolder(nil, map[string]any{"amount": int16(5)}, nil)

	res, err := evaluateFeel("= amount + 1", holder)
	require.NoError(t, err)
	_, err = conditionResult("= amount + 1", res)

	var scriptErr *ScriptEvaluationError
	require.ErrorAs(t, err, &scriptErr)
	assert.Contains(t, err.Error(), "instead of a boolean")
}

func TestIsFeelExpression(t *testing.T) {
	assert.True(t, isFeelExpression(" =amount > 1"))
	assert.False(t, isFeelExpression("amount > 1"))
}
