package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_SetVariable_updates_nearest_holding_scope(t *testing.T) {
	rootVars := map[string]any{"a": 1}
	stageVars := map[string]any{"b": 2}
	root := NewVariableHolder(nil, rootVars, nil)
	stage := NewVariableHolder(root, stageVars, nil)
	task := NewVariableHolder(stage, nil, nil)

	task.SetVariable("b", 20)
	task.SetVariable("a", 10)
	task.SetVariable("c", 30)

	assert.Equal(t, 20, stageVars["b"])
	assert.Equal(t, 10, rootVars["a"])
	assert.Equal(t, 30, rootVars["c"])
	assert.Empty(t, task.LocalVariables())
}

func Test_RemoveVariable_removes_from_nearest_scope_only(t *testing.T) {
	root := NewVariableHolder(nil, map[string]any{"x": "root"}, nil)
	child := NewVariableHolder(root, map[string]any{"x": "child"}, nil)

	child.RemoveVariable("x")

	v, ok := child.GetVariable("x")
	assert.True(t, ok)
	assert.Equal(t, "root", v)
}

func Test_GetVariables_shadows_outer_scopes(t *testing.T) {
	root := NewVariableHolder(nil, map[string]any{"x": 1, "y": 2}, nil)
	child := NewVariableHolder(root, map[string]any{"x": 3}, nil)

	assert.Equal(t, map[string]any{"x": 3, "y": 2}, child.GetVariables())
	assert.Equal(t, []string{"x", "y"}, child.GetVariableNames())
}

func Test_onChange_is_called_for_the_changed_scope(t *testing.T) {
	rootChanges, childChanges := 0, 0
	root := NewVariableHolder(nil, nil, func() { rootChanges++ })
	child := NewVariableHolder(root, nil, func() { childChanges++ })

	child.SetVariable("a", 1)
	child.SetVariableLocal("b", 2)
	child.RemoveVariableLocal("missing")

	assert.Equal(t, 1, rootChanges)
	assert.Equal(t, 1, childChanges)
}

func Test_CaseInstance_only_for_root(t *testing.T) {
	_, ok := NewCaseInstance(CaseExecution{Id: "1", ParentId: "0"})
	assert.False(t, ok)

	ci, ok := NewCaseInstance(CaseExecution{Id: "1", State: StateCompleted})
	assert.True(t, ok)
	assert.True(t, ci.IsCompleted())
}

func Test_Clone_copies_variables(t *testing.T) {
	e := CaseExecution{Id: "1", Variables: map[string]any{"a": 1}}
	c := e.Clone()
	c.Variables["a"] = 2
	assert.Equal(t, 1, e.Variables["a"])
}
