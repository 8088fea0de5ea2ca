package runtime

import (
	"maps"
	"slices"
)

// VariableHolder is one scope of the variable chain of a case execution tree.
// Lookups fall through to the parent holder, writes of unknown names land on the root holder.
type VariableHolder struct {
	parent         *VariableHolder
	localVariables map[string]any
	onChange       func()
}

// NewVariableHolder creates a holder over localVariables. The map is used directly
// so changes are visible to whoever owns it. onChange is called after every mutation of this holder and may be nil.
func NewVariableHolder(parent *VariableHolder, localVariables map[string]any, onChange func()) *VariableHolder {
	if localVariables == nil {
		localVariables = make(map[string]any)
	}
	return &VariableHolder{
		parent:         parent,
		localVariables: localVariables,
		onChange:       onChange,
	}
}

func (vh *VariableHolder) Parent() *VariableHolder {
	return vh.parent
}

func (vh *VariableHolder) changed() {
	if vh.onChange != nil {
		vh.onChange()
	}
}

func (vh *VariableHolder) LocalVariables() map[string]any {
	return vh.localVariables
}

func (vh *VariableHolder) GetVariableLocal(key string) (any, bool) {
	v, ok := vh.localVariables[key]
	return v, ok
}

func (vh *VariableHolder) GetVariable(key string) (any, bool) {
	for h := vh; h != nil; h = h.parent {
		if v, ok := h.localVariables[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func (vh *VariableHolder) HasVariable(key string) bool {
	_, ok := vh.GetVariable(key)
	return ok
}

// GetVariables returns the visible variables, nearer scopes shadowing outer ones.
func (vh *VariableHolder) GetVariables() map[string]any {
	chain := make([]*VariableHolder, 0, 4)
	for h := vh; h != nil; h = h.parent {
		chain = append(chain, h)
	}
	res := make(map[string]any)
	for _, h := range slices.Backward(chain) {
		maps.Copy(res, h.localVariables)
	}
	return res
}

func (vh *VariableHolder) GetVariableNames() []string {
	return slices.Sorted(maps.Keys(vh.GetVariables()))
}

func (vh *VariableHolder) SetVariableLocal(key string, val any) {
	vh.localVariables[key] = val
	vh.changed()
}

// SetVariable updates the nearest scope that already holds key, otherwise creates it on the root scope.
func (vh *VariableHolder) SetVariable(key string, val any) {
	root := vh
	for h := vh; h != nil; h = h.parent {
		if _, ok := h.localVariables[key]; ok {
			h.SetVariableLocal(key, val)
			return
		}
		root = h
	}
	root.SetVariableLocal(key, val)
}

func (vh *VariableHolder) RemoveVariableLocal(key string) {
	if _, ok := vh.localVariables[key]; !ok {
		return
	}
	delete(vh.localVariables, key)
	vh.changed()
}

// RemoveVariable removes key from the nearest scope holding it.
func (vh *VariableHolder) RemoveVariable(key string) {
	for h := vh; h != nil; h = h.parent {
		if _, ok := h.localVariables[key]; ok {
			h.RemoveVariableLocal(key)
			return
		}
	}
}
