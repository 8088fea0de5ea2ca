package cmmn

import (
	"fmt"
	"strings"

	"github.com/pbinitiative/feel"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
)

// isFeelExpression reports whether a condition body is a FEEL expression (`=` prefixed)
func isFeelExpression(expression string) bool {
	return strings.HasPrefix(strings.TrimSpace(expression), "=")
}

// evaluateFeel evaluates a `=` prefixed FEEL expression against the variables visible from holder
func evaluateFeel(expression string, holder *runtime.VariableHolder) (res any, err error) {
	expression = strings.TrimPrefix(strings.TrimSpace(expression), "=")
	variableContext := holder.GetVariables()
	for name, v := range variableContext {
		variableContext[name] = feelValue(v)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feel evaluation panicked: %v", r)
		}
	}()
	return feel.EvalStringWithScope(expression, variableContext)
}

// feelValue widens fixed size numbers to the int and float64 values the FEEL interpreter binds
func feelValue(v any) any {
	switch n := v.(type) {
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return float64(n)
	}
	return v
}
