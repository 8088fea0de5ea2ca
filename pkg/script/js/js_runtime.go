package js

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/pbinitiative/zencmmn/pkg/script"
)

type JsRunnerFactory struct {
}

func (JsRunnerFactory) NewRunner() script.Runner {
	return newJsRunner()
}

type JsRuntime struct {
	pool *script.RunnerPool
}

var _ script.JsRuntime = &JsRuntime{}

func NewJsRuntime(ctx context.Context, maxVmPoolSize int, minVmPoolSize int) (*JsRuntime, error) {
	pool, err := script.NewRunnerPool(ctx, JsRunnerFactory{}, maxVmPoolSize, minVmPoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create js runner pool: %w", err)
	}
	return &JsRuntime{
		pool: pool,
	}, nil
}

func (r *JsRuntime) RunScript(script string) (any, error) {
	var runner = r.pool.GetRunnerFromPool()
	defer r.pool.ReturnRunnerToPool(runner)

	return runner.(*JsRunner).runScript(script)
}

func (r *JsRuntime) Evaluate(expression string, resolver script.Resolver) (any, error) {
	var runner = r.pool.GetRunnerFromPool()
	defer r.pool.ReturnRunnerToPool(runner)

	return runner.(*JsRunner).evaluate(expression, resolver)
}

type JsRunner struct {
	vm *goja.Runtime
}

func (r *JsRunner) Runner() {}

func newJsRunner() *JsRunner {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	return &JsRunner{vm: vm}
}

func (r *JsRunner) runScript(script string) (any, error) {
	resp, err := r.vm.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("error running script \"%s\" : %w", script, err)
	}
	return resp.Export(), nil
}

// evaluate binds the resolver keys for a single run, globals shadowed by a key are restored afterwards
func (r *JsRunner) evaluate(expression string, resolver script.Resolver) (any, error) {
	global := r.vm.GlobalObject()
	shadowed := map[string]goja.Value{}
	keys := resolver.KeySet()
	defer func() {
		for _, key := range keys {
			if prev, ok := shadowed[key]; ok {
				_ = global.Set(key, prev)
				continue
			}
			_ = global.Delete(key)
		}
	}()
	for _, key := range keys {
		if prev := global.Get(key); prev != nil {
			shadowed[key] = prev
		}
		if err := global.Set(key, resolver.Get(key)); err != nil {
			return nil, fmt.Errorf("failed to bind variable %s: %w", key, err)
		}
	}
	return r.runScript(expression)
}
