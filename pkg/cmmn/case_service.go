package cmmn

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	otelPkg "github.com/pbinitiative/zencmmn/pkg/otel"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

// CaseService gives access to case instances and their executions
type CaseService struct {
	engine *Engine
}

func (s *CaseService) CreateCaseInstanceByKey(caseDefinitionKey string) *CaseInstanceBuilder {
	return &CaseInstanceBuilder{engine: s.engine, caseDefinitionKey: caseDefinitionKey}
}

func (s *CaseService) CreateCaseInstanceById(caseDefinitionId string) *CaseInstanceBuilder {
	return &CaseInstanceBuilder{engine: s.engine, caseDefinitionId: caseDefinitionId}
}

// WithCaseExecution starts a command builder for the case execution
func (s *CaseService) WithCaseExecution(caseExecutionId string) *CaseExecutionCommandBuilder {
	return NewCaseExecutionCommandBuilder(s.engine.commandExecutor, caseExecutionId)
}

func (s *CaseService) CreateCaseExecutionQuery() *CaseExecutionQuery {
	return &CaseExecutionQuery{engine: s.engine}
}

func (s *CaseService) GetCaseExecution(ctx context.Context, caseExecutionId string) (runtime.CaseExecution, error) {
	e, err := s.engine.persistence.FindCaseExecutionById(ctx, caseExecutionId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return e, newNotFoundErrorf("Cannot find case execution %s", caseExecutionId)
		}
		return e, fmt.Errorf("failed to load case execution %s: %w", caseExecutionId, err)
	}
	return e, nil
}

func (s *CaseService) ManuallyStartCaseExecution(ctx context.Context, caseExecutionId string, variables map[string]any) error {
	return s.WithCaseExecution(caseExecutionId).SetVariables(variables).ManualStart(ctx)
}

func (s *CaseService) DisableCaseExecution(ctx context.Context, caseExecutionId string, variables map[string]any) error {
	return s.WithCaseExecution(caseExecutionId).SetVariables(variables).Disable(ctx)
}

func (s *CaseService) ReenableCaseExecution(ctx context.Context, caseExecutionId string, variables map[string]any) error {
	return s.WithCaseExecution(caseExecutionId).SetVariables(variables).Reenable(ctx)
}

func (s *CaseService) CompleteCaseExecution(ctx context.Context, caseExecutionId string, variables map[string]any) error {
	return s.WithCaseExecution(caseExecutionId).SetVariables(variables).Complete(ctx)
}

func (s *CaseService) CloseCaseInstance(ctx context.Context, caseInstanceId string) error {
	return s.WithCaseExecution(caseInstanceId).Close(ctx)
}

func (s *CaseService) TerminateCaseExecution(ctx context.Context, caseExecutionId string) error {
	return s.WithCaseExecution(caseExecutionId).Terminate(ctx)
}

func (s *CaseService) SetVariables(ctx context.Context, caseExecutionId string, variables map[string]any) error {
	return s.WithCaseExecution(caseExecutionId).SetVariables(variables).Execute(ctx)
}

func (s *CaseService) SetVariablesLocal(ctx context.Context, caseExecutionId string, variables map[string]any) error {
	return s.WithCaseExecution(caseExecutionId).SetVariablesLocal(variables).Execute(ctx)
}

func (s *CaseService) RemoveVariables(ctx context.Context, caseExecutionId string, names ...string) error {
	return s.WithCaseExecution(caseExecutionId).RemoveVariables(names...).Execute(ctx)
}

func (s *CaseService) RemoveVariablesLocal(ctx context.Context, caseExecutionId string, names ...string) error {
	return s.WithCaseExecution(caseExecutionId).RemoveVariablesLocal(names...).Execute(ctx)
}

// GetVariables returns every variable visible from the case execution, nearer scopes win
func (s *CaseService) GetVariables(ctx context.Context, caseExecutionId string) (map[string]any, error) {
	holder, err := s.readVariableHolder(ctx, caseExecutionId)
	if err != nil {
		return nil, err
	}
	return holder.GetVariables(), nil
}

func (s *CaseService) GetVariablesLocal(ctx context.Context, caseExecutionId string) (map[string]any, error) {
	e, err := s.GetCaseExecution(ctx, caseExecutionId)
	if err != nil {
		return nil, err
	}
	return e.Clone().Variables, nil
}

// GetVariable returns a visible variable, false when no scope holds it
func (s *CaseService) GetVariable(ctx context.Context, caseExecutionId string, name string) (any, bool, error) {
	holder, err := s.readVariableHolder(ctx, caseExecutionId)
	if err != nil {
		return nil, false, err
	}
	v, ok := holder.GetVariable(name)
	return v, ok, nil
}

func (s *CaseService) GetVariableLocal(ctx context.Context, caseExecutionId string, name string) (any, bool, error) {
	e, err := s.GetCaseExecution(ctx, caseExecutionId)
	if err != nil {
		return nil, false, err
	}
	v, ok := e.Variables[name]
	return v, ok, nil
}

// readVariableHolder builds a read only scope chain from the stored execution tree
func (s *CaseService) readVariableHolder(ctx context.Context, caseExecutionId string) (*runtime.VariableHolder, error) {
	e, err := s.GetCaseExecution(ctx, caseExecutionId)
	if err != nil {
		return nil, err
	}
	tree, err := s.engine.persistence.FindCaseExecutionsByCaseInstanceId(ctx, e.CaseInstanceId)
	if err != nil {
		return nil, fmt.Errorf("failed to load case instance %s: %w", e.CaseInstanceId, err)
	}
	byId := make(map[string]runtime.CaseExecution, len(tree))
	for _, te := range tree {
		byId[te.Id] = te
	}
	chain := []runtime.CaseExecution{e}
	for current := e; current.ParentId != ""; {
		p, ok := byId[current.ParentId]
		if !ok {
			break
		}
		chain = append(chain, p)
		current = p
	}
	var holder *runtime.VariableHolder
	for i := len(chain) - 1; i >= 0; i-- {
		holder = runtime.NewVariableHolder(holder, chain[i].Clone().Variables, nil)
	}
	return holder, nil
}

// CaseInstanceBuilder creates a case instance of the latest definition version of a key or of a definition id
type CaseInstanceBuilder struct {
	engine            *Engine
	caseDefinitionKey string
	caseDefinitionId  string
	businessKey       string
	variables         map[string]any
}

func (b *CaseInstanceBuilder) BusinessKey(businessKey string) *CaseInstanceBuilder {
	b.businessKey = businessKey
	return b
}

func (b *CaseInstanceBuilder) SetVariable(name string, value any) *CaseInstanceBuilder {
	if b.variables == nil {
		b.variables = map[string]any{}
	}
	b.variables[name] = value
	return b
}

func (b *CaseInstanceBuilder) SetVariables(variables map[string]any) *CaseInstanceBuilder {
	if b.variables == nil {
		b.variables = map[string]any{}
	}
	maps.Copy(b.variables, variables)
	return b
}

func (b *CaseInstanceBuilder) Create(ctx context.Context) (runtime.CaseInstance, error) {
	res, err := b.engine.commandExecutor.Execute(ctx, &createCaseInstanceCommand{
		caseDefinitionKey: b.caseDefinitionKey,
		caseDefinitionId:  b.caseDefinitionId,
		businessKey:       b.businessKey,
		variables:         maps.Clone(b.variables),
	})
	if err != nil {
		return runtime.CaseInstance{}, err
	}
	return caseInstanceResult(res)
}

type createCaseInstanceCommand struct {
	caseDefinitionKey string
	caseDefinitionId  string
	businessKey       string
	variables         map[string]any
}

var _ Command = &createCaseInstanceCommand{}

func (cmd *createCaseInstanceCommand) Name() string {
	return "createCaseInstance"
}

func (cmd *createCaseInstanceCommand) Execute(ctx context.Context, cc *CommandContext) (any, error) {
	definition, err := resolveCaseDefinition(ctx, cc, cmd.caseDefinitionId, cmd.caseDefinitionKey)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(otelPkg.AttributeCaseDefinitionId, definition.Id),
		attribute.String(otelPkg.AttributeCaseDefinitionKey, definition.Key),
	)
	ci, err := cc.createCaseInstance(ctx, definition, cmd.businessKey, cmd.variables)
	if err != nil {
		return nil, err
	}
	return ci.Clone(), nil
}

func resolveCaseDefinition(ctx context.Context, cc *CommandContext, id string, key string) (runtime.CaseDefinition, error) {
	switch {
	case id != "":
		return cc.getCaseDefinition(ctx, id)
	case key != "":
		d, err := cc.engine.persistence.FindLatestCaseDefinitionByKey(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return d, newNotFoundErrorf("No case definition found for key '%s'", key)
			}
			return d, fmt.Errorf("failed to load case definition %s: %w", key, err)
		}
		cc.definitions[d.Id] = d
		return d, nil
	default:
		return runtime.CaseDefinition{}, newEngineErrorf("caseDefinitionId and caseDefinitionKey are empty")
	}
}
