package cmmn

import (
	"context"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/exporter"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	otelPkg "github.com/pbinitiative/zencmmn/pkg/otel"
)

type Transition string

const (
	TransitionNone        Transition = ""
	TransitionManualStart Transition = "manualStart"
	TransitionDisable     Transition = "disable"
	TransitionReenable    Transition = "reenable"
	TransitionComplete    Transition = "complete"
	TransitionClose       Transition = "close"
	TransitionTerminate   Transition = "terminate"
)

// caseExecutionCommand applies variable changes and then an optional transition to one case execution.
type caseExecutionCommand struct {
	caseExecutionId        string
	transition             Transition
	variables              map[string]any
	variablesLocal         map[string]any
	variableDeletions      []string
	variableLocalDeletions []string
}

var _ Command = &caseExecutionCommand{}

func (cmd *caseExecutionCommand) Name() string {
	if cmd.transition == TransitionNone {
		return "caseExecutionVariables"
	}
	return string(cmd.transition) + "CaseExecution"
}

func (cmd *caseExecutionCommand) Execute(ctx context.Context, cc *CommandContext) (any, error) {
	if cmd.caseExecutionId == "" {
		return nil, newEngineErrorf("caseExecutionId is empty")
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(otelPkg.AttributeCaseExecutionId, cmd.caseExecutionId),
		attribute.String(otelPkg.AttributeTransition, string(cmd.transition)),
	)
	e, err := cc.GetCaseExecution(ctx, cmd.caseExecutionId)
	if err != nil {
		return nil, err
	}

	holder := cc.variableHolder(e)
	for _, name := range cmd.variableDeletions {
		holder.RemoveVariable(name)
	}
	for _, name := range cmd.variableLocalDeletions {
		holder.RemoveVariableLocal(name)
	}
	for _, name := range slices.Sorted(maps.Keys(cmd.variables)) {
		holder.SetVariable(name, cmd.variables[name])
	}
	for _, name := range slices.Sorted(maps.Keys(cmd.variablesLocal)) {
		holder.SetVariableLocal(name, cmd.variablesLocal[name])
	}
	if len(cmd.variables)+len(cmd.variablesLocal)+len(cmd.variableDeletions)+len(cmd.variableLocalDeletions) > 0 {
		cc.exportExecution(e, exporter.VarsUpdated)
	}

	switch cmd.transition {
	case TransitionNone:
	case TransitionManualStart:
		err = cc.manualStart(ctx, e)
	case TransitionDisable:
		err = cc.disable(ctx, e)
	case TransitionReenable:
		err = cc.reenable(ctx, e)
	case TransitionComplete:
		err = cc.completeExecution(ctx, e)
	case TransitionClose:
		err = cc.close(ctx, e)
	case TransitionTerminate:
		err = cc.terminate(ctx, e)
	default:
		err = newEngineErrorf("unknown transition %s", cmd.transition)
	}
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// CaseExecutionCommandBuilder collects variable changes for one case execution and submits them
// together with a transition. A builder must not be shared between goroutines.
type CaseExecutionCommandBuilder struct {
	commandExecutor *CommandExecutor
	commandContext  *CommandContext

	caseExecutionId        string
	variables              map[string]any
	variablesLocal         map[string]any
	variableDeletions      []string
	variableLocalDeletions []string
}

func NewCaseExecutionCommandBuilder(commandExecutor *CommandExecutor, caseExecutionId string) *CaseExecutionCommandBuilder {
	return &CaseExecutionCommandBuilder{
		commandExecutor: commandExecutor,
		caseExecutionId: caseExecutionId,
	}
}

func newCaseExecutionCommandBuilderInContext(cc *CommandContext, caseExecutionId string) *CaseExecutionCommandBuilder {
	return &CaseExecutionCommandBuilder{
		commandContext:  cc,
		caseExecutionId: caseExecutionId,
	}
}

func (b *CaseExecutionCommandBuilder) SetVariable(name string, value any) *CaseExecutionCommandBuilder {
	if b.variables == nil {
		b.variables = map[string]any{}
	}
	b.variables[name] = value
	return b
}

func (b *CaseExecutionCommandBuilder) SetVariables(variables map[string]any) *CaseExecutionCommandBuilder {
	if b.variables == nil {
		b.variables = map[string]any{}
	}
	maps.Copy(b.variables, variables)
	return b
}

func (b *CaseExecutionCommandBuilder) SetVariableLocal(name string, value any) *CaseExecutionCommandBuilder {
	if b.variablesLocal == nil {
		b.variablesLocal = map[string]any{}
	}
	b.variablesLocal[name] = value
	return b
}

func (b *CaseExecutionCommandBuilder) SetVariablesLocal(variables map[string]any) *CaseExecutionCommandBuilder {
	if b.variablesLocal == nil {
		b.variablesLocal = map[string]any{}
	}
	maps.Copy(b.variablesLocal, variables)
	return b
}

func (b *CaseExecutionCommandBuilder) RemoveVariable(name string) *CaseExecutionCommandBuilder {
	b.variableDeletions = append(b.variableDeletions, name)
	return b
}

func (b *CaseExecutionCommandBuilder) RemoveVariables(names ...string) *CaseExecutionCommandBuilder {
	b.variableDeletions = append(b.variableDeletions, names...)
	return b
}

func (b *CaseExecutionCommandBuilder) RemoveVariableLocal(name string) *CaseExecutionCommandBuilder {
	b.variableLocalDeletions = append(b.variableLocalDeletions, name)
	return b
}

func (b *CaseExecutionCommandBuilder) RemoveVariablesLocal(names ...string) *CaseExecutionCommandBuilder {
	b.variableLocalDeletions = append(b.variableLocalDeletions, names...)
	return b
}

func (b *CaseExecutionCommandBuilder) CaseExecutionId() string {
	return b.caseExecutionId
}

func (b *CaseExecutionCommandBuilder) Variables() map[string]any {
	return b.variables
}

func (b *CaseExecutionCommandBuilder) VariablesLocal() map[string]any {
	return b.variablesLocal
}

func (b *CaseExecutionCommandBuilder) VariableDeletions() []string {
	return b.variableDeletions
}

func (b *CaseExecutionCommandBuilder) VariableLocalDeletions() []string {
	return b.variableLocalDeletions
}

// Execute applies the collected variable changes without a transition
func (b *CaseExecutionCommandBuilder) Execute(ctx context.Context) error {
	return b.executeCommand(ctx, TransitionNone)
}

func (b *CaseExecutionCommandBuilder) ManualStart(ctx context.Context) error {
	return b.executeCommand(ctx, TransitionManualStart)
}

func (b *CaseExecutionCommandBuilder) Disable(ctx context.Context) error {
	return b.executeCommand(ctx, TransitionDisable)
}

func (b *CaseExecutionCommandBuilder) Reenable(ctx context.Context) error {
	return b.executeCommand(ctx, TransitionReenable)
}

func (b *CaseExecutionCommandBuilder) Complete(ctx context.Context) error {
	return b.executeCommand(ctx, TransitionComplete)
}

func (b *CaseExecutionCommandBuilder) Close(ctx context.Context) error {
	return b.executeCommand(ctx, TransitionClose)
}

func (b *CaseExecutionCommandBuilder) Terminate(ctx context.Context) error {
	return b.executeCommand(ctx, TransitionTerminate)
}

func (b *CaseExecutionCommandBuilder) command(transition Transition) *caseExecutionCommand {
	return &caseExecutionCommand{
		caseExecutionId:        b.caseExecutionId,
		transition:             transition,
		variables:              maps.Clone(b.variables),
		variablesLocal:         maps.Clone(b.variablesLocal),
		variableDeletions:      slices.Clone(b.variableDeletions),
		variableLocalDeletions: slices.Clone(b.variableLocalDeletions),
	}
}

func (b *CaseExecutionCommandBuilder) executeCommand(ctx context.Context, transition Transition) error {
	cmd := b.command(transition)
	if b.commandContext != nil {
		_, err := cmd.Execute(ctx, b.commandContext)
		return err
	}
	if b.commandExecutor == nil {
		return newEngineErrorf("commandExecutor cannot be null")
	}
	_, err := b.commandExecutor.Execute(ctx, cmd)
	return err
}

// caseInstanceResult converts a command result into a case instance
func caseInstanceResult(res any) (runtime.CaseInstance, error) {
	e, ok := res.(runtime.CaseExecution)
	if !ok {
		return runtime.CaseInstance{}, newEngineErrorf("unexpected command result %T", res)
	}
	ci, ok := runtime.NewCaseInstance(e)
	if !ok {
		return runtime.CaseInstance{}, newEngineErrorf("case execution %s is not a case instance", e.Id)
	}
	return ci, nil
}
