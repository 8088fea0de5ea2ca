package cmmn

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/variables"
	otelPkg "github.com/pbinitiative/zencmmn/pkg/otel"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

type MessageCorrelationResultType string

const (
	ResultTypeExecution      MessageCorrelationResultType = "Execution"
	ResultTypeCaseDefinition MessageCorrelationResultType = "CaseDefinition"
)

type MessageCorrelationResult struct {
	ResultType MessageCorrelationResultType
	// Execution is the event listener that was triggered
	Execution *runtime.CaseExecution
	// CaseInstance is the case instance the message started
	CaseInstance *runtime.CaseInstance
}

// MessageCorrelationBuilder correlates a message either to one waiting event listener or to
// the case definition that starts on it.
type MessageCorrelationBuilder struct {
	engine          *Engine
	messageName     string
	businessKey     string
	caseInstanceId  string
	correlationKeys map[string]any
	variables       map[string]any
}

func (engine *Engine) CreateMessageCorrelation(messageName string) *MessageCorrelationBuilder {
	return &MessageCorrelationBuilder{engine: engine, messageName: messageName}
}

func (b *MessageCorrelationBuilder) CaseInstanceBusinessKey(businessKey string) *MessageCorrelationBuilder {
	b.businessKey = businessKey
	return b
}

func (b *MessageCorrelationBuilder) CaseInstanceId(caseInstanceId string) *MessageCorrelationBuilder {
	b.caseInstanceId = caseInstanceId
	return b
}

// CorrelationKey requires the variable name visible from the waiting execution to equal value
func (b *MessageCorrelationBuilder) CorrelationKey(name string, value any) *MessageCorrelationBuilder {
	if b.correlationKeys == nil {
		b.correlationKeys = map[string]any{}
	}
	b.correlationKeys[name] = value
	return b
}

func (b *MessageCorrelationBuilder) SetVariable(name string, value any) *MessageCorrelationBuilder {
	if b.variables == nil {
		b.variables = map[string]any{}
	}
	b.variables[name] = value
	return b
}

func (b *MessageCorrelationBuilder) SetVariables(variables map[string]any) *MessageCorrelationBuilder {
	if b.variables == nil {
		b.variables = map[string]any{}
	}
	maps.Copy(b.variables, variables)
	return b
}

func (b *MessageCorrelationBuilder) Correlate(ctx context.Context) (MessageCorrelationResult, error) {
	res, err := b.engine.commandExecutor.Execute(ctx, &correlateMessageCommand{
		messageName:     b.messageName,
		businessKey:     b.businessKey,
		caseInstanceId:  b.caseInstanceId,
		correlationKeys: maps.Clone(b.correlationKeys),
		variables:       maps.Clone(b.variables),
	})
	if err != nil {
		return MessageCorrelationResult{}, err
	}
	return res.(MessageCorrelationResult), nil
}

type correlateMessageCommand struct {
	messageName     string
	businessKey     string
	caseInstanceId  string
	correlationKeys map[string]any
	variables       map[string]any
}

var _ Command = &correlateMessageCommand{}

func (cmd *correlateMessageCommand) Name() string {
	return "correlateMessage"
}

func (cmd *correlateMessageCommand) Execute(ctx context.Context, cc *CommandContext) (any, error) {
	if cmd.messageName == "" {
		return nil, newEngineErrorf("messageName is empty")
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(otelPkg.AttributeMessageName, cmd.messageName))

	matches, err := cmd.matchingExecutions(ctx, cc)
	if err != nil {
		return nil, err
	}
	var result MessageCorrelationResult
	switch {
	case len(matches) == 1:
		result, err = cmd.triggerExecution(ctx, cc, matches[0])
	case len(matches) > 1:
		return nil, newMismatchingMessageCorrelationError(cmd.messageName,
			fmt.Sprintf("Cannot correlate a message to a single execution - %d executions match the correlation keys", len(matches)))
	case cmd.caseInstanceId == "":
		result, err = cmd.instantiateCase(ctx, cc)
	default:
		err = newMismatchingMessageCorrelationError(cmd.messageName, "No case definition or execution matches the parameters")
	}
	if err != nil {
		return nil, err
	}
	messageName := cmd.messageName
	cc.onCommit(func(ctx context.Context) {
		if cc.engine.metrics == nil {
			return
		}
		cc.engine.metrics.MessagesCorrelated.Add(ctx, 1, metric.WithAttributes(
			attribute.String(otelPkg.AttributeMessageName, messageName),
			attribute.String("result", string(result.ResultType)),
		))
	})
	return result, nil
}

// matchingExecutions locks every case instance holding a candidate subscription and
// returns the waiting event listeners matching business key and correlation keys
func (cmd *correlateMessageCommand) matchingExecutions(ctx context.Context, cc *CommandContext) ([]*runtime.CaseExecution, error) {
	subs, err := cc.findSubscriptions(ctx, storage.MessageSubscriptionCriteria{
		MessageName:    cmd.messageName,
		CaseInstanceId: cmd.caseInstanceId,
		ExecutionOnly:  true,
	}, func(s runtime.MessageSubscription) bool {
		return !s.IsStartSubscription() && s.MessageName == cmd.messageName &&
			(cmd.caseInstanceId == "" || s.CaseInstanceId == cmd.caseInstanceId)
	})
	if err != nil {
		return nil, err
	}
	instanceIds := make([]string, 0, len(subs))
	for _, sub := range subs {
		if !slices.Contains(instanceIds, sub.CaseInstanceId) {
			instanceIds = append(instanceIds, sub.CaseInstanceId)
		}
	}
	slices.Sort(instanceIds)
	for _, id := range instanceIds {
		if err := cc.loadCaseInstance(ctx, id); err != nil {
			return nil, err
		}
	}

	matches := make([]*runtime.CaseExecution, 0)
	for _, sub := range subs {
		e, ok := cc.executions[sub.ExecutionId]
		if !ok || cc.deleted[e.Id] || !e.IsAvailable() || e.ActivityType != runtime.ActivityTypeEventListener {
			continue
		}
		if slices.Contains(matches, e) {
			continue
		}
		if cmd.businessKey != "" && e.BusinessKey != cmd.businessKey {
			continue
		}
		if !cmd.matchesCorrelationKeys(cc, e) {
			continue
		}
		matches = append(matches, e)
	}
	return matches, nil
}

func (cmd *correlateMessageCommand) matchesCorrelationKeys(cc *CommandContext, e *runtime.CaseExecution) bool {
	holder := cc.variableHolder(e)
	for name, expected := range cmd.correlationKeys {
		actual, ok := holder.GetVariable(name)
		if !ok || !variables.Equal(actual, expected) {
			return false
		}
	}
	return true
}

func (cmd *correlateMessageCommand) triggerExecution(ctx context.Context, cc *CommandContext, e *runtime.CaseExecution) (MessageCorrelationResult, error) {
	holder := cc.variableHolder(e)
	for _, name := range slices.Sorted(maps.Keys(cmd.variables)) {
		holder.SetVariable(name, cmd.variables[name])
	}
	if err := cc.occur(ctx, e); err != nil {
		return MessageCorrelationResult{}, err
	}
	res := e.Clone()
	return MessageCorrelationResult{ResultType: ResultTypeExecution, Execution: &res}, nil
}

func (cmd *correlateMessageCommand) instantiateCase(ctx context.Context, cc *CommandContext) (MessageCorrelationResult, error) {
	starts, err := cc.findSubscriptions(ctx, storage.MessageSubscriptionCriteria{
		MessageName: cmd.messageName,
		StartOnly:   true,
	}, func(s runtime.MessageSubscription) bool {
		return s.IsStartSubscription() && s.MessageName == cmd.messageName
	})
	if err != nil {
		return MessageCorrelationResult{}, err
	}
	switch len(starts) {
	case 0:
		return MessageCorrelationResult{}, newMismatchingMessageCorrelationError(cmd.messageName, "No case definition or execution matches the parameters")
	case 1:
	default:
		return MessageCorrelationResult{}, newMismatchingMessageCorrelationError(cmd.messageName,
			fmt.Sprintf("Cannot correlate a message to a single case definition - %d case definitions start on the message", len(starts)))
	}
	definition, err := cc.getCaseDefinition(ctx, starts[0].CaseDefinitionId)
	if err != nil {
		return MessageCorrelationResult{}, err
	}
	e, err := cc.createCaseInstance(ctx, definition, cmd.businessKey, cmd.variables)
	if err != nil {
		return MessageCorrelationResult{}, err
	}
	ci, _ := runtime.NewCaseInstance(e.Clone())
	return MessageCorrelationResult{ResultType: ResultTypeCaseDefinition, CaseInstance: &ci}, nil
}
