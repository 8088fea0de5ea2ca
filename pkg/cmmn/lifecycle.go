package cmmn

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/senseyeio/duration"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/exporter"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/model/cmmn10"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	otelPkg "github.com/pbinitiative/zencmmn/pkg/otel"
)

// createCaseInstance creates the root execution of definition and activates its plan items
func (cc *CommandContext) createCaseInstance(ctx context.Context, definition runtime.CaseDefinition, businessKey string, variables map[string]any) (*runtime.CaseExecution, error) {
	model, err := cc.engine.loadCaseModel(definition)
	if err != nil {
		return nil, err
	}
	id := cc.engine.generateId()
	if err := cc.lockCaseInstance(ctx, id); err != nil {
		return nil, err
	}
	name := model.CasePlanModel.Name
	if name == "" {
		name = model.Name
	}
	caseInstance := &runtime.CaseExecution{
		Id:                id,
		CaseInstanceId:    id,
		CaseDefinitionId:  definition.Id,
		CaseDefinitionKey: definition.Key,
		BusinessKey:       businessKey,
		ActivityId:        model.CasePlanModel.Id,
		ActivityName:      name,
		ActivityType:      runtime.ActivityTypeCasePlanModel,
		State:             runtime.StateAvailable,
		Variables:         maps.Clone(variables),
		CreatedAt:         cc.now(),
	}
	cc.definitions[definition.Id] = definition
	cc.addExecution(caseInstance)
	cc.exportExecution(caseInstance, exporter.Created)

	cc.onCommit(func(ctx context.Context) {
		if cc.engine.metrics == nil {
			return
		}
		attrs := metric.WithAttributes(attribute.String(otelPkg.AttributeCaseDefinitionKey, definition.Key))
		cc.engine.metrics.CasesStarted.Add(ctx, 1, attrs)
		cc.engine.metrics.CasesRunning.Add(ctx, 1, attrs)
	})

	if err := cc.startExecution(ctx, model, caseInstance); err != nil {
		return nil, err
	}
	return caseInstance, nil
}

func (cc *CommandContext) caseModelOf(ctx context.Context, e *runtime.CaseExecution) (*cmmn10.TCase, error) {
	definition, err := cc.getCaseDefinition(ctx, e.CaseDefinitionId)
	if err != nil {
		return nil, err
	}
	return cc.engine.loadCaseModel(definition)
}

func (cc *CommandContext) setState(ctx context.Context, e *runtime.CaseExecution, state runtime.CaseExecutionState, intent exporter.Intent) {
	e.PreviousState = e.State
	e.State = state
	if state.IsFinished() && e.EndedAt == nil {
		t := cc.now()
		e.EndedAt = &t
	}
	cc.markDirty(e)
	cc.exportExecution(e, intent)
	cc.engine.logger.Debug("case execution transition", "caseExecutionId", e.Id, "activityId", e.ActivityId, "from", e.PreviousState, "to", state)

	activityType := e.ActivityType
	cc.onCommit(func(ctx context.Context) {
		if cc.engine.metrics == nil {
			return
		}
		cc.engine.metrics.Transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String(otelPkg.AttributeTransition, string(intent)),
			attribute.String(otelPkg.AttributeActivityType, string(activityType)),
		))
	})
}

// instantiateChildren creates the plan items of a stage like execution, all of them start AVAILABLE
// and are then enabled, started or left waiting for a message.
func (cc *CommandContext) instantiateChildren(ctx context.Context, model *cmmn10.TCase, parent *runtime.CaseExecution) error {
	planItems, err := model.PlanItemsOf(parent.ActivityId)
	if err != nil {
		return err
	}
	type created struct {
		execution  *runtime.CaseExecution
		planItem   *cmmn10.TPlanItem
		definition cmmn10.PlanItemDefinition
	}
	children := make([]created, 0, len(planItems))

	cc.instantiating[parent.Id] = true
	defer delete(cc.instantiating, parent.Id)
	for i := range planItems {
		pi := &planItems[i]
		def, ok := model.FindDefinition(pi.DefinitionRef)
		if !ok {
			return newEngineErrorf("plan item %s references unknown definition %s", pi.Id, pi.DefinitionRef)
		}
		name := pi.Name
		if name == "" {
			name = def.Name
		}
		child := &runtime.CaseExecution{
			Id:                cc.engine.generateId(),
			CaseInstanceId:    parent.CaseInstanceId,
			ParentId:          parent.Id,
			CaseDefinitionId:  parent.CaseDefinitionId,
			CaseDefinitionKey: parent.CaseDefinitionKey,
			BusinessKey:       parent.BusinessKey,
			ActivityId:        pi.Id,
			ActivityName:      name,
			ActivityType:      runtime.ActivityType(def.Type),
			State:             runtime.StateAvailable,
			Variables:         map[string]any{},
			CreatedAt:         cc.now(),
		}
		cc.addExecution(child)
		required, err := cc.evaluateRule(ctx, pi.RequiredRule(), child)
		if err != nil {
			return err
		}
		child.Required = required
		cc.exportExecution(child, exporter.Created)
		children = append(children, created{execution: child, planItem: pi, definition: def})
	}

	for _, c := range children {
		child := c.execution
		if child.State != runtime.StateAvailable {
			continue
		}
		if c.definition.Type == cmmn10.ElementTypeEventListener {
			if c.definition.MessageName != "" {
				cc.saveSubscription(runtime.MessageSubscription{
					Id:                cc.engine.generateId(),
					MessageName:       c.definition.MessageName,
					CaseDefinitionId:  child.CaseDefinitionId,
					CaseDefinitionKey: child.CaseDefinitionKey,
					CaseInstanceId:    child.CaseInstanceId,
					ExecutionId:       child.Id,
					ActivityId:        child.ActivityId,
					CreatedAt:         cc.now(),
				})
			}
			continue
		}
		manual, err := cc.evaluateRule(ctx, c.planItem.ManualActivationRule(), child)
		if err != nil {
			return err
		}
		if manual {
			cc.setState(ctx, child, runtime.StateEnabled, exporter.Enabled)
			continue
		}
		if err := cc.startExecution(ctx, model, child); err != nil {
			return err
		}
	}
	delete(cc.instantiating, parent.Id)
	return cc.checkCompletion(ctx, parent)
}

// startExecution activates an AVAILABLE or ENABLED execution
func (cc *CommandContext) startExecution(ctx context.Context, model *cmmn10.TCase, e *runtime.CaseExecution) error {
	cc.setState(ctx, e, runtime.StateActive, exporter.Started)
	if e.ActivityType.IsStageLike() {
		return cc.instantiateChildren(ctx, model, e)
	}
	_, def, err := planItemDefinition(model, e.ActivityId)
	if err != nil {
		return err
	}
	if !def.Blocking {
		return cc.completeExecution(ctx, e)
	}
	return nil
}

func planItemDefinition(model *cmmn10.TCase, activityId string) (*cmmn10.TPlanItem, cmmn10.PlanItemDefinition, error) {
	pi, ok := model.FindPlanItem(activityId)
	if !ok {
		return nil, cmmn10.PlanItemDefinition{}, newEngineErrorf("plan item %s not found in case %s", activityId, model.Id)
	}
	def, ok := model.FindDefinition(pi.DefinitionRef)
	if !ok {
		return nil, cmmn10.PlanItemDefinition{}, newEngineErrorf("plan item %s references unknown definition %s", pi.Id, pi.DefinitionRef)
	}
	return pi, def, nil
}

func notAllowedForCaseInstance(transition string, e *runtime.CaseExecution) error {
	return newNotAllowedErrorf("cannot %s case execution %s: it is a case instance", transition, e.Id)
}

func expectState(transition string, e *runtime.CaseExecution, expected ...runtime.CaseExecutionState) error {
	for _, s := range expected {
		if e.State == s {
			return nil
		}
	}
	want := make([]string, 0, len(expected))
	for _, s := range expected {
		want = append(want, string(s))
	}
	return newNotAllowedErrorf("cannot %s case execution %s: expected state %s but was %s", transition, e.Id, strings.Join(want, " or "), e.State)
}

func (cc *CommandContext) manualStart(ctx context.Context, e *runtime.CaseExecution) error {
	if e.IsCaseInstance() {
		return notAllowedForCaseInstance("start", e)
	}
	if err := expectState("start", e, runtime.StateEnabled); err != nil {
		return err
	}
	model, err := cc.caseModelOf(ctx, e)
	if err != nil {
		return err
	}
	return cc.startExecution(ctx, model, e)
}

func (cc *CommandContext) disable(ctx context.Context, e *runtime.CaseExecution) error {
	if e.IsCaseInstance() {
		return notAllowedForCaseInstance("disable", e)
	}
	if err := expectState("disable", e, runtime.StateEnabled); err != nil {
		return err
	}
	cc.setState(ctx, e, runtime.StateDisabled, exporter.Disabled)
	return cc.checkCompletion(ctx, cc.parent(e))
}

func (cc *CommandContext) reenable(ctx context.Context, e *runtime.CaseExecution) error {
	if e.IsCaseInstance() {
		return notAllowedForCaseInstance("re-enable", e)
	}
	if err := expectState("re-enable", e, runtime.StateDisabled); err != nil {
		return err
	}
	cc.setState(ctx, e, runtime.StateEnabled, exporter.ReEnabled)
	return nil
}

// completeExecution completes an ACTIVE execution, stages and case instances only when none of their
// children is ACTIVE and every required child is COMPLETED
func (cc *CommandContext) completeExecution(ctx context.Context, e *runtime.CaseExecution) error {
	if e.ActivityType == runtime.ActivityTypeEventListener {
		return newNotAllowedErrorf("cannot complete case execution %s: event listeners complete when their event occurs", e.Id)
	}
	if err := expectState("complete", e, runtime.StateActive); err != nil {
		return err
	}
	if e.ActivityType.IsStageLike() {
		children := cc.children(e.Id)
		for _, child := range children {
			if child.IsActive() {
				return newNotAllowedErrorf("cannot complete case execution %s: child case execution %s is active", e.Id, child.Id)
			}
			if child.Required && child.State != runtime.StateCompleted {
				return newNotAllowedErrorf("cannot complete case execution %s: required child case execution %s is %s", e.Id, child.Id, child.State)
			}
		}
		for _, child := range children {
			switch child.State {
			case runtime.StateAvailable, runtime.StateEnabled, runtime.StateDisabled:
				if err := cc.terminateExecution(ctx, child); err != nil {
					return err
				}
			}
		}
	}
	cc.setState(ctx, e, runtime.StateCompleted, exporter.Completed)
	if e.IsCaseInstance() {
		return cc.finishCaseInstance(ctx, e)
	}
	return cc.checkCompletion(ctx, cc.parent(e))
}

// terminateExecution terminates e and its unfinished descendants without checking the parent
func (cc *CommandContext) terminateExecution(ctx context.Context, e *runtime.CaseExecution) error {
	for _, child := range cc.children(e.Id) {
		if child.State.IsFinished() {
			continue
		}
		if err := cc.terminateExecution(ctx, child); err != nil {
			return err
		}
	}
	if e.ActivityType == runtime.ActivityTypeEventListener {
		if err := cc.deleteExecutionSubscriptions(ctx, e.Id); err != nil {
			return err
		}
	}
	cc.setState(ctx, e, runtime.StateTerminated, exporter.Terminated)
	return nil
}

func (cc *CommandContext) terminate(ctx context.Context, e *runtime.CaseExecution) error {
	if err := expectState("terminate", e, runtime.StateActive); err != nil {
		return err
	}
	if err := cc.terminateExecution(ctx, e); err != nil {
		return err
	}
	if e.IsCaseInstance() {
		return cc.finishCaseInstance(ctx, e)
	}
	return cc.checkCompletion(ctx, cc.parent(e))
}

func (cc *CommandContext) close(ctx context.Context, e *runtime.CaseExecution) error {
	if !e.IsCaseInstance() {
		return newNotAllowedErrorf("cannot close case execution %s: it is not a case instance", e.Id)
	}
	if err := expectState("close", e, runtime.StateCompleted, runtime.StateTerminated); err != nil {
		return err
	}
	cc.setState(ctx, e, runtime.StateClosed, exporter.Closed)
	return nil
}

// occur completes an AVAILABLE event listener
func (cc *CommandContext) occur(ctx context.Context, e *runtime.CaseExecution) error {
	if e.ActivityType != runtime.ActivityTypeEventListener {
		return newNotAllowedErrorf("cannot occur case execution %s: it is not an event listener", e.Id)
	}
	if err := expectState("occur", e, runtime.StateAvailable); err != nil {
		return err
	}
	if err := cc.deleteExecutionSubscriptions(ctx, e.Id); err != nil {
		return err
	}
	cc.setState(ctx, e, runtime.StateCompleted, exporter.Occurred)
	return cc.checkCompletion(ctx, cc.parent(e))
}

// checkCompletion completes an ACTIVE stage or case instance once its children allow it
func (cc *CommandContext) checkCompletion(ctx context.Context, parent *runtime.CaseExecution) error {
	if parent == nil || !parent.IsActive() || cc.instantiating[parent.Id] {
		return nil
	}
	model, err := cc.caseModelOf(ctx, parent)
	if err != nil {
		return err
	}
	stage, ok := model.StageOf(parent.ActivityId)
	if !ok {
		return newEngineErrorf("case execution %s does not reference a stage", parent.Id)
	}
	for _, child := range cc.children(parent.Id) {
		if stage.AutoComplete {
			if child.IsActive() || (child.Required && child.State != runtime.StateCompleted) {
				return nil
			}
			continue
		}
		if child.ActivityType == runtime.ActivityTypeEventListener && child.IsAvailable() {
			continue
		}
		switch child.State {
		case runtime.StateCompleted, runtime.StateTerminated, runtime.StateDisabled:
		default:
			return nil
		}
	}
	return cc.completeExecution(ctx, parent)
}

// finishCaseInstance sets the history removal time and releases the subscriptions of a finished case instance
func (cc *CommandContext) finishCaseInstance(ctx context.Context, caseInstance *runtime.CaseExecution) error {
	definition, err := cc.getCaseDefinition(ctx, caseInstance.CaseDefinitionId)
	if err != nil {
		return err
	}
	if definition.HistoryTimeToLive != "" && caseInstance.EndedAt != nil {
		ttl, err := duration.ParseISO8601(definition.HistoryTimeToLive)
		if err != nil {
			return fmt.Errorf("invalid history time to live of case definition %s: %w", definition.Id, err)
		}
		removal := ttl.Shift(*caseInstance.EndedAt)
		caseInstance.RemovalTime = &removal
		cc.markDirty(caseInstance)
	}
	if err := cc.deleteCaseInstanceSubscriptions(ctx, caseInstance.Id); err != nil {
		return err
	}
	cc.onCommit(func(ctx context.Context) {
		if cc.engine.metrics == nil {
			return
		}
		attrs := metric.WithAttributes(attribute.String(otelPkg.AttributeCaseDefinitionKey, definition.Key))
		cc.engine.metrics.CasesEnded.Add(ctx, 1, attrs)
		cc.engine.metrics.CasesRunning.Add(ctx, -1, attrs)
	})
	return nil
}
