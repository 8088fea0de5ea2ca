// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package cmmn

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pbinitiative/zencmmn/internal/appcontext"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/exporter"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	otelPkg "github.com/pbinitiative/zencmmn/pkg/otel"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

// Command is a unit of work executed by the CommandExecutor.
// Everything a command changes through its CommandContext is committed together.
type Command interface {
	Name() string
	Execute(ctx context.Context, cc *CommandContext) (any, error)
}

type CommandExecutor struct {
	engine *Engine
}

// Execute runs cmd in a fresh CommandContext and flushes its changes in one storage batch.
// When cmd fails nothing is written.
func (ce *CommandExecutor) Execute(ctx context.Context, cmd Command) (any, error) {
	engine := ce.engine
	ctx, span := engine.tracer.Start(ctx, "command:"+cmd.Name(), trace.WithAttributes(
		attribute.String(otelPkg.AttributeCommand, cmd.Name()),
	))
	defer span.End()
	ctx = appcontext.WithCommand(ctx, cmd.Name())

	cc := newCommandContext(engine)
	defer cc.unlockAll()

	res, err := cmd.Execute(ctx, cc)
	if err == nil {
		err = cc.flush(ctx)
	}
	if err != nil {
		cc.discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if engine.metrics != nil {
			engine.metrics.CommandsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String(otelPkg.AttributeCommand, cmd.Name())))
		}
		engine.logger.Debug("command failed", "command", cmd.Name(), "err", err)
		return nil, err
	}
	cc.afterCommit(ctx)
	if engine.metrics != nil {
		engine.metrics.CommandsExecuted.Add(ctx, 1, metric.WithAttributes(attribute.String(otelPkg.AttributeCommand, cmd.Name())))
	}
	return res, nil
}

// CommandContext tracks every execution, subscription and definition a command touched.
// Whole case instance trees are loaded and locked on first access.
type CommandContext struct {
	engine *Engine

	executions    map[string]*runtime.CaseExecution
	order         []string
	holders       map[string]*runtime.VariableHolder
	instances     map[string]bool
	dirty         []string
	dirtySet      map[string]bool
	deleted       map[string]bool
	deleteOrder   []string
	definitions   map[string]runtime.CaseDefinition
	newDefs       []string
	subsToSave    map[string]runtime.MessageSubscription
	subsOrder     []string
	subsToDelete  map[string]bool
	instantiating map[string]bool
	locked        []string

	executionEvents  []*exporter.CaseExecutionEvent
	definitionEvents []*exporter.CaseDefinitionEvent
	postCommit       []func(ctx context.Context)
}

func newCommandContext(engine *Engine) *CommandContext {
	return &CommandContext{
		engine:        engine,
		executions:    map[string]*runtime.CaseExecution{},
		holders:       map[string]*runtime.VariableHolder{},
		instances:     map[string]bool{},
		dirtySet:      map[string]bool{},
		deleted:       map[string]bool{},
		definitions:   map[string]runtime.CaseDefinition{},
		subsToSave:    map[string]runtime.MessageSubscription{},
		subsToDelete:  map[string]bool{},
		instantiating: map[string]bool{},
	}
}

func (cc *CommandContext) Engine() *Engine {
	return cc.engine
}

func (cc *CommandContext) now() time.Time {
	return cc.engine.now()
}

// CaseExecution returns a builder whose commands run inside this context.
func (cc *CommandContext) CaseExecution(caseExecutionId string) *CaseExecutionCommandBuilder {
	return newCaseExecutionCommandBuilderInContext(cc, caseExecutionId)
}

// lockCaseInstance acquires the per instance lock once per command
func (cc *CommandContext) lockCaseInstance(ctx context.Context, caseInstanceId string) error {
	if slices.Contains(cc.locked, caseInstanceId) {
		return nil
	}
	if err := cc.engine.runningInstances.lockInstance(ctx, caseInstanceId); err != nil {
		return fmt.Errorf("failed to lock case instance %s: %w", caseInstanceId, err)
	}
	cc.locked = append(cc.locked, caseInstanceId)
	return nil
}

func (cc *CommandContext) unlockAll() {
	for _, id := range cc.locked {
		cc.engine.runningInstances.unlockInstance(id)
	}
	cc.locked = nil
}

// GetCaseExecution returns the execution as seen by this command,
// changes to the returned execution must go through the context.
func (cc *CommandContext) GetCaseExecution(ctx context.Context, id string) (*runtime.CaseExecution, error) {
	if cc.deleted[id] {
		return nil, newNotFoundErrorf("Cannot find case execution %s", id)
	}
	if e, ok := cc.executions[id]; ok {
		return e, nil
	}
	stored, err := cc.engine.persistence.FindCaseExecutionById(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newNotFoundErrorf("Cannot find case execution %s", id)
		}
		return nil, fmt.Errorf("failed to load case execution %s: %w", id, err)
	}
	if err := cc.loadCaseInstance(ctx, stored.CaseInstanceId); err != nil {
		return nil, err
	}
	e, ok := cc.executions[id]
	if !ok {
		return nil, newNotFoundErrorf("Cannot find case execution %s", id)
	}
	return e, nil
}

// loadCaseInstance locks the instance and loads its whole execution tree
func (cc *CommandContext) loadCaseInstance(ctx context.Context, caseInstanceId string) error {
	if cc.instances[caseInstanceId] {
		return nil
	}
	if err := cc.lockCaseInstance(ctx, caseInstanceId); err != nil {
		return err
	}
	tree, err := cc.engine.persistence.FindCaseExecutionsByCaseInstanceId(ctx, caseInstanceId)
	if err != nil {
		return fmt.Errorf("failed to load case instance %s: %w", caseInstanceId, err)
	}
	for _, stored := range tree {
		if _, ok := cc.executions[stored.Id]; ok {
			continue
		}
		e := stored.Clone()
		cc.executions[e.Id] = &e
		cc.order = append(cc.order, e.Id)
	}
	cc.instances[caseInstanceId] = true
	return nil
}

func (cc *CommandContext) addExecution(e *runtime.CaseExecution) {
	if e.Variables == nil {
		e.Variables = map[string]any{}
	}
	cc.executions[e.Id] = e
	cc.order = append(cc.order, e.Id)
	if e.IsCaseInstance() {
		cc.instances[e.Id] = true
	}
	cc.markDirty(e)
}

func (cc *CommandContext) markDirty(e *runtime.CaseExecution) {
	if cc.dirtySet[e.Id] {
		return
	}
	cc.dirtySet[e.Id] = true
	cc.dirty = append(cc.dirty, e.Id)
}

func (cc *CommandContext) deleteExecution(e *runtime.CaseExecution) {
	if cc.deleted[e.Id] {
		return
	}
	cc.deleted[e.Id] = true
	cc.deleteOrder = append(cc.deleteOrder, e.Id)
	delete(cc.holders, e.Id)
}

func (cc *CommandContext) parent(e *runtime.CaseExecution) *runtime.CaseExecution {
	if e.ParentId == "" {
		return nil
	}
	return cc.executions[e.ParentId]
}

// children returns the direct children of an execution in creation order
func (cc *CommandContext) children(parentId string) []*runtime.CaseExecution {
	res := make([]*runtime.CaseExecution, 0)
	for _, id := range cc.order {
		e := cc.executions[id]
		if e.ParentId == parentId && !cc.deleted[id] {
			res = append(res, e)
		}
	}
	return res
}

// variableHolder returns the variable scope chain of an execution, mutations mark it dirty
func (cc *CommandContext) variableHolder(e *runtime.CaseExecution) *runtime.VariableHolder {
	if h, ok := cc.holders[e.Id]; ok {
		return h
	}
	var parentHolder *runtime.VariableHolder
	if p := cc.parent(e); p != nil {
		parentHolder = cc.variableHolder(p)
	}
	if e.Variables == nil {
		e.Variables = map[string]any{}
	}
	h := runtime.NewVariableHolder(parentHolder, e.Variables, func() {
		cc.markDirty(e)
	})
	cc.holders[e.Id] = h
	return h
}

func (cc *CommandContext) getCaseDefinition(ctx context.Context, id string) (runtime.CaseDefinition, error) {
	if d, ok := cc.definitions[id]; ok {
		return d, nil
	}
	d, err := cc.engine.persistence.FindCaseDefinitionById(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return d, newNotFoundErrorf("No case definition found for id '%s'", id)
		}
		return d, fmt.Errorf("failed to load case definition %s: %w", id, err)
	}
	cc.definitions[id] = d
	return d, nil
}

func (cc *CommandContext) saveCaseDefinition(d runtime.CaseDefinition) {
	cc.definitions[d.Id] = d
	cc.newDefs = append(cc.newDefs, d.Id)
}

func (cc *CommandContext) saveSubscription(sub runtime.MessageSubscription) {
	if _, ok := cc.subsToSave[sub.Id]; !ok {
		cc.subsOrder = append(cc.subsOrder, sub.Id)
	}
	cc.subsToSave[sub.Id] = sub
	delete(cc.subsToDelete, sub.Id)
}

func (cc *CommandContext) deleteSubscription(id string) {
	delete(cc.subsToSave, id)
	cc.subsToDelete[id] = true
}

// findSubscriptions merges stored subscriptions with the ones pending in this command
func (cc *CommandContext) findSubscriptions(ctx context.Context, criteria storage.MessageSubscriptionCriteria, match func(runtime.MessageSubscription) bool) ([]runtime.MessageSubscription, error) {
	stored, err := cc.engine.persistence.FindMessageSubscriptions(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to find message subscriptions: %w", err)
	}
	res := make([]runtime.MessageSubscription, 0, len(stored))
	for _, sub := range stored {
		if cc.subsToDelete[sub.Id] {
			continue
		}
		if _, pending := cc.subsToSave[sub.Id]; pending {
			continue
		}
		res = append(res, sub)
	}
	for _, id := range cc.subsOrder {
		sub, ok := cc.subsToSave[id]
		if ok && match(sub) {
			res = append(res, sub)
		}
	}
	return res, nil
}

func (cc *CommandContext) deleteExecutionSubscriptions(ctx context.Context, executionId string) error {
	subs, err := cc.findSubscriptions(ctx, storage.MessageSubscriptionCriteria{ExecutionId: executionId}, func(s runtime.MessageSubscription) bool {
		return s.ExecutionId == executionId
	})
	if err != nil {
		return err
	}
	for _, sub := range subs {
		cc.deleteSubscription(sub.Id)
	}
	return nil
}

func (cc *CommandContext) deleteCaseInstanceSubscriptions(ctx context.Context, caseInstanceId string) error {
	subs, err := cc.findSubscriptions(ctx, storage.MessageSubscriptionCriteria{CaseInstanceId: caseInstanceId}, func(s runtime.MessageSubscription) bool {
		return s.CaseInstanceId == caseInstanceId
	})
	if err != nil {
		return err
	}
	for _, sub := range subs {
		cc.deleteSubscription(sub.Id)
	}
	return nil
}

func (cc *CommandContext) exportExecution(e *runtime.CaseExecution, intent exporter.Intent) {
	cc.executionEvents = append(cc.executionEvents, &exporter.CaseExecutionEvent{
		CaseDefinitionId: e.CaseDefinitionId,
		CaseInstanceId:   e.CaseInstanceId,
		CaseExecutionId:  e.Id,
		ActivityId:       e.ActivityId,
		ActivityType:     string(e.ActivityType),
		State:            string(e.State),
		Intent:           intent,
		Timestamp:        cc.now(),
	})
}

func (cc *CommandContext) exportDefinition(d runtime.CaseDefinition) {
	cc.definitionEvents = append(cc.definitionEvents, &exporter.CaseDefinitionEvent{
		CaseDefinitionId:  d.Id,
		CaseDefinitionKey: d.Key,
		Version:           d.Version,
		DeploymentId:      d.DeploymentId,
		ResourceName:      d.ResourceName,
		Checksum:          d.Checksum,
		XmlData:           d.Data,
	})
}

// onCommit registers fn to run after the command was flushed
func (cc *CommandContext) onCommit(fn func(ctx context.Context)) {
	cc.postCommit = append(cc.postCommit, fn)
}

func (cc *CommandContext) flush(ctx context.Context) error {
	batch := cc.engine.persistence.NewBatch()
	var errs []error
	for _, id := range cc.newDefs {
		errs = append(errs, batch.SaveCaseDefinition(ctx, cc.definitions[id]))
	}
	for _, id := range cc.dirty {
		if cc.deleted[id] {
			continue
		}
		errs = append(errs, batch.SaveCaseExecution(ctx, *cc.executions[id]))
	}
	for _, id := range cc.deleteOrder {
		errs = append(errs, batch.DeleteCaseExecution(ctx, id))
	}
	for _, id := range cc.subsOrder {
		if sub, ok := cc.subsToSave[id]; ok {
			errs = append(errs, batch.SaveMessageSubscription(ctx, sub))
		}
	}
	for id := range cc.subsToDelete {
		errs = append(errs, batch.DeleteMessageSubscription(ctx, id))
	}
	if err := errors.Join(errs...); err != nil {
		batch.Clear()
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	if err := batch.Flush(ctx); err != nil {
		batch.Clear()
		return fmt.Errorf("failed to flush batch: %w", err)
	}
	return nil
}

func (cc *CommandContext) discard() {
	cc.executions = map[string]*runtime.CaseExecution{}
	cc.order = nil
	cc.holders = map[string]*runtime.VariableHolder{}
	cc.dirty = nil
	cc.dirtySet = map[string]bool{}
	cc.deleteOrder = nil
	cc.subsToSave = map[string]runtime.MessageSubscription{}
	cc.subsOrder = nil
	cc.subsToDelete = map[string]bool{}
	cc.newDefs = nil
	cc.executionEvents = nil
	cc.definitionEvents = nil
	cc.postCommit = nil
}

func (cc *CommandContext) afterCommit(ctx context.Context) {
	for _, exp := range cc.engine.exporters {
		for _, event := range cc.definitionEvents {
			exp.NewCaseDefinitionEvent(event)
		}
		for _, event := range cc.executionEvents {
			exp.NewCaseExecutionEvent(event)
		}
	}
	for _, fn := range cc.postCommit {
		fn(ctx)
	}
}
