package cmmn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/exporter"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
)

const historyCleanupBatchSize = 100

// CleanupHistory deletes CLOSED case instances whose removal time is not after now.
// It returns the number of removed case instances.
func (engine *Engine) CleanupHistory(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for {
		instances, err := engine.persistence.FindCaseInstancesToCleanup(ctx, now, historyCleanupBatchSize)
		if err != nil {
			return removed, fmt.Errorf("failed to find case instances to clean up: %w", err)
		}
		var errs []error
		for _, ci := range instances {
			if _, err := engine.commandExecutor.Execute(ctx, &deleteCaseInstanceCommand{caseInstanceId: ci.Id}); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
		if len(errs) > 0 {
			return removed, errors.Join(errs...)
		}
		if len(instances) < historyCleanupBatchSize {
			return removed, nil
		}
	}
}

type deleteCaseInstanceCommand struct {
	caseInstanceId string
}

var _ Command = &deleteCaseInstanceCommand{}

func (cmd *deleteCaseInstanceCommand) Name() string {
	return "deleteCaseInstance"
}

func (cmd *deleteCaseInstanceCommand) Execute(ctx context.Context, cc *CommandContext) (any, error) {
	ci, err := cc.GetCaseExecution(ctx, cmd.caseInstanceId)
	if err != nil {
		return nil, err
	}
	if !ci.IsCaseInstance() {
		return nil, newEngineErrorf("case execution %s is not a case instance", ci.Id)
	}
	if ci.State != runtime.StateClosed {
		return nil, newNotAllowedErrorf("cannot delete case instance %s: expected state %s but was %s", ci.Id, runtime.StateClosed, ci.State)
	}
	cc.deleteCascade(ci)
	if err := cc.deleteCaseInstanceSubscriptions(ctx, ci.Id); err != nil {
		return nil, err
	}
	return nil, nil
}

// deleteCascade deletes the leaves of the tree first and e last
func (cc *CommandContext) deleteCascade(e *runtime.CaseExecution) {
	for _, child := range cc.children(e.Id) {
		cc.deleteCascade(child)
	}
	cc.deleteExecution(e)
	cc.exportExecution(e, exporter.Deleted)
}
