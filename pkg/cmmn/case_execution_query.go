package cmmn

import (
	"context"
	"fmt"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

// CaseExecutionQuery reads case executions without locking their case instances
type CaseExecutionQuery struct {
	engine   *Engine
	criteria storage.CaseExecutionCriteria
}

func (q *CaseExecutionQuery) CaseExecutionId(id string) *CaseExecutionQuery {
	q.criteria.Id = id
	return q
}

func (q *CaseExecutionQuery) CaseInstanceId(caseInstanceId string) *CaseExecutionQuery {
	q.criteria.CaseInstanceId = caseInstanceId
	return q
}

func (q *CaseExecutionQuery) CaseDefinitionId(caseDefinitionId string) *CaseExecutionQuery {
	q.criteria.CaseDefinitionId = caseDefinitionId
	return q
}

func (q *CaseExecutionQuery) CaseDefinitionKey(caseDefinitionKey string) *CaseExecutionQuery {
	q.criteria.CaseDefinitionKey = caseDefinitionKey
	return q
}

func (q *CaseExecutionQuery) CaseInstanceBusinessKey(businessKey string) *CaseExecutionQuery {
	q.criteria.BusinessKey = businessKey
	return q
}

func (q *CaseExecutionQuery) ActivityId(activityId string) *CaseExecutionQuery {
	q.criteria.ActivityId = activityId
	return q
}

// State may be called repeatedly, executions in any of the given states match
func (q *CaseExecutionQuery) State(states ...runtime.CaseExecutionState) *CaseExecutionQuery {
	q.criteria.States = append(q.criteria.States, states...)
	return q
}

func (q *CaseExecutionQuery) Active() *CaseExecutionQuery {
	return q.State(runtime.StateActive)
}

func (q *CaseExecutionQuery) Enabled() *CaseExecutionQuery {
	return q.State(runtime.StateEnabled)
}

func (q *CaseExecutionQuery) Disabled() *CaseExecutionQuery {
	return q.State(runtime.StateDisabled)
}

func (q *CaseExecutionQuery) Available() *CaseExecutionQuery {
	return q.State(runtime.StateAvailable)
}

func (q *CaseExecutionQuery) OnlyCaseInstances() *CaseExecutionQuery {
	q.criteria.OnlyCaseInstances = true
	return q
}

func (q *CaseExecutionQuery) List(ctx context.Context) ([]runtime.CaseExecution, error) {
	return q.ListPage(ctx, 0, 0)
}

func (q *CaseExecutionQuery) ListPage(ctx context.Context, firstResult int, maxResults int) ([]runtime.CaseExecution, error) {
	res, err := q.engine.persistence.FindCaseExecutions(ctx, q.criteria, storage.Page{FirstResult: firstResult, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to find case executions: %w", err)
	}
	return res, nil
}

func (q *CaseExecutionQuery) Count(ctx context.Context) (int64, error) {
	count, err := q.engine.persistence.CountCaseExecutions(ctx, q.criteria)
	if err != nil {
		return 0, fmt.Errorf("failed to count case executions: %w", err)
	}
	return count, nil
}

// SingleResult returns nil when nothing matches and an error when more than one execution matches
func (q *CaseExecutionQuery) SingleResult(ctx context.Context) (*runtime.CaseExecution, error) {
	res, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	switch len(res) {
	case 0:
		return nil, nil
	case 1:
		return &res[0], nil
	default:
		return nil, newEngineErrorf("Query return %d results instead of max 1", len(res))
	}
}
