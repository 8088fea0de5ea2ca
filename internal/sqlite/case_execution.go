package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/variables"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

const caseExecutionColumns = "id, case_instance_id, parent_id, case_definition_id, case_definition_key, business_key, activity_id, activity_name, activity_type, state, previous_state, required, variables, created_at, ended_at, removal_time"

// roots first, then by creation
const caseExecutionOrder = " ORDER BY (parent_id = '') DESC, created_at, id"

func scanCaseExecution(rows *sql.Rows) (runtime.CaseExecution, error) {
	var (
		e           runtime.CaseExecution
		vars        string
		createdAt   int64
		endedAt     sql.NullInt64
		removalTime sql.NullInt64
	)
	err := rows.Scan(&e.Id, &e.CaseInstanceId, &e.ParentId, &e.CaseDefinitionId, &e.CaseDefinitionKey, &e.BusinessKey,
		&e.ActivityId, &e.ActivityName, &e.ActivityType, &e.State, &e.PreviousState, &e.Required, &vars,
		&createdAt, &endedAt, &removalTime)
	if err != nil {
		return e, err
	}
	e.Variables, err = variables.Decode([]byte(vars))
	if err != nil {
		return e, fmt.Errorf("case execution %s: %w", e.Id, err)
	}
	e.CreatedAt = fromMillis(createdAt)
	e.EndedAt = fromNullMillis(endedAt)
	e.RemovalTime = fromNullMillis(removalTime)
	return e, nil
}

func saveCaseExecutionStatement(e runtime.CaseExecution) (statement, error) {
	vars, err := variables.Encode(e.Variables)
	if err != nil {
		return statement{}, fmt.Errorf("failed to encode variables of case execution %s: %w", e.Id, err)
	}
	return statement{
		query: "INSERT OR REPLACE INTO case_execution (" + caseExecutionColumns + ") VALUES (" + placeholders(16) + ")",
		args: []any{e.Id, e.CaseInstanceId, e.ParentId, e.CaseDefinitionId, e.CaseDefinitionKey, e.BusinessKey,
			e.ActivityId, e.ActivityName, string(e.ActivityType), string(e.State), string(e.PreviousState), e.Required, string(vars),
			toMillis(e.CreatedAt), toNullMillis(e.EndedAt), toNullMillis(e.RemovalTime)},
	}, nil
}

func deleteCaseExecutionStatement(id string) statement {
	return statement{query: "DELETE FROM case_execution WHERE id = ?", args: []any{id}}
}

func caseExecutionWhere(c storage.CaseExecutionCriteria) *where {
	w := &where{}
	w.addIf(c.Id != "", "id = ?", c.Id)
	w.addIf(c.CaseInstanceId != "", "case_instance_id = ?", c.CaseInstanceId)
	w.addIf(c.CaseDefinitionId != "", "case_definition_id = ?", c.CaseDefinitionId)
	w.addIf(c.CaseDefinitionKey != "", "case_definition_key = ?", c.CaseDefinitionKey)
	w.addIf(c.BusinessKey != "", "business_key = ?", c.BusinessKey)
	w.addIf(c.ActivityId != "", "activity_id = ?", c.ActivityId)
	w.addIf(c.OnlyCaseInstances, "parent_id = ''")
	if len(c.States) > 0 {
		states := make([]any, 0, len(c.States))
		for _, s := range c.States {
			states = append(states, string(s))
		}
		w.add("state IN ("+placeholders(len(states))+")", states...)
	}
	return w
}

func (d *DB) findCaseExecutions(ctx context.Context, query string, args []any) ([]runtime.CaseExecution, error) {
	res := make([]runtime.CaseExecution, 0)
	err := d.queryRows(ctx, query, args, func(rows *sql.Rows) error {
		e, err := scanCaseExecution(rows)
		if err != nil {
			return err
		}
		res = append(res, e)
		return nil
	})
	return res, err
}

var _ storage.CaseExecutionStorageReader = &DB{}

func (d *DB) FindCaseExecutionById(ctx context.Context, id string) (runtime.CaseExecution, error) {
	res, err := d.findCaseExecutions(ctx, "SELECT "+caseExecutionColumns+" FROM case_execution WHERE id = ?", []any{id})
	if err != nil {
		return runtime.CaseExecution{}, err
	}
	if len(res) == 0 {
		return runtime.CaseExecution{}, storage.ErrNotFound
	}
	return res[0], nil
}

func (d *DB) FindCaseExecutionsByCaseInstanceId(ctx context.Context, caseInstanceId string) ([]runtime.CaseExecution, error) {
	return d.findCaseExecutions(ctx,
		"SELECT "+caseExecutionColumns+" FROM case_execution WHERE case_instance_id = ?"+caseExecutionOrder,
		[]any{caseInstanceId})
}

func (d *DB) FindCaseExecutions(ctx context.Context, criteria storage.CaseExecutionCriteria, page storage.Page) ([]runtime.CaseExecution, error) {
	w := caseExecutionWhere(criteria)
	query := "SELECT " + caseExecutionColumns + " FROM case_execution" + w.String() + caseExecutionOrder +
		limit(page.FirstResult, page.MaxResults)
	return d.findCaseExecutions(ctx, query, w.args)
}

func (d *DB) CountCaseExecutions(ctx context.Context, criteria storage.CaseExecutionCriteria) (int64, error) {
	w := caseExecutionWhere(criteria)
	return d.count(ctx, "SELECT COUNT(*) FROM case_execution"+w.String(), w.args)
}

func (d *DB) FindCaseInstancesToCleanup(ctx context.Context, now time.Time, limitTo int) ([]runtime.CaseExecution, error) {
	query := "SELECT " + caseExecutionColumns + " FROM case_execution" +
		" WHERE parent_id = '' AND state = ? AND removal_time IS NOT NULL AND removal_time <= ?" +
		" ORDER BY removal_time, id" + limit(0, limitTo)
	return d.findCaseExecutions(ctx, query, []any{string(runtime.StateClosed), toMillis(now)})
}

var _ storage.CaseExecutionStorageWriter = &DB{}

func (d *DB) SaveCaseExecution(ctx context.Context, execution runtime.CaseExecution) error {
	stmt, err := saveCaseExecutionStatement(execution)
	if err != nil {
		return err
	}
	return d.exec(ctx, stmt)
}

func (d *DB) DeleteCaseExecution(ctx context.Context, id string) error {
	return d.exec(ctx, deleteCaseExecutionStatement(id))
}
