package cmmn

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

// CaseDefinitionQuery filters and sorts deployed case definitions.
// Invalid arguments are collected and reported when the query is executed.
type CaseDefinitionQuery struct {
	engine   *Engine
	criteria storage.CaseDefinitionCriteria
	// index into criteria.OrderBy waiting for a direction, -1 when none
	pendingOrder int
	errs         []error
}

func newCaseDefinitionQuery(engine *Engine) *CaseDefinitionQuery {
	return &CaseDefinitionQuery{engine: engine, pendingOrder: -1}
}

func (q *CaseDefinitionQuery) ensureNotEmpty(name string, value string) bool {
	if value == "" {
		q.errs = append(q.errs, newEngineErrorf("%s is empty", name))
		return false
	}
	return true
}

func (q *CaseDefinitionQuery) CaseDefinitionId(id string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("caseDefinitionId", id) {
		q.criteria.Id = id
	}
	return q
}

func (q *CaseDefinitionQuery) CaseDefinitionCategory(category string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("category", category) {
		q.criteria.Category = category
	}
	return q
}

func (q *CaseDefinitionQuery) CaseDefinitionCategoryLike(categoryLike string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("categoryLike", categoryLike) {
		q.criteria.CategoryLike = categoryLike
	}
	return q
}

func (q *CaseDefinitionQuery) CaseDefinitionName(name string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("name", name) {
		q.criteria.Name = name
	}
	return q
}

func (q *CaseDefinitionQuery) CaseDefinitionNameLike(nameLike string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("nameLike", nameLike) {
		q.criteria.NameLike = nameLike
	}
	return q
}

func (q *CaseDefinitionQuery) CaseDefinitionKey(key string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("key", key) {
		q.criteria.Key = key
	}
	return q
}

func (q *CaseDefinitionQuery) CaseDefinitionKeyLike(keyLike string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("keyLike", keyLike) {
		q.criteria.KeyLike = keyLike
	}
	return q
}

func (q *CaseDefinitionQuery) DeploymentId(deploymentId string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("deploymentId", deploymentId) {
		q.criteria.DeploymentId = deploymentId
	}
	return q
}

func (q *CaseDefinitionQuery) CaseDefinitionVersion(version int32) *CaseDefinitionQuery {
	if version <= 0 {
		q.errs = append(q.errs, newEngineErrorf("version must be positive"))
		return q
	}
	q.criteria.Version = version
	return q
}

func (q *CaseDefinitionQuery) CaseDefinitionResourceName(resourceName string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("resourceName", resourceName) {
		q.criteria.ResourceName = resourceName
	}
	return q
}

func (q *CaseDefinitionQuery) CaseDefinitionResourceNameLike(resourceNameLike string) *CaseDefinitionQuery {
	if q.ensureNotEmpty("resourceNameLike", resourceNameLike) {
		q.criteria.ResourceNameLike = resourceNameLike
	}
	return q
}

// LatestVersion keeps only the newest version of every key, only valid together with key or keyLike
func (q *CaseDefinitionQuery) LatestVersion() *CaseDefinitionQuery {
	q.criteria.Latest = true
	return q
}

func (q *CaseDefinitionQuery) orderBy(field storage.CaseDefinitionOrderField) *CaseDefinitionQuery {
	if q.pendingOrder >= 0 {
		q.errs = append(q.errs, newEngineErrorf("Invalid query: call asc() or desc() after using orderByXX()"))
	}
	q.criteria.OrderBy = append(q.criteria.OrderBy, storage.OrderBy{Field: field})
	q.pendingOrder = len(q.criteria.OrderBy) - 1
	return q
}

func (q *CaseDefinitionQuery) OrderByCaseDefinitionId() *CaseDefinitionQuery {
	return q.orderBy(storage.CaseDefinitionOrderById)
}

func (q *CaseDefinitionQuery) OrderByCaseDefinitionKey() *CaseDefinitionQuery {
	return q.orderBy(storage.CaseDefinitionOrderByKey)
}

func (q *CaseDefinitionQuery) OrderByCaseDefinitionName() *CaseDefinitionQuery {
	return q.orderBy(storage.CaseDefinitionOrderByName)
}

func (q *CaseDefinitionQuery) OrderByCaseDefinitionCategory() *CaseDefinitionQuery {
	return q.orderBy(storage.CaseDefinitionOrderByCategory)
}

func (q *CaseDefinitionQuery) OrderByCaseDefinitionVersion() *CaseDefinitionQuery {
	return q.orderBy(storage.CaseDefinitionOrderByVersion)
}

func (q *CaseDefinitionQuery) OrderByDeploymentId() *CaseDefinitionQuery {
	return q.orderBy(storage.CaseDefinitionOrderByDeploymentId)
}

func (q *CaseDefinitionQuery) direction(desc bool) *CaseDefinitionQuery {
	if q.pendingOrder < 0 {
		q.errs = append(q.errs, newEngineErrorf("You should call any of the orderBy methods first before specifying a direction"))
		return q
	}
	q.criteria.OrderBy[q.pendingOrder].Desc = desc
	q.pendingOrder = -1
	return q
}

func (q *CaseDefinitionQuery) Asc() *CaseDefinitionQuery {
	return q.direction(false)
}

func (q *CaseDefinitionQuery) Desc() *CaseDefinitionQuery {
	return q.direction(true)
}

// Criteria returns the storage criteria the query executes with
func (q *CaseDefinitionQuery) Criteria() storage.CaseDefinitionCriteria {
	return q.criteria
}

func (q *CaseDefinitionQuery) checkQueryOk() error {
	errs := append([]error{}, q.errs...)
	if q.pendingOrder >= 0 {
		errs = append(errs, newEngineErrorf("Invalid query: call asc() or desc() after using orderByXX()"))
	}
	c := q.criteria
	if c.Latest && (c.Id != "" || c.Name != "" || c.NameLike != "" || c.Version != 0 || c.DeploymentId != "") {
		errs = append(errs, newEngineErrorf("Calling latest() can only be used in combination with key(String) and keyLike(String)"))
	}
	return errors.Join(errs...)
}

func (q *CaseDefinitionQuery) List(ctx context.Context) ([]runtime.CaseDefinition, error) {
	return q.ListPage(ctx, 0, 0)
}

// ListPage returns at most maxResults definitions starting at firstResult, maxResults <= 0 means all
func (q *CaseDefinitionQuery) ListPage(ctx context.Context, firstResult int, maxResults int) ([]runtime.CaseDefinition, error) {
	if err := q.checkQueryOk(); err != nil {
		return nil, err
	}
	res, err := q.engine.persistence.FindCaseDefinitions(ctx, q.criteria, storage.Page{FirstResult: firstResult, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to find case definitions: %w", err)
	}
	return res, nil
}

func (q *CaseDefinitionQuery) Count(ctx context.Context) (int64, error) {
	if err := q.checkQueryOk(); err != nil {
		return 0, err
	}
	count, err := q.engine.persistence.CountCaseDefinitions(ctx, q.criteria)
	if err != nil {
		return 0, fmt.Errorf("failed to count case definitions: %w", err)
	}
	return count, nil
}

// SingleResult returns nil when nothing matches and an error when more than one definition matches
func (q *CaseDefinitionQuery) SingleResult(ctx context.Context) (*runtime.CaseDefinition, error) {
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
