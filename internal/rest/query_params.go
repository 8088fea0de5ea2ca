package rest

import (
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/pbinitiative/zencmmn/pkg/cmmn"
)

type pageParams struct {
	FirstResult *int
	MaxResults  *int
}

func (p *pageParams) bind(r *http.Request) error {
	if err := bindQuery(r, "firstResult", &p.FirstResult); err != nil {
		return err
	}
	if err := bindQuery(r, "maxResults", &p.MaxResults); err != nil {
		return err
	}
	if deref(p.FirstResult) < 0 || deref(p.MaxResults) < 0 {
		return fmt.Errorf("firstResult and maxResults must not be negative")
	}
	return nil
}

// page returns first and max results, zero means unset
func (p pageParams) page() (int, int) {
	return deref(p.FirstResult), deref(p.MaxResults)
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

// bindQuery binds an optional form parameter, dest must point to a pointer field
func bindQuery(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("Invalid format for parameter %s: %w", name, err)
	}
	return nil
}

type caseDefinitionQueryParams struct {
	pageParams
	Id               *string
	Key              *string
	KeyLike          *string
	Name             *string
	NameLike         *string
	Category         *string
	CategoryLike     *string
	DeploymentId     *string
	ResourceName     *string
	ResourceNameLike *string
	Version          *int32
	LatestVersion    *bool
	SortBy           *string
	SortOrder        *string
}

func bindCaseDefinitionQueryParams(r *http.Request, paged bool) (caseDefinitionQueryParams, error) {
	var p caseDefinitionQueryParams
	bindings := []struct {
		name string
		dest any
	}{
		{"caseDefinitionId", &p.Id},
		{"key", &p.Key},
		{"keyLike", &p.KeyLike},
		{"name", &p.Name},
		{"nameLike", &p.NameLike},
		{"category", &p.Category},
		{"categoryLike", &p.CategoryLike},
		{"deploymentId", &p.DeploymentId},
		{"resourceName", &p.ResourceName},
		{"resourceNameLike", &p.ResourceNameLike},
		{"version", &p.Version},
		{"latestVersion", &p.LatestVersion},
		{"sortBy", &p.SortBy},
		{"sortOrder", &p.SortOrder},
	}
	for _, b := range bindings {
		if err := bindQuery(r, b.name, b.dest); err != nil {
			return p, err
		}
	}
	if (p.SortBy == nil) != (p.SortOrder == nil) {
		return p, fmt.Errorf("Only a single sorting parameter specified. sortBy and sortOrder required")
	}
	if p.SortOrder != nil && *p.SortOrder != "asc" && *p.SortOrder != "desc" {
		return p, fmt.Errorf("Cannot set query parameter 'sortOrder' to value '%s'", *p.SortOrder)
	}
	if paged {
		if err := p.pageParams.bind(r); err != nil {
			return p, err
		}
	}
	return p, nil
}

// query builds the engine query, invalid combinations surface when the query is executed
func (p caseDefinitionQueryParams) query(engine *cmmn.Engine) (*cmmn.CaseDefinitionQuery, error) {
	q := engine.RepositoryService().CreateCaseDefinitionQuery()
	if p.Id != nil {
		q.CaseDefinitionId(*p.Id)
	}
	if p.Key != nil {
		q.CaseDefinitionKey(*p.Key)
	}
	if p.KeyLike != nil {
		q.CaseDefinitionKeyLike(*p.KeyLike)
	}
	if p.Name != nil {
		q.CaseDefinitionName(*p.Name)
	}
	if p.NameLike != nil {
		q.CaseDefinitionNameLike(*p.NameLike)
	}
	if p.Category != nil {
		q.CaseDefinitionCategory(*p.Category)
	}
	if p.CategoryLike != nil {
		q.CaseDefinitionCategoryLike(*p.CategoryLike)
	}
	if p.DeploymentId != nil {
		q.DeploymentId(*p.DeploymentId)
	}
	if p.ResourceName != nil {
		q.CaseDefinitionResourceName(*p.ResourceName)
	}
	if p.ResourceNameLike != nil {
		q.CaseDefinitionResourceNameLike(*p.ResourceNameLike)
	}
	if p.Version != nil {
		q.CaseDefinitionVersion(*p.Version)
	}
	if deref(p.LatestVersion) {
		q.LatestVersion()
	}
	if p.SortBy != nil {
		switch *p.SortBy {
		case "id":
			q.OrderByCaseDefinitionId()
		case "key":
			q.OrderByCaseDefinitionKey()
		case "name":
			q.OrderByCaseDefinitionName()
		case "category":
			q.OrderByCaseDefinitionCategory()
		case "version":
			q.OrderByCaseDefinitionVersion()
		case "deploymentId":
			q.OrderByDeploymentId()
		default:
			return nil, fmt.Errorf("Cannot set query parameter 'sortBy' to value '%s'", *p.SortBy)
		}
		if deref(p.SortOrder) == "desc" {
			q.Desc()
		} else {
			q.Asc()
		}
	}
	return q, nil
}

type caseExecutionQueryParams struct {
	pageParams
	Id                *string
	CaseInstanceId    *string
	BusinessKey       *string
	CaseDefinitionId  *string
	CaseDefinitionKey *string
	ActivityId        *string
	Active            *bool
	Enabled           *bool
	Disabled          *bool
	Available         *bool
}

func bindCaseExecutionQueryParams(r *http.Request) (caseExecutionQueryParams, error) {
	var p caseExecutionQueryParams
	bindings := []struct {
		name string
		dest any
	}{
		{"caseExecutionId", &p.Id},
		{"caseInstanceId", &p.CaseInstanceId},
		{"businessKey", &p.BusinessKey},
		{"caseDefinitionId", &p.CaseDefinitionId},
		{"caseDefinitionKey", &p.CaseDefinitionKey},
		{"activityId", &p.ActivityId},
		{"active", &p.Active},
		{"enabled", &p.Enabled},
		{"disabled", &p.Disabled},
		{"available", &p.Available},
	}
	for _, b := range bindings {
		if err := bindQuery(r, b.name, b.dest); err != nil {
			return p, err
		}
	}
	return p, p.pageParams.bind(r)
}

func (p caseExecutionQueryParams) query(engine *cmmn.Engine) *cmmn.CaseExecutionQuery {
	q := engine.CaseService().CreateCaseExecutionQuery()
	if p.Id != nil {
		q.CaseExecutionId(*p.Id)
	}
	if p.CaseInstanceId != nil {
		q.CaseInstanceId(*p.CaseInstanceId)
	}
	if p.BusinessKey != nil {
		q.CaseInstanceBusinessKey(*p.BusinessKey)
	}
	if p.CaseDefinitionId != nil {
		q.CaseDefinitionId(*p.CaseDefinitionId)
	}
	if p.CaseDefinitionKey != nil {
		q.CaseDefinitionKey(*p.CaseDefinitionKey)
	}
	if p.ActivityId != nil {
		q.ActivityId(*p.ActivityId)
	}
	if deref(p.Active) {
		q.Active()
	}
	if deref(p.Enabled) {
		q.Enabled()
	}
	if deref(p.Disabled) {
		q.Disabled()
	}
	if deref(p.Available) {
		q.Available()
	}
	return q
}
