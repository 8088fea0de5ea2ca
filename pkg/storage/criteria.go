package storage

import (
	"regexp"
	"strings"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
)

type CaseDefinitionOrderField string

const (
	CaseDefinitionOrderById           CaseDefinitionOrderField = "id"
	CaseDefinitionOrderByKey          CaseDefinitionOrderField = "key"
	CaseDefinitionOrderByName         CaseDefinitionOrderField = "name"
	CaseDefinitionOrderByCategory     CaseDefinitionOrderField = "category"
	CaseDefinitionOrderByVersion      CaseDefinitionOrderField = "version"
	CaseDefinitionOrderByDeploymentId CaseDefinitionOrderField = "deploymentId"
)

type OrderBy struct {
	Field CaseDefinitionOrderField
	Desc  bool
}

// Page limits a result list. MaxResults <= 0 means no limit.
type Page struct {
	FirstResult int
	MaxResults  int
}

// Apply returns the page window of n results as slice bounds.
func (p Page) Apply(n int) (int, int) {
	start := min(max(p.FirstResult, 0), n)
	end := n
	if p.MaxResults > 0 && start+p.MaxResults < n {
		end = start + p.MaxResults
	}
	return start, end
}

// CaseDefinitionCriteria empty fields do not restrict the result.
type CaseDefinitionCriteria struct {
	Id               string
	Key              string
	KeyLike          string
	Name             string
	NameLike         string
	Category         string
	CategoryLike     string
	Version          int32
	DeploymentId     string
	ResourceName     string
	ResourceNameLike string
	// Latest keeps only definitions carrying the highest version of their key
	Latest  bool
	OrderBy []OrderBy
}

type CaseExecutionCriteria struct {
	Id                string
	CaseInstanceId    string
	CaseDefinitionId  string
	CaseDefinitionKey string
	BusinessKey       string
	ActivityId        string
	States            []runtime.CaseExecutionState
	OnlyCaseInstances bool
}

type MessageSubscriptionCriteria struct {
	MessageName      string
	CaseDefinitionId string
	CaseInstanceId   string
	ExecutionId      string
	// StartOnly selects subscriptions that instantiate a case definition
	StartOnly bool
	// ExecutionOnly selects subscriptions of waiting executions
	ExecutionOnly bool
}

// MatchLike reports whether value matches a SQL LIKE pattern (% and _ wildcards, case sensitive).
func MatchLike(pattern, value string) bool {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile("(?s)" + sb.String())
	if err != nil {
		return false
	}
	return re.MatchString(value)
}
