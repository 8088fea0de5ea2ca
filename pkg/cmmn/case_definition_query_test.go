package cmmn

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deployAllTestCases(t *testing.T, engine *Engine) {
	t.Helper()
	deployFile(t, engine, "simple_case.cmmn")
	deployFile(t, engine, "required_case.cmmn")
	deployFile(t, engine, "start_message_case.cmmn")
	data, err := os.ReadFile("./test-cases/simple_case.cmmn")
	require.NoError(t, err)
	_, err = engine.Deploy(t.Context(), "simple_case.cmmn", append(data, '\n'))
	require.NoError(t, err)
}

func TestCaseDefinitionQueryFilters(t *testing.T) {
	engine, _ := newTestEngine(t)
	deployAllTestCases(t, engine)
	repository := engine.RepositoryService()

	tests := []struct {
		name  string
		query *CaseDefinitionQuery
		count int64
	}{
		{"all", repository.CreateCaseDefinitionQuery(), 4},
		{"key", repository.CreateCaseDefinitionQuery().CaseDefinitionKey("simple_case"), 2},
		{"keyLike", repository.CreateCaseDefinitionQuery().CaseDefinitionKeyLike("%_case"), 4},
		{"latest by keyLike", repository.CreateCaseDefinitionQuery().CaseDefinitionKeyLike("%case").LatestVersion(), 3},
		{"version", repository.CreateCaseDefinitionQuery().CaseDefinitionVersion(2), 1},
		{"category", repository.CreateCaseDefinitionQuery().CaseDefinitionCategory("http://zenbpm.io/cmmn/orders"), 1},
		{"categoryLike", repository.CreateCaseDefinitionQuery().CaseDefinitionCategoryLike("%cmmn/claims"), 1},
		{"nameLike", repository.CreateCaseDefinitionQuery().CaseDefinitionNameLike("Loan%"), 2},
		{"resourceName", repository.CreateCaseDefinitionQuery().CaseDefinitionResourceName("required_case.cmmn"), 1},
		{"no match", repository.CreateCaseDefinitionQuery().CaseDefinitionKey("missing"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := tt.query.Count(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tt.count, count)
			list, err := tt.query.List(t.Context())
			require.NoError(t, err)
			assert.Len(t, list, int(tt.count))
		})
	}
}

func TestCaseDefinitionQueryOrdering(t *testing.T) {
	engine, _ := newTestEngine(t)
	deployAllTestCases(t, engine)

	list, err := engine.RepositoryService().CreateCaseDefinitionQuery().
		OrderByCaseDefinitionKey().Asc().
		OrderByCaseDefinitionVersion().Desc().
		List(t.Context())
	require.NoError(t, err)

	keys := make([]string, 0, len(list))
	versions := make([]int32, 0, len(list))
	for _, d := range list {
		keys = append(keys, d.Key)
		versions = append(versions, d.Version)
	}
	assert.Equal(t, []string{"claim_case", "required_case", "simple_case", "simple_case"}, keys)
	assert.Equal(t, []int32{1, 1, 2, 1}, versions)

	page, err := engine.RepositoryService().CreateCaseDefinitionQuery().
		OrderByCaseDefinitionKey().Desc().
		ListPage(t.Context(), 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "simple_case", page[0].Key)
	assert.Equal(t, "required_case", page[1].Key)
}

func TestCaseDefinitionQueryRejectsInvalidArguments(t *testing.T) {
	engine, _ := newTestEngine(t)
	repository := engine.RepositoryService()

	tests := []struct {
		name    string
		query   *CaseDefinitionQuery
		message string
	}{
		{"empty key", repository.CreateCaseDefinitionQuery().CaseDefinitionKey(""), "key is empty"},
		{"empty id", repository.CreateCaseDefinitionQuery().CaseDefinitionId(""), "caseDefinitionId is empty"},
		{"version zero", repository.CreateCaseDefinitionQuery().CaseDefinitionVersion(0), "version must be positive"},
		{"direction without order", repository.CreateCaseDefinitionQuery().Asc(), "You should call any of the orderBy methods first before specifying a direction"},
		{"order without direction", repository.CreateCaseDefinitionQuery().OrderByCaseDefinitionId(), "Invalid query: call asc() or desc() after using orderByXX()"},
		{"latest with name", repository.CreateCaseDefinitionQuery().CaseDefinitionName("x").LatestVersion(), "Calling latest() can only be used in combination with key(String) and keyLike(String)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.query.List(t.Context())
			var engineErr *EngineError
			require.ErrorAs(t, err, &engineErr)
			assert.Contains(t, err.Error(), tt.message)
			_, err = tt.query.Count(t.Context())
			assert.Error(t, err)
		})
	}
}

func TestCaseDefinitionQuerySingleResult(t *testing.T) {
	engine, _ := newTestEngine(t)
	deployAllTestCases(t, engine)
	repository := engine.RepositoryService()

	d, err := repository.CreateCaseDefinitionQuery().CaseDefinitionKey("required_case").SingleResult(t.Context())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Order handling", d.Name)

	d, err = repository.CreateCaseDefinitionQuery().CaseDefinitionKey("missing").SingleResult(t.Context())
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = repository.CreateCaseDefinitionQuery().CaseDefinitionKey("simple_case").SingleResult(t.Context())
	assert.ErrorContains(t, err, "Query return 2 results instead of max 1")
}
