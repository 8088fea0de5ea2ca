package rest

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeployment(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.deploy(t, "simple_case.cmmn")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var deployment DeploymentDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deployment))
	assert.NotEmpty(t, deployment.Id)
	assert.False(t, deployment.Duplicate)
	require.Len(t, deployment.DeployedCaseDefinitions, 1)
	for id, d := range deployment.DeployedCaseDefinitions {
		assert.Equal(t, id, d.Id)
		assert.Equal(t, "simple_case", d.Key)
		assert.Equal(t, "simple_case.cmmn", d.Resource)
		assert.Equal(t, int32(1), d.Version)
	}

	rec = ts.deploy(t, "simple_case.cmmn")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deployment))
	assert.True(t, deployment.Duplicate)
}

func TestDeploymentRequiresResource(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/deployment/create", map[string]string{"data": "x"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaseDefinitionQuery(t *testing.T) {
	ts := newTestServer(t)
	for _, name := range []string{"simple_case.cmmn", "required_case.cmmn", "start_message_case.cmmn"} {
		require.Equal(t, http.StatusOK, ts.deploy(t, name).Code)
	}

	tests := map[string]struct {
		query string
		keys  []string
	}{
		"all sorted by key":  {query: "?sortBy=key&sortOrder=asc", keys: []string{"claim_case", "required_case", "simple_case"}},
		"descending":         {query: "?sortBy=key&sortOrder=desc", keys: []string{"simple_case", "required_case", "claim_case"}},
		"by key":             {query: "?key=required_case", keys: []string{"required_case"}},
		"key like latest":    {query: "?keyLike=%25case&latestVersion=true&sortBy=key&sortOrder=asc", keys: []string{"claim_case", "required_case", "simple_case"}},
		"name like":          {query: "?nameLike=Order%25", keys: []string{"required_case"}},
		"paged":              {query: "?sortBy=key&sortOrder=asc&firstResult=1&maxResults=1", keys: []string{"required_case"}},
		"empty filter value": {query: "?key=&sortBy=key&sortOrder=asc", keys: []string{"claim_case", "required_case", "simple_case"}},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/case-definition"+test.query, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var definitions []CaseDefinitionDto
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &definitions))
			keys := make([]string, 0, len(definitions))
			for _, d := range definitions {
				keys = append(keys, d.Key)
			}
			assert.Equal(t, test.keys, keys)
		})
	}

	rec := ts.do(t, http.MethodGet, "/v1/case-definition/count?category=http://zenbpm.io/cmmn/claims", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())
}

func TestCaseDefinitionQueryRejectsInvalidParameters(t *testing.T) {
	ts := newTestServer(t)

	tests := map[string]string{
		"latest with name":   "?latestVersion=true&name=x",
		"sort without order": "?sortBy=key",
		"unknown sort field": "?sortBy=size&sortOrder=asc",
		"version not number": "?version=abc",
		"negative page":      "?firstResult=-1",
	}
	for name, query := range tests {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/case-definition"+query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestLatestVersionErrorComesFromQuery(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/case-definition/count?latestVersion=true&deploymentId=1", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "Calling latest() can only be used in combination with key(String) and keyLike(String)")
}

func TestGetCaseDefinitionAndCreateInstance(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.deploy(t, "required_case.cmmn")
	require.Equal(t, http.StatusOK, rec.Code)
	var deployment DeploymentDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deployment))
	var id string
	for id = range deployment.DeployedCaseDefinitions {
	}

	rec = ts.do(t, http.MethodGet, "/v1/case-definition/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var definition CaseDefinitionDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &definition))
	assert.Equal(t, "Order handling", definition.Name)

	rec = ts.do(t, http.MethodGet, "/v1/case-definition/unknown:1:1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/case-definition/"+id+"/create", CreateCaseInstanceDto{
		BusinessKey: "order-1",
		Variables:   map[string]VariableValueDto{"amount": {Value: 2000, Type: "Long"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ci CaseInstanceDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ci))
	assert.Equal(t, id, ci.CaseDefinitionId)
	assert.Equal(t, "order-1", ci.BusinessKey)
	assert.True(t, ci.Active)

	rec = ts.do(t, http.MethodPost, "/v1/case-definition/"+id+"/create", CreateCaseInstanceDto{
		Variables: map[string]VariableValueDto{"amount": {Value: "lots", Type: "Long"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "variable amount")

	rec = ts.do(t, http.MethodPost, "/v1/case-definition/key/missing/create", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
