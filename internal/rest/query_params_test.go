package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindCaseDefinitionQueryParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/case-definition?key=simple_case&version=2&latestVersion=true&sortBy=key&sortOrder=desc&firstResult=1&maxResults=5", nil)

	p, err := bindCaseDefinitionQueryParams(r, true)

	require.NoError(t, err)
	require.NotNil(t, p.Key)
	assert.Equal(t, "simple_case", *p.Key)
	require.NotNil(t, p.Version)
	assert.Equal(t, int32(2), *p.Version)
	assert.True(t, deref(p.LatestVersion))
	assert.Equal(t, "desc", deref(p.SortOrder))
	assert.Nil(t, p.Name)
	assert.Nil(t, p.KeyLike)
	first, maxResults := p.page()
	assert.Equal(t, 1, first)
	assert.Equal(t, 5, maxResults)
}

func TestBindCaseDefinitionQueryParamsWithoutParameters(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/case-definition/count", nil)

	p, err := bindCaseDefinitionQueryParams(r, false)

	require.NoError(t, err)
	assert.Equal(t, caseDefinitionQueryParams{}, p)
}

func TestBindCaseExecutionQueryParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/case-execution?caseInstanceId=1&enabled=true&active=false", nil)

	p, err := bindCaseExecutionQueryParams(r)

	require.NoError(t, err)
	assert.Equal(t, "1", deref(p.CaseInstanceId))
	assert.True(t, deref(p.Enabled))
	require.NotNil(t, p.Active)
	assert.False(t, *p.Active)
	assert.Nil(t, p.BusinessKey)
}

func TestBindQueryRejectsMalformedValues(t *testing.T) {
	for name, query := range map[string]string{
		"version":    "/v1/case-definition?version=abc",
		"boolean":    "/v1/case-definition?latestVersion=maybe",
		"page":       "/v1/case-definition?firstResult=-1",
		"sort order": "/v1/case-definition?sortBy=key&sortOrder=up",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := bindCaseDefinitionQueryParams(httptest.NewRequest(http.MethodGet, query, nil), true)
			assert.Error(t, err)
		})
	}
}
