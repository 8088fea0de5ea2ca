package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbinitiative/zencmmn/internal/config"
	apierror "github.com/pbinitiative/zencmmn/internal/rest/error"
	"github.com/pbinitiative/zencmmn/pkg/cmmn"
	"github.com/pbinitiative/zencmmn/pkg/storage/inmemory"
)

const testCasesDir = "../../pkg/cmmn/test-cases"

type testServer struct {
	engine  *cmmn.Engine
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	engine := cmmn.NewEngine(cmmn.WithStorage(inmemory.NewStorage()))
	conf := config.Config{
		Name:   "zencmmn-test",
		Server: config.Server{Context: "/", Addr: ":0"},
	}
	s, err := NewServer(engine, conf, nil)
	require.NoError(t, err)
	return &testServer{engine: engine, handler: s.Handler()}
}

func (ts *testServer) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) deploy(t *testing.T, name string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(testCasesDir, name))
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("data", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/deployment/create", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// startSimpleCase deploys simple_case and returns the id of the created case instance
func (ts *testServer) startSimpleCase(t *testing.T) string {
	t.Helper()
	require.Equal(t, http.StatusOK, ts.deploy(t, "simple_case.cmmn").Code)
	rec := ts.do(t, http.MethodPost, "/v1/case-definition/key/simple_case/create", CreateCaseInstanceDto{BusinessKey: "loan-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ci CaseInstanceDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ci))
	return ci.Id
}

func (ts *testServer) executionId(t *testing.T, caseInstanceId string, activityId string) string {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/v1/case-execution?caseInstanceId="+caseInstanceId+"&activityId="+activityId, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var executions []CaseExecutionDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &executions))
	require.Len(t, executions, 1)
	return executions[0].Id
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierror.ApiError {
	t.Helper()
	var apiErr apierror.ApiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr), rec.Body.String())
	return apiErr
}

func TestMissingCaseExecutionIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/case-execution/42", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	g := goldie.New(t)
	g.Assert(t, "case_execution_not_found", rec.Body.Bytes())
}

func TestTriggerOnMissingCaseExecutionIsBadRequest(t *testing.T) {
	ts := newTestServer(t)

	for transition, message := range map[string]string{
		"manual-start": "Cannot start case execution with id '42' manually.",
		"disable":      "Cannot disable case execution with id '42'.",
		"reenable":     "Cannot re-enable case execution with id '42'.",
		"complete":     "Cannot complete case execution with id '42'.",
	} {
		t.Run(transition, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/case-execution/42/"+transition, CaseExecutionTriggerDto{})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, apierror.TypeBadRequest, apiErr.Type)
			assert.True(t, strings.HasPrefix(apiErr.Message, message), apiErr.Message)
		})
	}
}

func TestLongValuesKeepTheirPrecision(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)
	reviewId := ts.executionId(t, ciId, "PI_ReviewDocuments")

	rec := ts.do(t, http.MethodPost, "/v1/case-execution/"+reviewId+"/manual-start", json.RawMessage(
		`{"variables":{"triggered":{"value":9007199254740993,"type":"Long"}}}`))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPut, "/v1/case-execution/"+ciId+"/variables/put", json.RawMessage(
		`{"value":9007199254740995,"type":"Long"}`))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	vars, err := ts.engine.CaseService().GetVariablesLocal(t.Context(), ciId)
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), vars["triggered"])
	assert.Equal(t, int64(9007199254740995), vars["put"])
}

func TestGetCaseExecution(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)
	reviewId := ts.executionId(t, ciId, "PI_ReviewDocuments")

	rec := ts.do(t, http.MethodGet, "/v1/case-execution/"+reviewId, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var dto CaseExecutionDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, ciId, dto.CaseInstanceId)
	assert.Equal(t, ciId, dto.ParentId)
	assert.Equal(t, "Review documents", dto.ActivityName)
	assert.True(t, dto.Enabled)
	assert.False(t, dto.Active)
}

func TestVariableConversionFailureIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)
	reviewId := ts.executionId(t, ciId, "PI_ReviewDocuments")

	tests := map[string]struct {
		variable TriggerVariableValueDto
		message  string
	}{
		"number": {
			variable: TriggerVariableValueDto{Value: "abc", Type: "Integer"},
			message:  "Cannot start manually case execution " + reviewId + " due to number format exception of variable amount",
		},
		"date": {
			variable: TriggerVariableValueDto{Value: "yesterday", Type: "Date"},
			message:  "Cannot start manually case execution " + reviewId + " due to parse exception of variable amount",
		},
		"unknown type": {
			variable: TriggerVariableValueDto{Value: "1", Type: "Money"},
			message:  "Cannot start manually case execution " + reviewId + " because of variable amount",
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/case-execution/"+reviewId+"/manual-start", CaseExecutionTriggerDto{
				Variables: map[string]TriggerVariableValueDto{"amount": test.variable},
			})

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, apierror.TypeBadRequest, apiErr.Type)
			assert.Contains(t, apiErr.Message, test.message)
		})
	}

	// nothing was applied
	rec := ts.do(t, http.MethodGet, "/v1/case-execution/"+reviewId, nil)
	var dto CaseExecutionDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.True(t, dto.Enabled)
}

func TestTransitionFailureIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)
	collectId := ts.executionId(t, ciId, "PI_CollectData")

	for path, message := range map[string]string{
		"manual-start": "Cannot start case execution with id '" + collectId + "' manually.",
		"disable":      "Cannot disable case execution with id '" + collectId + "'.",
		"reenable":     "Cannot re-enable case execution with id '" + collectId + "'.",
	} {
		t.Run(path, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/v1/case-execution/"+collectId+"/"+path, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec).Message, message)
		})
	}
}

func TestTriggerRoutesLocalAndGlobalVariables(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)
	reviewId := ts.executionId(t, ciId, "PI_ReviewDocuments")

	rec := ts.do(t, http.MethodPost, "/v1/case-execution/"+reviewId+"/manual-start", CaseExecutionTriggerDto{
		Variables: map[string]TriggerVariableValueDto{
			"reviewer": {Value: "anna", Type: "String"},
			"score":    {Value: 7, Type: "Integer", Local: true},
		},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	var local map[string]VariableValueDto
	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+reviewId+"/localVariables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &local))
	assert.Equal(t, map[string]VariableValueDto{"score": {Value: float64(7), Type: "Integer"}}, local)

	var root map[string]VariableValueDto
	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+ciId+"/localVariables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, VariableValueDto{Value: "anna", Type: "String"}, root["reviewer"])

	var visible map[string]VariableValueDto
	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+reviewId+"/variables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visible))
	assert.Contains(t, visible, "reviewer")
	assert.Contains(t, visible, "score")

	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+reviewId, nil)
	var dto CaseExecutionDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.True(t, dto.Active)
}

func TestTriggerDeletionsRespectLocalFlag(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)
	reviewId := ts.executionId(t, ciId, "PI_ReviewDocuments")
	require.NoError(t, ts.engine.CaseService().SetVariables(t.Context(), ciId, map[string]any{"shared": "root"}))
	require.NoError(t, ts.engine.CaseService().SetVariablesLocal(t.Context(), reviewId, map[string]any{"own": "local"}))

	rec := ts.do(t, http.MethodPost, "/v1/case-execution/"+reviewId+"/disable", CaseExecutionTriggerDto{
		Deletions: []VariableNameDto{{Name: "shared", Local: true}, {Name: "own", Local: true}},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	vars, err := ts.engine.CaseService().GetVariables(t.Context(), reviewId)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"shared": "root"}, vars)

	rec = ts.do(t, http.MethodPost, "/v1/case-execution/"+reviewId+"/reenable", CaseExecutionTriggerDto{
		Deletions: []VariableNameDto{{Name: "shared"}},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	vars, err = ts.engine.CaseService().GetVariables(t.Context(), reviewId)
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestVariableResource(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)
	collectId := ts.executionId(t, ciId, "PI_CollectData")

	rec := ts.do(t, http.MethodPut, "/v1/case-execution/"+collectId+"/variables/amount", VariableValueDto{Value: "1500", Type: "Long"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// no scope holds the name yet, so it lands on the case instance
	value, ok, err := ts.engine.CaseService().GetVariableLocal(t.Context(), ciId, "amount")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1500), value)

	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+collectId+"/variables/amount", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"value":1500,"type":"Long"}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+collectId+"/localVariables/amount", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "case execution variable with name amount does not exist", decodeError(t, rec).Message)

	rec = ts.do(t, http.MethodPut, "/v1/case-execution/"+collectId+"/localVariables/amount", VariableValueDto{Value: "x", Type: "Double"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "Cannot put case execution variable amount")

	rec = ts.do(t, http.MethodDelete, "/v1/case-execution/"+collectId+"/variables/amount", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+collectId+"/variables/amount", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModifyVariables(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)
	require.NoError(t, ts.engine.CaseService().SetVariables(t.Context(), ciId, map[string]any{"old": true}))

	rec := ts.do(t, http.MethodPost, "/v1/case-execution/"+ciId+"/localVariables", PatchVariablesDto{
		Modifications: map[string]VariableValueDto{"due": {Value: "2026-01-02T03:04:05", Type: "Date"}},
		Deletions:     []string{"old"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+ciId+"/localVariables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"due":{"value":"2026-01-02T03:04:05","type":"Date"}}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/v1/case-execution/"+ciId+"/variables", PatchVariablesDto{
		Modifications: map[string]VariableValueDto{"count": {Value: "many", Type: "Integer"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "variable count")
}

func TestCompleteAndCloseCaseInstance(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)

	rec := ts.do(t, http.MethodPost, "/v1/case-instance/"+ciId+"/close", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "Cannot close case instance with id '"+ciId+"'.")

	rec = ts.do(t, http.MethodPost, "/v1/case-instance/"+ciId+"/terminate", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/v1/case-instance/"+ciId+"/close", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+ciId, nil)
	var dto CaseExecutionDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "CLOSED", dto.State)
}

func TestCompleteCaseExecution(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)
	collectId := ts.executionId(t, ciId, "PI_CollectData")

	rec := ts.do(t, http.MethodPost, "/v1/case-execution/"+collectId+"/complete", CaseExecutionTriggerDto{
		Variables: map[string]TriggerVariableValueDto{"complete": {Value: true, Type: "Boolean"}},
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/case-execution/"+collectId, nil)
	var dto CaseExecutionDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "COMPLETED", dto.State)

	rec = ts.do(t, http.MethodPost, "/v1/case-execution/"+collectId+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "Cannot complete case execution with id '"+collectId+"'.")
}

func TestCaseExecutionQuery(t *testing.T) {
	ts := newTestServer(t)
	ciId := ts.startSimpleCase(t)

	rec := ts.do(t, http.MethodGet, "/v1/case-execution/count?caseInstanceId="+ciId+"&enabled=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/case-execution?businessKey=loan-1&maxResults=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var executions []CaseExecutionDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &executions))
	require.Len(t, executions, 1)
	assert.Equal(t, ciId, executions[0].Id, "case instances are listed first")

	rec = ts.do(t, http.MethodGet, "/v1/case-execution?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEngineErrorMessagesKeepTheirCause(t *testing.T) {
	tests := map[string]struct {
		err      error
		contains []string
	}{
		"script error": {
			err: &cmmn.ScriptEvaluationError{
				EngineError: cmmn.EngineError{Msg: `failed to evaluate expression "amount > 1000"`},
				Expression:  "amount > 1000",
				Err:         errors.New("ReferenceError: amount is not defined"),
			},
			contains: []string{`failed to evaluate expression "amount > 1000"`, "ReferenceError: amount is not defined"},
		},
		"joined query errors": {
			err: errors.Join(
				&cmmn.EngineError{Msg: "Invalid query: call asc() or desc() after using orderByXX()"},
				&cmmn.EngineError{Msg: "Calling latest() can only be used in combination with key(String) and keyLike(String)"},
			),
			contains: []string{"call asc() or desc()", "Calling latest()"},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeEngineError(rec, httptest.NewRequest(http.MethodGet, "/", nil), test.err, "Cannot query case definitions.")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			message := decodeError(t, rec).Message
			assert.True(t, strings.HasPrefix(message, "Cannot query case definitions. "), message)
			for _, part := range test.contains {
				assert.Contains(t, message, part)
			}
		})
	}
}
