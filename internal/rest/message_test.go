package rest

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelateStartMessage(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.deploy(t, "start_message_case.cmmn").Code)

	rec := ts.do(t, http.MethodPost, "/v1/message", CorrelationMessageDto{
		MessageName:   "claimReceived",
		BusinessKey:   "claim-1",
		Variables:     map[string]VariableValueDto{"claimId": {Value: 7, Type: "Integer"}},
		ResultEnabled: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res MessageCorrelationResultDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "CaseDefinition", res.ResultType)
	require.NotNil(t, res.CaseInstance)
	assert.Equal(t, "claim-1", res.CaseInstance.BusinessKey)

	rec = ts.do(t, http.MethodPost, "/v1/message", CorrelationMessageDto{
		MessageName:     "documentsArrived",
		CorrelationKeys: map[string]VariableValueDto{"claimId": {Value: 7, Type: "Integer"}},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/v1/message", CorrelationMessageDto{MessageName: "documentsArrived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "Cannot correlate message 'documentsArrived'")
}

func TestCorrelateMessageValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/message", map[string]any{"businessKey": "b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/message", CorrelationMessageDto{
		MessageName:     "m",
		CorrelationKeys: map[string]VariableValueDto{"id": {Value: "x", Type: "Short"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "correlation key variable id")
}

func TestSystemStatus(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.deploy(t, "simple_case.cmmn").Code)

	rec := ts.do(t, http.MethodGet, "/system/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusDto
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "UP", status.Status)
	assert.Equal(t, ts.engine.Name(), status.Name)
	assert.Equal(t, int64(1), status.CaseDefinitions)
}
