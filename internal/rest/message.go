package rest

import (
	"fmt"
	"net/http"

	apierror "github.com/pbinitiative/zencmmn/internal/rest/error"
)

func (s *Server) CorrelateMessage(w http.ResponseWriter, r *http.Request) {
	var dto CorrelationMessageDto
	if !decodeBody(w, r, &dto) {
		return
	}
	if dto.MessageName == "" {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: "No message name supplied",
			Type:    apierror.TypeBadRequest,
		})
		return
	}
	keys, err := fromVariableValueDtos(dto.CorrelationKeys)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: fmt.Sprintf("Cannot correlate message %s due to correlation key %s", dto.MessageName, err),
			Type:    apierror.TypeBadRequest,
		})
		return
	}
	vars, err := fromVariableValueDtos(dto.Variables)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: fmt.Sprintf("Cannot correlate message %s due to %s", dto.MessageName, err),
			Type:    apierror.TypeBadRequest,
		})
		return
	}

	correlation := s.engine.CreateMessageCorrelation(dto.MessageName).
		CaseInstanceBusinessKey(dto.BusinessKey).
		CaseInstanceId(dto.CaseInstanceId).
		SetVariables(vars)
	for _, name := range sortedKeys(keys) {
		correlation.CorrelationKey(name, keys[name])
	}
	res, err := correlation.Correlate(r.Context())
	if err != nil {
		writeEngineError(w, r, err, "")
		return
	}
	if !dto.ResultEnabled {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, r, http.StatusOK, fromMessageCorrelationResult(res))
}
