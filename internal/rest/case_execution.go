package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierror "github.com/pbinitiative/zencmmn/internal/rest/error"
	"github.com/pbinitiative/zencmmn/pkg/cmmn"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/variables"
)

func (s *Server) GetCaseExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	execution, err := s.engine.CaseService().CreateCaseExecutionQuery().CaseExecutionId(id).SingleResult(r.Context())
	if err != nil {
		writeEngineError(w, r, err, "")
		return
	}
	if execution == nil {
		writeError(w, r, http.StatusNotFound, apierror.ApiError{
			Message: fmt.Sprintf("Case execution with id %s does not exist.", id),
			Type:    apierror.TypeNotFound,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, fromCaseExecution(*execution))
}

// caseExecutionTrigger describes one transition reachable through the REST API
type caseExecutionTrigger struct {
	// name is used in messages about variable conversion failures
	name string
	// failure formats the message of a failed transition with the case execution id
	failure string
	run     func(b *cmmn.CaseExecutionCommandBuilder, ctx context.Context) error
}

var (
	manualStartTrigger = caseExecutionTrigger{
		name:    "start manually",
		failure: "Cannot start case execution with id '%s' manually.",
		run:     (*cmmn.CaseExecutionCommandBuilder).ManualStart,
	}
	disableTrigger = caseExecutionTrigger{
		name:    "disable",
		failure: "Cannot disable case execution with id '%s'.",
		run:     (*cmmn.CaseExecutionCommandBuilder).Disable,
	}
	reenableTrigger = caseExecutionTrigger{
		name:    "reenable",
		failure: "Cannot re-enable case execution with id '%s'.",
		run:     (*cmmn.CaseExecutionCommandBuilder).Reenable,
	}
	completeTrigger = caseExecutionTrigger{
		name:    "complete",
		failure: "Cannot complete case execution with id '%s'.",
		run:     (*cmmn.CaseExecutionCommandBuilder).Complete,
	}
)

func (s *Server) ManualStart(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, manualStartTrigger)
}

func (s *Server) Disable(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, disableTrigger)
}

func (s *Server) Reenable(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, reenableTrigger)
}

func (s *Server) Complete(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, completeTrigger)
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request, t caseExecutionTrigger) {
	id := chi.URLParam(r, "id")
	var dto CaseExecutionTriggerDto
	if !decodeBody(w, r, &dto) {
		return
	}
	builder := s.engine.CaseService().WithCaseExecution(id)
	if err := initializeCommand(builder, dto, t.name); err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	if err := t.run(builder, r.Context()); err != nil {
		writeCommandError(w, r, err, fmt.Sprintf(t.failure, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// initializeCommand copies the variables and deletions of the trigger payload into the builder
func initializeCommand(builder *cmmn.CaseExecutionCommandBuilder, dto CaseExecutionTriggerDto, transition string) error {
	for _, name := range sortedKeys(dto.Variables) {
		variable := dto.Variables[name]
		value, err := variables.ToType(variable.Type, variable.Value)
		if err != nil {
			return conversionError(transition, builder.CaseExecutionId(), name, err)
		}
		if variable.Local {
			builder.SetVariableLocal(name, value)
		} else {
			builder.SetVariable(name, value)
		}
	}
	for _, deletion := range dto.Deletions {
		if deletion.Local {
			builder.RemoveVariableLocal(deletion.Name)
		} else {
			builder.RemoveVariable(deletion.Name)
		}
	}
	return nil
}

func conversionError(transition string, caseExecutionId string, name string, err error) error {
	var (
		numberErr *variables.NumberFormatError
		parseErr  *variables.ParseError
	)
	switch {
	case errors.As(err, &numberErr):
		return fmt.Errorf("Cannot %s case execution %s due to number format exception of variable %s: %s", transition, caseExecutionId, name, err)
	case errors.As(err, &parseErr):
		return fmt.Errorf("Cannot %s case execution %s due to parse exception of variable %s: %s", transition, caseExecutionId, name, err)
	default:
		return fmt.Errorf("Cannot %s case execution %s because of variable %s: %s", transition, caseExecutionId, name, err)
	}
}

func (s *Server) GetCaseExecutions(w http.ResponseWriter, r *http.Request) {
	params, err := bindCaseExecutionQueryParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	first, maxResults := params.page()
	executions, err := params.query(s.engine).ListPage(r.Context(), first, maxResults)
	if err != nil {
		writeEngineError(w, r, err, "Cannot query case executions.")
		return
	}
	res := make([]CaseExecutionDto, 0, len(executions))
	for _, e := range executions {
		res = append(res, fromCaseExecution(e))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) GetCaseExecutionsCount(w http.ResponseWriter, r *http.Request) {
	params, err := bindCaseExecutionQueryParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	count, err := params.query(s.engine).Count(r.Context())
	if err != nil {
		writeEngineError(w, r, err, "Cannot count case executions.")
		return
	}
	writeJSON(w, r, http.StatusOK, CountResultDto{Count: count})
}

func (s *Server) CloseCaseInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.CaseService().CloseCaseInstance(r.Context(), id); err != nil {
		writeCommandError(w, r, err, fmt.Sprintf("Cannot close case instance with id '%s'.", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) TerminateCaseInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.CaseService().TerminateCaseExecution(r.Context(), id); err != nil {
		writeCommandError(w, r, err, fmt.Sprintf("Cannot terminate case instance with id '%s'.", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
