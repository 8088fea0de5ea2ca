package rest

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierror "github.com/pbinitiative/zencmmn/internal/rest/error"
	"github.com/pbinitiative/zencmmn/pkg/cmmn"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/variables"
)

const variableResourceTypeName = "case execution"

// variablesResource serves the variables visible from a case execution or, when local is set,
// only the variables stored on the execution itself.
type variablesResource struct {
	engine *cmmn.Engine
	local  bool
}

func (s *Server) variablesRoutes(local bool) func(r chi.Router) {
	res := &variablesResource{engine: s.engine, local: local}
	return func(r chi.Router) {
		r.Get("/", res.GetVariables)
		r.Post("/", res.ModifyVariables)
		r.Get("/{name}", res.GetVariable)
		r.Put("/{name}", res.PutVariable)
		r.Delete("/{name}", res.DeleteVariable)
	}
}

func (v *variablesResource) GetVariables(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		vars map[string]any
		err  error
	)
	if v.local {
		vars, err = v.engine.CaseService().GetVariablesLocal(r.Context(), id)
	} else {
		vars, err = v.engine.CaseService().GetVariables(r.Context(), id)
	}
	if err != nil {
		writeEngineError(w, r, err, fmt.Sprintf("Cannot get %s variables.", variableResourceTypeName))
		return
	}
	writeJSON(w, r, http.StatusOK, toVariableValueDtos(vars))
}

func (v *variablesResource) GetVariable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	var (
		value any
		ok    bool
		err   error
	)
	if v.local {
		value, ok, err = v.engine.CaseService().GetVariableLocal(r.Context(), id, name)
	} else {
		value, ok, err = v.engine.CaseService().GetVariable(r.Context(), id, name)
	}
	if err != nil {
		writeEngineError(w, r, err, fmt.Sprintf("Cannot get %s variable %s.", variableResourceTypeName, name))
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, apierror.ApiError{
			Message: fmt.Sprintf("%s variable with name %s does not exist", variableResourceTypeName, name),
			Type:    apierror.TypeNotFound,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, toVariableValueDto(value))
}

func (v *variablesResource) PutVariable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	var dto VariableValueDto
	if !decodeBody(w, r, &dto) {
		return
	}
	value, err := variables.ToType(dto.Type, dto.Value)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: fmt.Sprintf("Cannot put %s variable %s: %s", variableResourceTypeName, name, err),
			Type:    apierror.TypeBadRequest,
		})
		return
	}
	builder := v.engine.CaseService().WithCaseExecution(id)
	if v.local {
		builder.SetVariableLocal(name, value)
	} else {
		builder.SetVariable(name, value)
	}
	if err := builder.Execute(r.Context()); err != nil {
		writeEngineError(w, r, err, fmt.Sprintf("Cannot put %s variable %s:", variableResourceTypeName, name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (v *variablesResource) DeleteVariable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	builder := v.engine.CaseService().WithCaseExecution(id)
	if v.local {
		builder.RemoveVariableLocal(name)
	} else {
		builder.RemoveVariable(name)
	}
	if err := builder.Execute(r.Context()); err != nil {
		writeEngineError(w, r, err, fmt.Sprintf("Cannot delete %s variable %s:", variableResourceTypeName, name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ModifyVariables applies deletions and modifications in one command
func (v *variablesResource) ModifyVariables(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto PatchVariablesDto
	if !decodeBody(w, r, &dto) {
		return
	}
	vars, err := fromVariableValueDtos(dto.Modifications)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: fmt.Sprintf("Cannot modify variables for %s: %s", variableResourceTypeName, err),
			Type:    apierror.TypeBadRequest,
		})
		return
	}
	builder := v.engine.CaseService().WithCaseExecution(id)
	if v.local {
		builder.SetVariablesLocal(vars).RemoveVariablesLocal(dto.Deletions...)
	} else {
		builder.SetVariables(vars).RemoveVariables(dto.Deletions...)
	}
	if err := builder.Execute(r.Context()); err != nil {
		writeEngineError(w, r, err, fmt.Sprintf("Cannot modify variables for %s %s:", variableResourceTypeName, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
