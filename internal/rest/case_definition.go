package rest

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierror "github.com/pbinitiative/zencmmn/internal/rest/error"
	"github.com/pbinitiative/zencmmn/pkg/cmmn"
)

func (s *Server) GetCaseDefinitions(w http.ResponseWriter, r *http.Request) {
	params, err := bindCaseDefinitionQueryParams(r, true)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	query, err := params.query(s.engine)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	first, maxResults := params.page()
	definitions, err := query.ListPage(r.Context(), first, maxResults)
	if err != nil {
		writeEngineError(w, r, err, "Cannot query case definitions.")
		return
	}
	res := make([]CaseDefinitionDto, 0, len(definitions))
	for _, d := range definitions {
		res = append(res, fromCaseDefinition(d))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) GetCaseDefinitionsCount(w http.ResponseWriter, r *http.Request) {
	params, err := bindCaseDefinitionQueryParams(r, false)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	query, err := params.query(s.engine)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	count, err := query.Count(r.Context())
	if err != nil {
		writeEngineError(w, r, err, "Cannot count case definitions.")
		return
	}
	writeJSON(w, r, http.StatusOK, CountResultDto{Count: count})
}

func (s *Server) GetCaseDefinition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	definition, err := s.engine.RepositoryService().GetCaseDefinition(r.Context(), id)
	if err != nil {
		writeEngineError(w, r, err, "")
		return
	}
	writeJSON(w, r, http.StatusOK, fromCaseDefinition(definition))
}

func (s *Server) CreateCaseInstance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.createCaseInstance(w, r, s.engine.CaseService().CreateCaseInstanceById(id), id)
}

func (s *Server) CreateCaseInstanceByKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.createCaseInstance(w, r, s.engine.CaseService().CreateCaseInstanceByKey(key), key)
}

func (s *Server) createCaseInstance(w http.ResponseWriter, r *http.Request, builder *cmmn.CaseInstanceBuilder, definition string) {
	var dto CreateCaseInstanceDto
	if !decodeBody(w, r, &dto) {
		return
	}
	vars, err := fromVariableValueDtos(dto.Variables)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: fmt.Sprintf("Cannot instantiate case definition %s due to %s", definition, err),
			Type:    apierror.TypeBadRequest,
		})
		return
	}
	ci, err := builder.BusinessKey(dto.BusinessKey).SetVariables(vars).Create(r.Context())
	if err != nil {
		writeEngineError(w, r, err, fmt.Sprintf("Cannot instantiate case definition %s.", definition))
		return
	}
	writeJSON(w, r, http.StatusOK, fromCaseInstance(ci))
}
