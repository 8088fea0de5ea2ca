package rest

import (
	"fmt"
	"io"
	"net/http"

	apierror "github.com/pbinitiative/zencmmn/internal/rest/error"
)

const maxDeploymentSize = 32 << 20

// CreateDeployment deploys the CMMN resource sent as multipart field "data"
func (s *Server) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxDeploymentSize); err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: fmt.Sprintf("Failed to read multipart form: %s", err.Error()),
			Type:    apierror.TypeBadRequest,
		})
		return
	}
	files := r.MultipartForm.File["data"]
	if len(files) != 1 {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: fmt.Sprintf("Expected exactly one resource in field 'data', got %d", len(files)),
			Type:    apierror.TypeBadRequest,
		})
		return
	}
	file, err := files[0].Open()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{Message: err.Error(), Type: apierror.TypeBadRequest})
		return
	}

	res, err := s.engine.RepositoryService().Deploy(r.Context(), files[0].Filename, data)
	if err != nil {
		writeEngineError(w, r, err, fmt.Sprintf("Cannot deploy resource %s.", files[0].Filename))
		return
	}
	writeJSON(w, r, http.StatusOK, fromDeploymentResult(res))
}
