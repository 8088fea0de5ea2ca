// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pbinitiative/zencmmn/internal/config"
	"github.com/pbinitiative/zencmmn/internal/log"
	otelint "github.com/pbinitiative/zencmmn/internal/otel"
	apierror "github.com/pbinitiative/zencmmn/internal/rest/error"
	"github.com/pbinitiative/zencmmn/internal/rest/middleware"
	"github.com/pbinitiative/zencmmn/internal/rest/openapi"
	"github.com/pbinitiative/zencmmn/pkg/cmmn"
)

type Server struct {
	engine *cmmn.Engine
	addr   string
	server *http.Server
}

// NewServer mounts the case API under <context>/v1. requestMetrics may be nil.
func NewServer(engine *cmmn.Engine, conf config.Config, requestMetrics *otelint.RequestMetrics) (*Server, error) {
	r := chi.NewRouter()
	s := Server{
		engine: engine,
		addr:   conf.Server.Addr,
		server: &http.Server{
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           r,
			Addr:              conf.Server.Addr,
		},
	}
	r.Use(middleware.Cors(conf.Server.CorsOrigins))
	r.Use(middleware.Opentelemetry(conf.Tracing, requestMetrics))
	r.Use(middleware.StripEmptyQueryParams())

	prefix := strings.TrimSuffix(conf.Server.Context, "/")
	apiPrefix := prefix + "/v1"
	var validator func(http.Handler) http.Handler
	if !conf.Server.DisableValidation {
		doc, err := openapi.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load openapi document: %w", err)
		}
		validator, err = middleware.OpenapiValidator(doc, apiPrefix, func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, r, http.StatusBadRequest, apierror.ApiError{
				Message: err.Error(),
				Type:    apierror.TypeBadRequest,
			})
		})
		if err != nil {
			return nil, err
		}
	}
	r.Route(apiPrefix, func(r chi.Router) {
		if validator != nil {
			r.Use(validator)
		}
		r.Post("/deployment/create", s.CreateDeployment)

		r.Get("/case-definition", s.GetCaseDefinitions)
		r.Get("/case-definition/count", s.GetCaseDefinitionsCount)
		r.Get("/case-definition/{id}", s.GetCaseDefinition)
		r.Post("/case-definition/{id}/create", s.CreateCaseInstance)
		r.Post("/case-definition/key/{key}/create", s.CreateCaseInstanceByKey)

		r.Get("/case-execution", s.GetCaseExecutions)
		r.Get("/case-execution/count", s.GetCaseExecutionsCount)
		r.Route("/case-execution/{id}", func(r chi.Router) {
			r.Get("/", s.GetCaseExecution)
			r.Post("/manual-start", s.ManualStart)
			r.Post("/disable", s.Disable)
			r.Post("/reenable", s.Reenable)
			r.Post("/complete", s.Complete)
			r.Route("/variables", s.variablesRoutes(false))
			r.Route("/localVariables", s.variablesRoutes(true))
		})

		r.Post("/case-instance/{id}/close", s.CloseCaseInstance)
		r.Post("/case-instance/{id}/terminate", s.TerminateCaseInstance)

		r.Post("/message", s.CorrelateMessage)
	})
	// register system endpoints
	r.Route(prefix+"/system", func(r chi.Router) {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/status", s.GetStatus)
	})
	return &s, nil
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() net.Listener {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		log.Error("failed to listen: %v", err)
		return nil
	}
	log.Info("ZenCmmn REST server listening on %s", listener.Addr())
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("Error starting server: %s", err)
		}
	}()
	return listener
}

func (s *Server) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Error("Error stopping server: %s", err)
	}
}

func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.engine.RepositoryService().CreateCaseDefinitionQuery().Count(r.Context())
	if err != nil {
		writeEngineError(w, r, err, "Cannot read status")
		return
	}
	writeJSON(w, r, http.StatusOK, StatusDto{
		Name:            s.engine.Name(),
		Status:          "UP",
		CaseDefinitions: count,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, resp any) {
	body, err := json.Marshal(resp)
	if err != nil {
		log.Errorf(r.Context(), "Server error: %s", err)
		writeError(w, r, http.StatusInternalServerError, apierror.ApiError{Message: err.Error(), Type: apierror.TypeError})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, resp apierror.ApiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, err := json.Marshal(resp)
	if err != nil {
		log.Errorf(r.Context(), "Server error: %s", err)
	} else {
		_, _ = w.Write(body)
	}
}

// writeEngineError maps missing resources to 404, other engine failures to 400 and everything else to 500.
// msg prefixes the message of the engine failure.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var notFound *cmmn.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, r, http.StatusNotFound, apierror.ApiError{Message: notFound.Msg, Type: apierror.TypeNotFound})
		return
	}
	if _, ok := cmmn.AsEngineError(err); ok {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: joinMessage(msg, err.Error()),
			Type:    apierror.TypeBadRequest,
		})
		return
	}
	log.Errorf(r.Context(), "%s: %s", msg, err)
	writeError(w, r, http.StatusInternalServerError, apierror.ApiError{
		Message: joinMessage(msg, err.Error()),
		Type:    apierror.TypeError,
	})
}

// writeCommandError reports every engine failure of a state changing command as 400, missing executions included
func writeCommandError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if _, ok := cmmn.AsEngineError(err); ok {
		writeError(w, r, http.StatusBadRequest, apierror.ApiError{
			Message: joinMessage(msg, err.Error()),
			Type:    apierror.TypeBadRequest,
		})
		return
	}
	writeEngineError(w, r, err, msg)
}

func joinMessage(msg string, cause string) string {
	if msg == "" {
		return cause
	}
	return msg + " " + cause
}

// decodeBody reads an optional JSON body into dest, an empty body leaves dest untouched
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	err := dec.Decode(dest)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, r, http.StatusBadRequest, apierror.ApiError{
		Message: fmt.Sprintf("Invalid request body: %s", err),
		Type:    apierror.TypeBadRequest,
	})
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
