// Package server assembles the HTTP application: middleware, resource routes, the health
// endpoint and the interactive docs, and runs it until the context is cancelled.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-openapi/spec"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/layered-api-go/api"
	"github.com/user/layered-api-go/apperror"
	"github.com/user/layered-api-go/config"
	"github.com/user/layered-api-go/logging"
	"github.com/user/layered-api-go/openapi"
)

const (
	docsPath    = "/swagger/index.html"
	docJSONPath = "/swagger/doc.json"
)

// Resource is anything that contributes routes under the API prefix.
type Resource interface {
	Routes() []api.Route
}

// Server is the assembled application.
type Server struct {
	cfg    *config.Config
	log    zerolog.Logger
	router chi.Router
	doc    *spec.Swagger
}

// New builds the router and the OpenAPI document. It fails when a documented route is not
// actually mounted.
func New(cfg *config.Config, logs *logging.Loggers, resources ...Resource) (*Server, error) {
	s := &Server{
		cfg: cfg,
		log: logs.Component("server"),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(ContextLogger(logs.App))
	r.Use(AuditLog(logs.Audit))
	r.Use(Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.Origins,
		AllowedMethods:   cfg.CORS.AllowMethods,
		AllowedHeaders:   cfg.CORS.AllowHeaders,
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	if cfg.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimit, time.Minute))
	}
	r.Use(middleware.StripSlashes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, r, apperror.NewNotFoundError("Resource not found", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusMethodNotAllowed, apperror.ErrorResponse{
			Error:     "Method not allowed",
			RequestID: middleware.GetReqID(r.Context()),
		})
	})

	root := openapi.Group{Prefix: "", Routes: []api.Route{s.healthRoute()}}
	api.Mount(r, root.Routes)
	groups := []openapi.Group{root}

	var apiRoutes []api.Route
	for _, res := range resources {
		apiRoutes = append(apiRoutes, res.Routes()...)
	}
	if prefix := cfg.APIPrefix(); prefix == "" {
		api.Mount(r, apiRoutes)
	} else {
		r.Route(prefix, func(sub chi.Router) {
			api.Mount(sub, apiRoutes)
		})
	}
	groups = append(groups, openapi.Group{Prefix: cfg.APIPrefix(), Routes: apiRoutes})

	s.doc = openapi.Build(openapi.Info{
		Title:       cfg.AppName(),
		Version:     cfg.Application.Version,
		Description: "REST API with a layered handler, service and repository architecture.",
	}, groups...)

	docJSON, err := json.Marshal(s.doc)
	if err != nil {
		return nil, apperror.NewInternalError("failed to encode OpenAPI document", err)
	}
	r.Get(docJSONPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(docJSON)
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docJSONPath)))

	if err := verifyMounted(r, s.doc); err != nil {
		return nil, err
	}
	s.router = r
	return s, nil
}

func (s *Server) healthRoute() api.Route {
	return api.Route{
		Method:   http.MethodGet,
		Pattern:  "/",
		Summary:  "Service information and health check",
		Tags:     []string{"Health"},
		Response: HealthResponse{},
		Status:   http.StatusOK,
		Handler:  s.HandleHealth(),
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Document returns the generated OpenAPI document.
func (s *Server) Document() *spec.Swagger { return s.doc }

// ExportOpenAPI writes the document to path.
func (s *Server) ExportOpenAPI(path string) error {
	if err := openapi.Write(s.doc, path); err != nil {
		return err
	}
	s.log.Info().Str("path", path).Int("paths", len(s.doc.Paths.Paths)).Msg("OpenAPI document written")
	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ServerAddr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		ErrorLog:     stdlog.New(s.log, "", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.log.Info().Msg("server exited")
	return nil
}

// verifyMounted checks that every documented operation is served by the router.
func verifyMounted(r chi.Routes, doc *spec.Swagger) error {
	mounted := map[string]bool{}
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		mounted[method+" "+normalizeRoute(route)] = true
		return nil
	})
	if err != nil {
		return apperror.NewInternalError("failed to walk routes", err)
	}

	var missing []string
	for path, item := range doc.Paths.Paths {
		for method, op := range operations(item) {
			if op != nil && !mounted[method+" "+path] {
				missing = append(missing, method+" "+path)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperror.NewInternalError(
			"documented routes are not mounted: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// normalizeRoute maps chi's walk output onto document paths: subrouter joins ("/*/") and
// trailing slashes are removed and regexp constraints are stripped.
func normalizeRoute(route string) string {
	route = strings.ReplaceAll(route, "/*/", "/")
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return openapi.FullPath("", route)
}

func operations(item spec.PathItem) map[string]*spec.Operation {
	return map[string]*spec.Operation{
		http.MethodGet:     item.Get,
		http.MethodPost:    item.Post,
		http.MethodPut:     item.Put,
		http.MethodPatch:   item.Patch,
		http.MethodDelete:  item.Delete,
		http.MethodHead:    item.Head,
		http.MethodOptions: item.Options,
	}
}
