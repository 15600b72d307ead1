package server

import (
	"net/http"

	"github.com/user/layered-api-go/api"
)

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Message   string `json:"message" example:"Welcome to Go REST API Starter"`
	Version   string `json:"version" example:"1.0.0"`
	Database  string `json:"database" example:"sqlite"`
	Docs      string `json:"docs" example:"/swagger/index.html"`
	APIPrefix string `json:"api_prefix" example:"/api/v1"`
}

// HandleHealth godoc
// @Summary Service information and health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router / [get]
func (s *Server) HandleHealth() http.HandlerFunc {
	resp := HealthResponse{
		Message:   "Welcome to " + s.cfg.AppName(),
		Version:   s.cfg.Application.Version,
		Database:  s.cfg.DBType(),
		Docs:      docsPath,
		APIPrefix: s.cfg.APIPrefix(),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, resp)
	}
}
