// Package api holds the HTTP plumbing shared by every resource: JSON responses, error
// translation, request decoding with validation, path/query parameter parsing and the
// route table type that feeds both the router and the OpenAPI document.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/user/layered-api-go/apperror"
)

// WriteJSON sends data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	// The status line is already sent, so an encoding failure can only be logged by the caller's
	// middleware; there is nothing left to report to the client.
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError translates err into its HTTP status and the standard error body. Errors that are
// not *apperror.AppError become a generic 500. Server-side failures are logged with the
// request's logger, client errors at debug level.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.FromError(err)
	status := appErr.StatusCode()

	logger := zerolog.Ctx(r.Context())
	event := logger.Debug()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("error_type", appErr.Type.String()).
		Int("status", status).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")

	WriteJSON(w, status, appErr.ToResponse(middleware.GetReqID(r.Context())))
}
