package logging

import (
	"time"

	"github.com/rs/zerolog"
)

// AuditRequest records the arrival of an HTTP request.
func AuditRequest(audit zerolog.Logger, requestID, method, path, client string) {
	audit.Info().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Str("client", client).
		Msg("REQUEST")
}

// AuditResponse records the outcome of an HTTP request. Server errors are logged at error level.
func AuditResponse(audit zerolog.Logger, requestID, method, path string, status int, elapsed time.Duration) {
	event := audit.Info()
	if status >= 500 {
		event = audit.Error()
	}
	event.
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Float64("duration_ms", float64(elapsed.Microseconds())/1000).
		Msg("RESPONSE")
}
