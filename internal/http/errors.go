// Package httpapi exposes the HTTP API layer of the service.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/order-fulfillment-service/internal/apperr"
	"github.com/fairyhunter13/order-fulfillment-service/internal/obs"
)

// jsonError represents a JSON error payload.
type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

// requestError is a transport-level rejection (bad JSON, wrong media type)
// that happens before any domain code runs.
type requestError struct {
	status  int
	code    string
	details string
}

func (e *requestError) Error() string { return e.code + ": " + e.details }

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientStock, apperr.KindInvalidState, apperr.KindConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Unknown errors become a bare 500 so internal
// messages never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var re *requestError
	var ae *apperr.Error
	switch {
	case errors.As(err, &re):
		WriteJSONError(w, re.status, re.code, re.details)
	case errors.As(err, &ae):
		WriteJSONError(w, statusFor(ae.Kind), ae.Kind.String(), ae.Message)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		WriteJSONError(w, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		obs.Logger.Error("request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
