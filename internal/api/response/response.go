// Package response writes the JSON envelopes shared by all handlers.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperror "stockdash/internal/errors"
	"stockdash/internal/pkg/logger"
	"stockdash/internal/pkg/middleware"
)

// Handle writes data with successStatus when err is nil, otherwise the
// mapped error body. Server-side failures are logged as errors and client
// errors at debug level.
func Handle(w http.ResponseWriter, r *http.Request, log logger.Logger, data interface{}, err error, successStatus int) {
	if err == nil {
		JSON(w, log, successStatus, data)
		return
	}

	status, category, _ := apperror.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error(fmt.Sprintf("%s %s failed: %s", r.Method, r.URL.Path, category), err)
	} else {
		log.Debug("request rejected", map[string]interface{}{
			"path":     r.URL.Path,
			"status":   status,
			"category": category,
		})
	}
	middleware.WriteError(w, err)
}

// JSON writes data as a JSON body. A nil data writes only the status.
func JSON(w http.ResponseWriter, log logger.Logger, status int, data interface{}) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode response", err)
	}
}

// Decode reads a JSON body into dst, rejecting unknown fields. Untyped
// numbers are kept as json.Number so large integers survive coercion.
func Decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return apperror.NewValidationError(fmt.Sprintf("invalid JSON payload: %v", err))
	}
	return nil
}
