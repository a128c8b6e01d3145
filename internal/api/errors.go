package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/safebase-monitor/internal/errors"
	"github.com/safebase-monitor/internal/types"
)

// ErrorResponse represents an API error response. The status field is what
// the browser client branches on; the error object carries the detail.
type ErrorResponse struct {
	Status string             `json:"status"`
	Error  types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Status: "error",
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses a JSON request body. Unknown fields are tolerated so
// clients sending extra or older field names are not rejected outright.
func parseJSONBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// respondServiceError maps a service-layer error to an HTTP response.
// Categorized errors carry their own status code; anything else is an
// internal error whose detail stays in the log.
func respondServiceError(w http.ResponseWriter, err error) {
	if catErr, ok := apperrors.AsCategorized(err); ok {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}
	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
}
