// Package errors provides the categorized error taxonomy for the monitoring
// service: validation, not-found, transient scorer, delivery and store errors.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/safebase-monitor/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents malformed input, rejected before touching the store
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents operations on unknown users or addresses
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryScorer represents transient scorer failures, retried next cycle
	CategoryScorer ErrorCategory = "scorer"
	// CategoryDelivery represents notification channel failures
	CategoryDelivery ErrorCategory = "delivery"
	// CategoryStore represents persistence failures with no partial state committed
	CategoryStore ErrorCategory = "store"
	// CategoryAuthorization represents missing or invalid user identity
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryRateLimit represents quota or rate limit violations
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryUpstream represents failures of opaque collaborators (chat assistant)
	CategoryUpstream ErrorCategory = "upstream"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire-level ServiceError shape
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidAddressError creates a validation error for a malformed chain address
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewInvalidInputError creates a generic validation error
func NewInvalidInputError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_INPUT",
		Message:    reason,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewAddressNotWatchedError creates a not found error for a remove on an
// address that is not on the user's watchlist
func NewAddressNotWatchedError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "ADDRESS_NOT_WATCHED",
		Message:    fmt.Sprintf("address is not on the watchlist: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// NewScorerUnavailableError creates a transient scorer error. Evaluations that
// hit this are retried on the next poll cycle and never produce an alert.
func NewScorerUnavailableError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryScorer,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SCORER_UNAVAILABLE",
		Message:    "risk scorer is unavailable",
		Cause:      cause,
	}
}

// NewDeliveryError creates a delivery error for a notification channel
func NewDeliveryError(channel string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDelivery,
		StatusCode: http.StatusBadGateway,
		Code:       "DELIVERY_FAILED",
		Message:    fmt.Sprintf("delivery failed on channel %s", channel),
		Details: map[string]interface{}{
			"channel": channel,
		},
		Cause: cause,
	}
}

// NewStoreError creates a store error. The caller surfaces it as a 5xx with
// no partial state committed.
func NewStoreError(op string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStore,
		StatusCode: http.StatusInternalServerError,
		Code:       "STORE_UNAVAILABLE",
		Message:    fmt.Sprintf("store operation failed: %s", op),
		Cause:      cause,
	}
}

// NewQuotaExceededError creates a rate limit error for the free-tier daily quota
func NewQuotaExceededError(limit int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusForbidden,
		Code:       "QUOTA_EXCEEDED",
		Message:    fmt.Sprintf("free tier daily analysis limit reached (%d)", limit),
		Details: map[string]interface{}{
			"limit": limit,
		},
	}
}

// NewUpstreamError creates an error for an opaque upstream collaborator
func NewUpstreamError(name string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("upstream %s request failed", name),
		Cause:      cause,
	}
}

// AsCategorized extracts a CategorizedError from an error chain
func AsCategorized(err error) (*CategorizedError, bool) {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsTransient reports whether err is a transient scorer failure
func IsTransient(err error) bool {
	if ce, ok := AsCategorized(err); ok {
		return ce.Category == CategoryScorer
	}
	return false
}

// IsNotFound reports whether err is a not-found style failure
func IsNotFound(err error) bool {
	if ce, ok := AsCategorized(err); ok {
		return ce.Category == CategoryNotFound
	}
	return false
}
