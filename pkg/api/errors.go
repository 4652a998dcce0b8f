package api

import "net/http"

// APIError represents an error with an associated HTTP status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// Common error constructors

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, message)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, message)
}

// ErrConflict returns a 409 Conflict error.
func ErrConflict(message string) *APIError {
	return NewAPIError(http.StatusConflict, message)
}

// ErrInternalServer returns a 500 Internal Server Error.
func ErrInternalServer(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, message)
}

// ErrServiceUnavailable returns a 503 Service Unavailable error.
func ErrServiceUnavailable(message string) *APIError {
	return NewAPIError(http.StatusServiceUnavailable, message)
}

// Specific error messages for common cases

// ErrMissingTarget returns a 400 error when neither tablet_id nor table_id
// is given.
func ErrMissingTarget() *APIError {
	return ErrBadRequest("tablet_id or table_id must be specified")
}

// ErrAmbiguousTarget returns a 400 error when both tablet_id and table_id
// are given.
func ErrAmbiguousTarget() *APIError {
	return ErrBadRequest("tablet_id and table_id can not be specified at the same time")
}

// ErrInvalidCompactType returns a 400 error for an unknown compact_type.
func ErrInvalidCompactType(got string) *APIError {
	return ErrBadRequest("compact_type must be base, cumulative or full, got '" + got + "'")
}

// ErrTabletNotFound returns a 404 error for an unknown tablet.
func ErrTabletNotFound(tabletID string) *APIError {
	return ErrNotFound("tablet '" + tabletID + "' not found")
}

// ErrCompactionRunning returns a 409 error when a conflicting compaction
// already holds the tablet's locks.
func ErrCompactionRunning() *APIError {
	return ErrConflict("compaction task for this tablet is already running")
}
