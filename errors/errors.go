package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrJobNotFound     = fmt.Errorf("job not found")
	ErrClaimLost       = fmt.Errorf("job already claimed or no longer due")
	ErrInvalidJob      = fmt.Errorf("invalid job")
	ErrInvalidPayload  = fmt.Errorf("invalid payload")
	ErrCorruptedRecord = fmt.Errorf("corrupted job record")
	ErrStoreConflict   = fmt.Errorf("job store conflict, retries exhausted")
	ErrNoJobHandler    = fmt.Errorf("no handler registered for job kind")

	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrSendBufferFull   = fmt.Errorf("connection send buffer full")

	ErrMissingToken  = fmt.Errorf("authorization token is missing")
	ErrInvalidToken  = fmt.Errorf("invalid or expired token")
	ErrForbidden     = fmt.Errorf("caller is not allowed to use this endpoint")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrUnknownEvent  = fmt.Errorf("unknown event name")
	ErrNoSMTPAddress = fmt.Errorf("smtp host is not configured")
)

// MapToHTTPStatus translates a sentinel error into the status returned by the HTTP layer.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownEvent),
		errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrInvalidJob):
		return http.StatusBadRequest
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStoreConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
