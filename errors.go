package static

import (
	"errors"
	"net/http"
)

var (
	// ErrBadRequest is returned when the request path cannot be decoded
	ErrBadRequest = errors.New("bad request")
	// ErrForbidden is returned when the request path escapes the root
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a file, manifest, or manifest entry is missing
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrStream is returned when reading or transforming a file fails mid-response
	ErrStream = errors.New("stream failure")

	// ErrUnsupportedRange is returned for Range headers other than a single bytes range
	ErrUnsupportedRange = errors.New("unsupported range")
	// ErrInvalidRange is returned for a bytes range that cannot be satisfied
	ErrInvalidRange = errors.New("invalid range")
)

// StatusFor maps an error to the HTTP status code used to report it.
func StatusFor(err error) int {
	var respErr *ResponseError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &respErr) && respErr.Status != 0:
		return respErr.Status
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ResponseError is the failure outcome of a request. It carries the status
// and headers the response should be written with.
//
// Committed is true when the response status and headers were already sent
// before the failure; such a response can only be aborted.
type ResponseError struct {
	Result
	Committed bool
	Err       error
}

func (e *ResponseError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}
