package relay

import (
	"errors"
	"fmt"
	"net/http"
)

// Programming defects. These are raised with panic, never returned, so that
// misuse in handler code fails loudly at the call site. The panic value wraps
// one of these sentinels and can be matched with errors.Is after recover.
var (
	ErrAlreadySent       = errors.New("relay: response was already sent")
	ErrCallAlreadySent   = errors.New("relay: backend call was already sent")
	ErrNotDispatched     = errors.New("relay: RunManual called without Dispatched")
	ErrExtractorCallback = errors.New("relay: extractor callback invoked more than once")
	ErrResultEmpty       = errors.New("relay: result is empty")
	ErrResultPresent     = errors.New("relay: result is present")
	ErrArgType           = errors.New("relay: argument has a different type")
)

// Configuration errors, returned at registration or build time.
var (
	ErrRouteConflict   = errors.New("relay: multiple pipelines have the same route")
	ErrInvalidEndpoint = errors.New("relay: invalid endpoint")
	ErrInvalidRequest  = errors.New("relay: invalid backend request")
)

// Upstream errors, returned by synchronous backend calls and logged by
// dispatched ones.
var (
	ErrUpstreamTransport = errors.New("relay: upstream transport failure")
	ErrUpstreamResponse  = errors.New("relay: upstream response could not be adapted")
)

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// RouteError is returned by Router.Route when no pipeline can serve a request.
type RouteError struct {
	Status int
	Method string
	Path   string
}

// Sentinel route errors, matched with errors.Is.
var (
	ErrBadMethod        = &RouteError{Status: http.StatusBadRequest}
	ErrNotFound         = &RouteError{Status: http.StatusNotFound}
	ErrMethodNotAllowed = &RouteError{Status: http.StatusMethodNotAllowed}
)

func (e *RouteError) Error() string {
	return fmt.Sprintf("relay: %s %s: %s", e.Method, e.Path, http.StatusText(e.Status))
}

// StatusCode returns 400, 404 or 405.
func (e *RouteError) StatusCode() int { return e.Status }

// Is matches route errors by status so errors.Is(err, ErrNotFound) works for
// errors carrying a method and path.
func (e *RouteError) Is(target error) bool {
	t, ok := target.(*RouteError)
	return ok && t.Status == e.Status
}
