package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnreachable is returned when the request never produced an HTTP response
// (connection failure, timeout, cancelled context).
var ErrUnreachable = errors.New("backend unreachable")

// APIError is a non-2xx backend response. Detail carries the backend's JSON
// {"detail": ...} body when one was present.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// AuthFailure reports whether the response was an authorization failure, the
// only class of error eligible for the bounded refresh-and-retry.
func (e *APIError) AuthFailure() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsAuthFailure reports whether err is an [APIError] with a 401 or 403 status.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.AuthFailure()
}
