package githubapi

import (
	"errors"
	"fmt"
)

// ErrTransportFailure wraps network-level failures (DNS, timeout,
// connection reset) that the store adapter's caller should retry.
var ErrTransportFailure = errors.New("github transport failure")

// StatusError carries an HTTP status code and raw body back to the
// caller so it can distinguish a 409 (not-fast-forward, retry) from a
// 4xx (fatal) from a 5xx (retry with backoff).
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github api: status %d: %s", e.Code, e.Body)
}

// IsConflict reports whether err is a 409 not-fast-forward response.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == 409
}

// IsServerError reports whether err is a 5xx response, eligible for
// retry with backoff.
func IsServerError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 500
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == 404
}
