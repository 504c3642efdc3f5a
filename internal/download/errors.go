package download

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is against any error returned by Fetch.
var (
	// ErrNetwork covers connection failures, timeouts and truncated bodies.
	// It is the only kind Fetch retries.
	ErrNetwork = errors.New("network error")
	// ErrHTTPStatus is a non-2xx, non-redirect response.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	// ErrIO is a local filesystem failure while writing the download.
	ErrIO = errors.New("local I/O error")
	// ErrTooManyRedirects is returned when a redirect leads to another redirect.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// Error describes a failed download.
type Error struct {
	Kind error
	URL  string
	// StatusCode is set for ErrHTTPStatus and ErrTooManyRedirects.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func isTransient(err error) bool {
	return errors.Is(err, ErrNetwork)
}
