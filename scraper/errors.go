package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Request error categories, used for metrics labels and the per-run
// error report.
const (
	kindTimeout     = "timeout"
	kindConnection  = "connection"
	kindForbidden   = "forbidden"
	kindNotFound    = "not_found"
	kindRateLimited = "rate_limited"
	kindOther       = "other"
	kindUnknown     = "unknown"
)

// RequestError wraps a transport failure with its classified category.
type RequestError struct {
	Kind string
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyRequest maps a transport error and HTTP status to a category.
// Every failure lands in exactly one bucket so the end-of-run report can
// aggregate them.
func classifyRequest(err error, statusCode int) *RequestError {
	if err == nil && statusCode == 0 {
		return &RequestError{Kind: kindUnknown}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestError{Kind: kindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RequestError{Kind: kindTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &RequestError{Kind: kindConnection, Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return &RequestError{Kind: kindForbidden, Err: wrapped}
		case http.StatusNotFound:
			return &RequestError{Kind: kindNotFound, Err: wrapped}
		case http.StatusTooManyRequests:
			return &RequestError{Kind: kindRateLimited, Err: wrapped}
		}
	}

	return &RequestError{Kind: kindOther, Err: err}
}
