// Package httpx classifies outbound HTTP failures for retry decisions.
package httpx

import (
	"context"
	"errors"
	"io"
	"net"
)

// HTTPStatusCoder is implemented by client errors that carry a response status.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// IsRetryableHTTPStatus is true for request timeout, rate limiting and 5xx.
func IsRetryableHTTPStatus(code int) bool {
	switch {
	case code == 408, code == 429:
		return true
	default:
		return code >= 500 && code <= 599
	}
}

// IsRetryableError reports transport failures and retryable statuses. Caller
// cancellation never retries; a timeout does.
func IsRetryableError(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
