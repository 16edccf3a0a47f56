package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{fmt.Errorf("wrapped: %w", statusErr(429)), true},
		{statusErr(503), true},
		{statusErr(400), false},
		{statusErr(404), false},
		{&net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), true},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("IsRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for code, want := range map[int]bool{200: false, 400: false, 408: true, 429: true, 500: true, 599: true, 600: false} {
		if got := IsRetryableHTTPStatus(code); got != want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", code, got, want)
		}
	}
}
