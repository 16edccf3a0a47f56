package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From classifies err into a status and a stable code. Internal errors keep
// their status but hide the message.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, apperrors.ErrInvalidInput):
		return New(http.StatusBadRequest, apperrors.KindInvalidInput, err)
	case errors.Is(err, apperrors.ErrNotFound):
		return New(http.StatusNotFound, apperrors.KindNotFound, err)
	case errors.Is(err, apperrors.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, apperrors.ErrOverloaded):
		return New(http.StatusServiceUnavailable, apperrors.KindOverloaded, err)
	case errors.Is(err, apperrors.ErrResourceExhausted):
		return New(http.StatusTooManyRequests, "resource_exhausted", err)
	case errors.Is(err, context.Canceled):
		return New(499, apperrors.KindCancelled, err)
	default:
		return New(http.StatusInternalServerError, apperrors.KindInternal, errors.New("internal error"))
	}
}
