package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfig         = errors.New("invalid configuration")
	ErrMalformedState = errors.New("malformed persisted state")
	ErrIO             = errors.New("i/o failure")
	ErrMalformedQuery = errors.New("malformed query")
	ErrInvalidState   = errors.New("invalid state")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	Cause      error
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Err.Error(), e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Wrap attaches cause to a sentinel. The status code is derived from the
// sentinel.
func Wrap(sentinel error, cause error, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		Cause:      cause,
		StatusCode: HTTPStatusCode(sentinel),
	}
}

// IO reports a failed file operation on path.
func IO(op, path string, cause error) *AppError {
	return Wrap(ErrIO, cause, "%s %s", op, path)
}

// Malformed reports undecodable persisted state in path.
func Malformed(path string, format string, args ...any) *AppError {
	return &AppError{
		Err:        ErrMalformedState,
		Message:    path + ": " + fmt.Sprintf(format, args...),
		StatusCode: http.StatusInternalServerError,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrMalformedQuery), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrIO), errors.Is(err, ErrMalformedState):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
