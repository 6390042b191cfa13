package backend

import (
	"fmt"
	"net/http"
)

// ErrorInfo is the single failure shape produced by every backend call.
// Transport is set when the backend could not be reached or did not answer in time.
type ErrorInfo struct {
	HTTPStatus int    `json:"-"`
	Message    string `json:"message"`
	Transport  bool   `json:"-"`
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.HTTPStatus, e.Message)
}

// Result is either a value or an ErrorInfo, never both.
type Result[T any] struct {
	Value T
	Err   *ErrorInfo
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail builds a failed result. A zero status is reported as 500.
func Fail[T any](status int, message string) Result[T] {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Result[T]{Err: &ErrorInfo{HTTPStatus: status, Message: message}}
}

// IsOk reports whether the call succeeded.
func (r Result[T]) IsOk() bool {
	return r.Err == nil
}

// Unwrap returns the value and the error info; exactly one is meaningful.
func (r Result[T]) Unwrap() (T, *ErrorInfo) {
	return r.Value, r.Err
}
