// Package apierr carries an HTTP status and a stable machine-readable code
// alongside an error cause, so transport handlers can translate failures
// raised deep in middleware or services without string matching.
package apierr

import "fmt"

// Error pairs a transport status and code with the underlying cause.
// Handlers unwrap it with errors.As; anything that is not an *Error falls
// back to a generic 500.
type Error struct {
	Status int
	Code   string
	Err    error
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Error prefers the wrapped cause, then the code, so logs stay readable even
// when a caller built the value with only partial detail.
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
