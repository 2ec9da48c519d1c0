package apperr

import (
	"errors"
	"fmt"
)

// Error is the lifecycle error type.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Ids and states involved
	Cause    error             // Wrapped underlying error
}

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized}
	ErrSelfPurchase      = &Error{Code: CodeSelfPurchase}
	ErrAlreadySold       = &Error{Code: CodeAlreadySold}
	ErrCurrentlyReserved = &Error{Code: CodeCurrentlyReserved}
	ErrNotActive         = &Error{Code: CodeNotActive}
	ErrNotPending        = &Error{Code: CodeNotPending}
	ErrImmutable         = &Error{Code: CodeImmutable}
	ErrConflict          = &Error{Code: CodeConflict}
	ErrInternal          = &Error{Code: CodeInternal}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error that wraps cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// WithMetadata returns a copy of e with key set in its metadata.
func (e *Error) WithMetadata(key, value string) *Error {
	cp := *e
	cp.Metadata = make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code carried by err. Errors outside the taxonomy
// report CodeInternal; nil reports "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus is CodeOf(err).HTTPStatus().
func HTTPStatus(err error) int {
	return CodeOf(err).HTTPStatus()
}

// Classify returns err unchanged when it already carries a code and wraps
// it as CodeInternal otherwise.
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return Wrap(CodeInternal, msg, err)
}
