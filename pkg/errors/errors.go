// Package errors provides the structured error system for AssetFS with error
// codes and categories. Every failure surfaced by the access layer carries one
// of four codes, so callers can branch on the class of failure without string
// matching.
package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a structured error code for AssetFS operations.
type ErrorCode string

const (
	// ErrCodeNotFound means resolution exhausted all search tiers without
	// locating the requested name. Recoverable; the caller decides fallback.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeIOFailure means a native operation failed after a target was
	// identified. Recoverable by the caller, but it implies a real storage
	// problem and is typically surfaced to the user.
	ErrCodeIOFailure ErrorCode = "IO_FAILURE"

	// ErrCodeInvalidOperation means the caller violated a handle's capability
	// contract, e.g. writing through a library-backed handle. This is a
	// programming error and should not occur in correct calling code.
	ErrCodeInvalidOperation ErrorCode = "INVALID_OPERATION"

	// ErrCodeConfigFailure means the process-wide root directories could not
	// be established at startup. Fatal; initialization aborts.
	ErrCodeConfigFailure ErrorCode = "CONFIG_FAILURE"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryResolution    ErrorCategory = "resolution"
	CategoryIO            ErrorCategory = "io"
	CategoryContract      ErrorCategory = "contract"
	CategoryConfiguration ErrorCategory = "configuration"
)

// Error represents a structured AssetFS error with code, category and context.
type Error struct {
	Code     ErrorCode
	Category ErrorCategory
	Message  string

	// Op is the operation that failed (e.g. "open", "read", "seek").
	Op string

	// Path is the logical name or filesystem path involved, when known.
	Path string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("%q", e.Path))
	}
	head := strings.Join(parts, " ")
	if head != "" {
		head += ": "
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %s: %s", head, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s%s: %s", head, e.Code, e.Message)
}

// Unwrap returns the underlying cause for error wrapping compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two AssetFS errors match when
// their codes are equal, so errors.Is(err, NotFound("")) works as a class
// check regardless of path or message.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithOp sets the operation on the error and returns it.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithPath sets the path on the error and returns it.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// GetCategory determines the category for an error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeNotFound:
		return CategoryResolution
	case ErrCodeIOFailure:
		return CategoryIO
	case ErrCodeInvalidOperation:
		return CategoryContract
	case ErrCodeConfigFailure:
		return CategoryConfiguration
	default:
		return CategoryIO
	}
}

// NewError creates a new structured error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Category: GetCategory(code),
		Message:  message,
	}
}

// NotFound creates a NOT_FOUND error for the given logical name.
func NotFound(name string) *Error {
	return &Error{
		Code:     ErrCodeNotFound,
		Category: CategoryResolution,
		Message:  "file not found in any search tier",
		Path:     name,
	}
}

// IOFailure creates an IO_FAILURE error for a failed native operation.
func IOFailure(op, path string, cause error) *Error {
	return &Error{
		Code:     ErrCodeIOFailure,
		Category: CategoryIO,
		Message:  "native operation failed",
		Op:       op,
		Path:     path,
		Cause:    cause,
	}
}

// InvalidOperation creates an INVALID_OPERATION error for a capability
// contract violation.
func InvalidOperation(op, message string) *Error {
	return &Error{
		Code:     ErrCodeInvalidOperation,
		Category: CategoryContract,
		Message:  message,
		Op:       op,
	}
}

// ConfigFailure creates a CONFIG_FAILURE error for a startup failure.
func ConfigFailure(message string, cause error) *Error {
	return &Error{
		Code:     ErrCodeConfigFailure,
		Category: CategoryConfiguration,
		Message:  message,
		Cause:    cause,
	}
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsIOFailure reports whether err carries the IO_FAILURE code.
func IsIOFailure(err error) bool { return hasCode(err, ErrCodeIOFailure) }

// IsInvalidOperation reports whether err carries the INVALID_OPERATION code.
func IsInvalidOperation(err error) bool { return hasCode(err, ErrCodeInvalidOperation) }

// IsConfigFailure reports whether err carries the CONFIG_FAILURE code.
func IsConfigFailure(err error) bool { return hasCode(err, ErrCodeConfigFailure) }

func hasCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
