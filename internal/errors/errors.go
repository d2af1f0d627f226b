package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// Validation errors - malformed or missing request fields
	ErrorTypeValidation
	// Service unavailable - a required external client failed to initialize
	ErrorTypeServiceUnavailable
	// Execution errors - database or LLM call failed
	ErrorTypeExecution
	// Unsupported result shape - composite graph values that cannot be normalized
	ErrorTypeUnsupportedShape
	// Storage errors - local audit store failures
	ErrorTypeStorage
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, request fails
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case ErrorTypeExecution:
		return "EXECUTION"
	case ErrorTypeUnsupportedShape:
		return "UNSUPPORTED_RESULT_SHAPE"
	case ErrorTypeStorage:
		return "STORAGE"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// String returns the upper-case name of the error type
func (t ErrorType) String() string {
	return typeString(t)
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// ValidationError creates a validation error
func ValidationError(message string) *Error {
	return New(ErrorTypeValidation, SeverityHigh, message)
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// ServiceUnavailableError reports a dependency that was never constructed
func ServiceUnavailableError(message string) *Error {
	return New(ErrorTypeServiceUnavailable, SeverityHigh, message)
}

// ExecutionError wraps a failed database or LLM call
func ExecutionError(err error, message string) *Error {
	return Wrap(err, ErrorTypeExecution, SeverityHigh, message)
}

// UnsupportedShapeErrorf reports a result value the normalizer refuses to serialize
func UnsupportedShapeErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeUnsupportedShape, SeverityMedium, fmt.Sprintf(format, args...))
}

// StorageError wraps a local store failure
func StorageError(err error, message string) *Error {
	return Wrap(err, ErrorTypeStorage, SeverityMedium, message)
}

// GetType returns the type of an error, looking through wrapped errors
func GetType(err error) ErrorType {
	if err == nil {
		return ErrorTypeInternal
	}

	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}

	return ErrorTypeInternal
}

// HasType reports whether err (or anything it wraps) is a structured error of the given type
func HasType(err error, errType ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == errType
	}
	return false
}
