package kick

import (
	"errors"
	"fmt"
	"net/http"
)

// Framework errors
var (
	// Configuration errors
	ErrConfigNil                  = errors.New("config is nil")
	ErrConfigNotPointer           = errors.New("config must be a pointer")
	ErrConfigNotStruct            = errors.New("config must be a struct")
	ErrConfigRequiredFieldMissing = errors.New("required field is missing")
	ErrConfigValidationFailed     = errors.New("config validation failed")
	ErrUnsupportedTypeForDefault  = errors.New("unsupported type for default value")
	ErrDefaultValueParseError     = errors.New("failed to parse default value")
	ErrUnsupportedFormatType      = errors.New("unsupported format type")
	ErrConfigFeederError          = errors.New("config feeder error")
	ErrInvalidLogLevel            = errors.New("invalid log level")

	// Container errors
	ErrBindingNotFound     = errors.New("binding not found")
	ErrBindingExists       = errors.New("binding already exists")
	ErrCircularDependency  = errors.New("circular dependency detected")
	ErrTargetNotPointer    = errors.New("target must be a non-nil pointer")
	ErrServiceIncompatible = errors.New("service cannot be assigned to target")
	ErrProviderNil         = errors.New("provider is nil")

	// Declaration errors
	ErrHandlerNil         = errors.New("route handler is nil")
	ErrControllerNotFound = errors.New("controller has no metadata")

	// Application errors
	ErrAppNotStarted     = errors.New("application not started")
	ErrAppAlreadyStarted = errors.New("application already started")
)

// Error codes produced by the framework. Codes are stable identifiers suitable
// for matching in tests and client code.
const (
	CodeInvalidControllerStructure = "INVALID_CONTROLLER_STRUCTURE"
	CodeInvalidVerbController      = "INVALID_VERB_CONTROLLER"
	CodeInvalidControllerHandler   = "INVALID_CONTROLLER_HANDLER"
	CodeVerbMismatch               = "VERB_MISMATCH"
	CodeRouteConflict              = "ROUTE_CONFLICT"
	CodeInvalidRouteHandler        = "INVALID_ROUTE_HANDLER"
	CodeValidationError            = "VALIDATION_ERROR"
	CodeValidationUnsupported      = "VALIDATION_UNSUPPORTED"
	CodeInternalError              = "INTERNAL_ERROR"
	CodeNotFound                   = "NOT_FOUND"
	CodeInvalidBody                = "INVALID_BODY"
	CodeMethodNotAllowed           = "METHOD_NOT_ALLOWED"
)

// Error is the framework's structured error. It carries a stable code, an
// HTTP status and optional details that are rendered in the error envelope.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
	Cause   error
}

// ErrorOption customises an Error built by NewError.
type ErrorOption func(*Error)

// WithStatus sets the HTTP status of the error.
func WithStatus(status int) ErrorOption {
	return func(e *Error) { e.Status = status }
}

// WithDetails attaches structured details to the error.
func WithDetails(details map[string]any) ErrorOption {
	return func(e *Error) { e.Details = details }
}

// WithCause records the underlying error.
func WithCause(cause error) ErrorOption {
	return func(e *Error) { e.Cause = cause }
}

// NewError creates an Error with status 500 unless overridden.
func NewError(code, message string, opts ...ErrorOption) *Error {
	e := &Error{Code: code, Message: message, Status: http.StatusInternalServerError}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given framework error code.
func IsCode(err error, code string) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// normalizeError converts any error into a framework error. Errors without a
// code become INTERNAL_ERROR with a generic message, keeping the original as
// the cause.
func normalizeError(err error) *Error {
	if e, ok := AsError(err); ok {
		if e.Status == 0 {
			cp := *e
			cp.Status = http.StatusInternalServerError
			return &cp
		}
		return e
	}
	return NewError(CodeInternalError, "Internal server error", WithCause(err))
}
