package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can tell which construction
// phase went wrong without inspecting graph internals.
type ErrorKind string

// Low-level failure kinds reported by enumeration, negotiation and the media framework.
const (
	KindCreationFailed      ErrorKind = "creation_failed"
	KindAddFilterFailed     ErrorKind = "add_filter_failed"
	KindEndpointNotFound    ErrorKind = "endpoint_not_found"
	KindEndpointInUse       ErrorKind = "endpoint_in_use"
	KindIncompatibleFormats ErrorKind = "incompatible_formats"
	KindConfigureFailed     ErrorKind = "configure_failed"
	KindEnumerationFailed   ErrorKind = "enumeration_failed"
	KindNoDeviceFound       ErrorKind = "no_device_found"
	KindInvalidIndex        ErrorKind = "invalid_index"
	KindInvalidArgument     ErrorKind = "invalid_argument"
	KindNotImplemented      ErrorKind = "not_implemented"
)

// Build phase failure kinds reported by the pipeline builder.
const (
	KindGraphCreationFailed ErrorKind = "graph_creation_failed"
	KindNoVideoSource       ErrorKind = "no_video_source"
	KindVideoEncoderError   ErrorKind = "video_encoder_error"
	KindVpxConfigureError   ErrorKind = "vpx_configure_error"
	KindVideoConnectError   ErrorKind = "video_connect_error"
	KindNoAudioSource       ErrorKind = "no_audio_source"
	KindRunFailed           ErrorKind = "run_failed"
	KindInvalidState        ErrorKind = "invalid_state"
)

// Sentinels for use with errors.Is. Matching is by kind only.
var (
	ErrCreationFailed      = &Error{Kind: KindCreationFailed}
	ErrAddFilterFailed     = &Error{Kind: KindAddFilterFailed}
	ErrEndpointNotFound    = &Error{Kind: KindEndpointNotFound}
	ErrEndpointInUse       = &Error{Kind: KindEndpointInUse}
	ErrIncompatibleFormats = &Error{Kind: KindIncompatibleFormats}
	ErrConfigureFailed     = &Error{Kind: KindConfigureFailed}
	ErrEnumerationFailed   = &Error{Kind: KindEnumerationFailed}
	ErrNoDeviceFound       = &Error{Kind: KindNoDeviceFound}
	ErrInvalidIndex        = &Error{Kind: KindInvalidIndex}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
	ErrNotImplemented      = &Error{Kind: KindNotImplemented}

	ErrGraphCreationFailed = &Error{Kind: KindGraphCreationFailed}
	ErrNoVideoSource       = &Error{Kind: KindNoVideoSource}
	ErrVideoEncoderError   = &Error{Kind: KindVideoEncoderError}
	ErrVpxConfigureError   = &Error{Kind: KindVpxConfigureError}
	ErrVideoConnectError   = &Error{Kind: KindVideoConnectError}
	ErrNoAudioSource       = &Error{Kind: KindNoAudioSource}
	ErrRunFailed           = &Error{Kind: KindRunFailed}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
)

// Error is a classified failure. Op names the operation that failed and
// Err holds the underlying cause, which may itself be an *Error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError returns an *Error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf returns an *Error of the given kind with a formatted cause.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or an
// empty kind if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`   // JSON path to the field (e.g., "capture.video_source")
	Message string `json:"message"` // Human-readable error message
	Value   any    `json:"value"`   // The invalid value that was provided
}

// ValidationError collects multiple field validation errors.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

// NewValidationError creates a new empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{
		Errors: make([]FieldError, 0),
	}
}

// Add adds a field error to the collection.
func (v *ValidationError) Add(field, message string, value any) {
	v.Errors = append(v.Errors, FieldError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

func (v *ValidationError) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	first := v.Errors[0]
	if len(v.Errors) == 1 {
		return fmt.Sprintf("%s: %s", first.Field, first.Message)
	}
	return fmt.Sprintf("%s: %s (and %d more)", first.Field, first.Message, len(v.Errors)-1)
}
