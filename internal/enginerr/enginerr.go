// Package enginerr defines the closed set of error kinds the engine raises.
// Every component imports this package instead of inventing its own error
// strings, so a caller can always recover the kind with errors.As/errors.Is.
package enginerr

import "fmt"

// Kind identifies one of the error categories from the engine's error
// handling design. It is never used for user-facing formatting on its own.
type Kind string

const (
	KindUnsupportedRuntime     Kind = "unsupported_runtime"
	KindUnsupportedPlatform    Kind = "unsupported_platform"
	KindBadBinary              Kind = "bad_binary"
	KindFrameworkNotFound      Kind = "framework_not_found"
	KindIncompatibleFramework  Kind = "incompatible_framework"
	KindNoSuitableAgent        Kind = "no_suitable_agent"
	KindAgentLaunchFailed      Kind = "agent_launch_failed"
	KindAgentCrashed           Kind = "agent_crashed"
	KindNotLoaded              Kind = "not_loaded"
	KindForceStopNotSupported  Kind = "force_stop_not_supported"
	KindExtensionLoadError     Kind = "extension_load_error"
	KindDuplicateExtensionPoint Kind = "duplicate_extension_point"
	KindNoExtensionPoint       Kind = "no_extension_point"
	KindAmbiguousExtensionPoint Kind = "ambiguous_extension_point"
	KindDriverError            Kind = "driver_error"
)

// Error is the concrete error type every engine component returns. Cause may
// be nil for kinds that carry no wrapped error (e.g. KindNotLoaded).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, enginerr.Sentinel(kind)) style checks: it matches
// any *Error target carrying the same Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs an *Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel returns a zero-value *Error of the given kind, suitable for use
// as the target of errors.Is.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// KindOf extracts the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return e.Kind, true
	}
	type wrapper interface{ Unwrap() error }
	for w, ok := err.(wrapper); ok; w, ok = err.(wrapper) {
		err = w.Unwrap()
		if as, ok := err.(*Error); ok {
			return as.Kind, true
		}
	}
	return "", false
}
