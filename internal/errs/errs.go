// Package errs defines the error kinds shared across scribe's daemon,
// surfaced identically over IPC responses and to the notifier.
package errs

import "errors"

// Kind identifies a category of error understood by IPC clients and the
// notifier. Kinds are stable strings so they can round-trip through JSON.
type Kind string

const (
	// Audio subsystem.
	KindDeviceUnavailable Kind = "DeviceUnavailable"
	KindDeviceLost        Kind = "DeviceLost"

	// Local transcription.
	KindModelNotFound    Kind = "ModelNotFound"
	KindModelLoadFailed  Kind = "ModelLoadFailed"
	KindInferenceFailed  Kind = "InferenceFailed"
	KindOutOfMemory      Kind = "OutOfMemory"
	KindModelNotLoaded   Kind = "ModelNotLoaded"

	// Remote transcription.
	KindAuthFailed     Kind = "AuthFailed"
	KindQuotaExceeded  Kind = "QuotaExceeded"
	KindNetworkError   Kind = "NetworkError"
	KindTimeout        Kind = "Timeout"
	KindBadResponse    Kind = "BadResponse"

	// Injection.
	KindInjectorSpawnFailed Kind = "InjectorSpawnFailed"
	KindInjectorIoFailed    Kind = "InjectorIoFailed"

	// Configuration (startup-only).
	KindConfigInvalid Kind = "ConfigInvalid"
	KindConfigMissing Kind = "ConfigMissing"

	// IPC.
	KindIpcProtocolError Kind = "IpcProtocolError"
	KindUnknownCommand   Kind = "UnknownCommand"
	KindBusy             Kind = "Busy"

	// Informational.
	KindUtteranceTooShort Kind = "UtteranceTooShort"
	KindCancelled         Kind = "Cancelled"
)

// Error is a typed error carrying a Kind alongside the usual message, so
// callers across package boundaries can classify failures without string
// matching.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// New builds an *Error for the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error for the given kind, wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, otherwise returns the empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Sentinel errors for conditions that don't need a message or kind lookup
// at the call site — mirrors the teacher's pkg/orchestrator/errors.go style.
var (
	ErrNilProvider      = errors.New("required provider is nil")
	ErrContextCancelled = errors.New("operation cancelled by context")
	ErrEmptyTranscript  = errors.New("transcription returned empty text")
)
