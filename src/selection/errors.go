package selection

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindSecureField
	KindNoSelection
	KindPermissionDenied
	KindClipboardIO
	KindInjection
)

func (k Kind) String() string {
	switch k {
	case KindSecureField:
		return "secure_field"
	case KindNoSelection:
		return "no_selection"
	case KindPermissionDenied:
		return "permission_denied"
	case KindClipboardIO:
		return "clipboard_io"
	case KindInjection:
		return "injection"
	default:
		return "unknown"
	}
}

// Error is the only error type Capture and Replace return. Platform errors
// are kept in Err for logging but never surface as the Kind.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrSecureField      = &Error{Kind: KindSecureField}
	ErrNoSelection      = &Error{Kind: KindNoSelection}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrClipboardIO      = &Error{Kind: KindClipboardIO}
	ErrInjection        = &Error{Kind: KindInjection}
	ErrUnknown          = &Error{Kind: KindUnknown}
)

func (e *Error) Error() string {
	msg := defaultMessage(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf reports the Kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage is the short text shown in notifications and the CLI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("Unknown error: %v", err)
	}
	switch e.Kind {
	case KindClipboardIO, KindInjection, KindUnknown:
		if e.Detail != "" {
			return defaultMessage(e.Kind) + ": " + e.Detail
		}
	}
	return defaultMessage(e.Kind)
}

func defaultMessage(k Kind) string {
	switch k {
	case KindSecureField:
		return "Cannot read from secure/password fields"
	case KindNoSelection:
		return "No text selected"
	case KindPermissionDenied:
		return "Accessibility permission not granted"
	case KindClipboardIO:
		return "Clipboard error"
	case KindInjection:
		return "Could not send keystrokes to the application"
	default:
		return "Unknown error"
	}
}
