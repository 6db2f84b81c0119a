// Package introspect reads the focused UI element of the foreground
// application through the platform accessibility tree: whether it is a
// secure (password) field and what text it has selected.
//
// None of the calls here ever prompt the user for permission.
package introspect

import "errors"

var (
	ErrNoFocusedElement   = errors.New("no focused element")
	ErrNoAttributeSupport = errors.New("focused element does not expose the attribute")
	ErrPermissionDenied   = errors.New("accessibility permission denied")
	ErrUnavailable        = errors.New("accessibility introspection unavailable")
)

// Introspector is implemented once per platform.
type Introspector interface {
	// Available reports whether an accessibility surface exists at all.
	Available() bool
	// FocusedElementSecure is true only on a positive identification of a
	// secure text field. Callers must treat an error as indeterminate.
	FocusedElementSecure() (bool, error)
	FocusedSelectedText() (string, error)
}

// New returns the adapter for the running platform.
func New() Introspector {
	return newPlatform()
}

// Unavailable is used where no accessibility API exists or it was turned off.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

// FocusedElementSecure reports false without error: there is no secure-field
// surface to consult, and the clipboard path stays usable.
func (Unavailable) FocusedElementSecure() (bool, error) { return false, nil }

func (Unavailable) FocusedSelectedText() (string, error) { return "", ErrUnavailable }
