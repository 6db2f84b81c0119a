// Package commands is the stable, transport-independent command surface:
// get_selected_text, replace_selected_text, check_accessibility_permission
// and request_accessibility_permission.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"omni-text/src/selection"
)

const (
	GetSelectedText                = "get_selected_text"
	ReplaceSelectedText            = "replace_selected_text"
	CheckAccessibilityPermission   = "check_accessibility_permission"
	RequestAccessibilityPermission = "request_accessibility_permission"
)

var ErrUnknownCommand = errors.New("unknown command")

// Selection is satisfied by *selection.Service.
type Selection interface {
	Capture(ctx context.Context) (selection.Result, error)
	Replace(ctx context.Context, text string) error
}

// Permission is satisfied by *permission.Gate.
type Permission interface {
	Check() bool
	Request()
}

type Handler struct {
	selection  Selection
	permission Permission
}

func New(sel Selection, perm Permission) *Handler {
	return &Handler{selection: sel, permission: perm}
}

func (h *Handler) GetSelectedText(ctx context.Context) (string, error) {
	res, err := h.selection.Capture(ctx)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (h *Handler) ReplaceSelectedText(ctx context.Context, text string) error {
	return h.selection.Replace(ctx, text)
}

// CheckAccessibilityPermission never prompts.
func (h *Handler) CheckAccessibilityPermission() bool {
	return h.permission.Check()
}

func (h *Handler) RequestAccessibilityPermission() {
	h.permission.Request()
}

// Dispatch runs a command by name. The reply is the captured text for
// get_selected_text, "true"/"false" for the permission check, and empty
// otherwise.
func (h *Handler) Dispatch(ctx context.Context, name string, args []string) (string, error) {
	switch name {
	case GetSelectedText:
		return h.GetSelectedText(ctx)
	case ReplaceSelectedText:
		if len(args) != 1 {
			return "", fmt.Errorf("%s expects exactly one argument, got %d", name, len(args))
		}
		return "", h.ReplaceSelectedText(ctx, args[0])
	case CheckAccessibilityPermission:
		return strconv.FormatBool(h.CheckAccessibilityPermission()), nil
	case RequestAccessibilityPermission:
		h.RequestAccessibilityPermission()
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

// Names lists every command Dispatch accepts.
func Names() []string {
	return []string{GetSelectedText, ReplaceSelectedText, CheckAccessibilityPermission, RequestAccessibilityPermission}
}
