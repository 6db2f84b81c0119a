// Package selection captures the text selected in the foreground application
// and replaces it, through accessibility introspection where possible and a
// simulated copy/paste otherwise.
//
// Calls on one Service never overlap. A capture that falls back to the
// clipboard leaves it holding what it held before the call; a replace
// deliberately leaves the replacement on the clipboard.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"omni-text/src/clipboard"
	"omni-text/src/introspect"
)

const (
	DefaultTimeout = 2 * time.Second
	restoreTimeout = 500 * time.Millisecond
)

type Source int

const (
	SourceIntrospection Source = iota + 1
	SourceClipboardSimulation
)

func (s Source) String() string {
	switch s {
	case SourceIntrospection:
		return "introspection"
	case SourceClipboardSimulation:
		return "clipboard_simulation"
	default:
		return "unknown"
	}
}

type Result struct {
	Text   string
	Source Source
}

// Clipboard is satisfied by *clipboard.Bridge.
type Clipboard interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
	Snapshot(ctx context.Context) clipboard.Snapshot
	Restore(ctx context.Context, snap clipboard.Snapshot)
}

// Keyboard is satisfied by *inject.Injector. Both calls include the settle delay.
type Keyboard interface {
	Copy(ctx context.Context) error
	Paste(ctx context.Context) error
}

type Options struct {
	// Timeout bounds one whole Capture or Replace. Zero means DefaultTimeout.
	Timeout time.Duration
}

type Service struct {
	mu           sync.Mutex
	introspector introspect.Introspector
	clipboard    Clipboard
	keyboard     Keyboard
	timeout      time.Duration
}

func New(in introspect.Introspector, clip Clipboard, kb Keyboard, opts Options) *Service {
	if in == nil {
		in = introspect.Unavailable{}
	}
	s := &Service{
		introspector: in,
		clipboard:    clip,
		keyboard:     kb,
		timeout:      opts.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	return s
}

// Capture returns the current selection. A focused field that is secure, or
// whose security cannot be established, is refused before the clipboard is
// touched.
func (s *Service) Capture(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.capture(ctx)
	if err != nil {
		log.Printf("selection: capture failed (%s) after %v: %v", KindOf(err), time.Since(start), err)
		return Result{}, err
	}
	log.Printf("selection: captured %d chars via %s in %v", len([]rune(res.Text)), res.Source, time.Since(start))
	return res, nil
}

func (s *Service) capture(ctx context.Context) (Result, error) {
	available, err := bounded(ctx, func() (bool, error) {
		return s.introspector.Available(), nil
	})
	if err != nil {
		return Result{}, newError(KindClipboardIO, "timed out probing accessibility", err)
	}
	if !available {
		return s.captureViaClipboard(ctx)
	}

	if err := s.checkSecure(ctx); err != nil {
		return Result{}, err
	}

	text, err := bounded(ctx, s.introspector.FocusedSelectedText)
	switch {
	case err == nil && text != "":
		return Result{Text: text, Source: SourceIntrospection}, nil
	case err != nil && ctx.Err() != nil:
		return Result{}, newError(KindClipboardIO, "timed out reading selection", err)
	case err != nil:
		log.Printf("selection: introspection gave no selection, simulating copy: %v", err)
	}
	return s.captureViaClipboard(ctx)
}

// checkSecure fails closed: only a definite "not secure" lets capture go on.
func (s *Service) checkSecure(ctx context.Context) error {
	secure, err := bounded(ctx, s.introspector.FocusedElementSecure)
	switch {
	case err == nil && !secure:
		return nil
	case err == nil:
		return newError(KindSecureField, "", nil)
	case errors.Is(err, introspect.ErrPermissionDenied):
		return newError(KindPermissionDenied, "", err)
	default:
		return newError(KindSecureField, "focused field could not be verified", err)
	}
}

func (s *Service) captureViaClipboard(ctx context.Context) (Result, error) {
	snap := s.clipboard.Snapshot(ctx)

	restored := false
	restore := func() {
		if restored {
			return
		}
		restored = true
		// ctx may already be past its deadline; the restore still gets a window.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
		defer cancel()
		s.clipboard.Restore(rctx, snap)
	}
	defer restore()

	if err := s.keyboard.Copy(ctx); err != nil {
		if ctx.Err() != nil {
			return Result{}, newError(KindClipboardIO, "timed out waiting for copy", err)
		}
		return Result{}, newError(KindInjection, "copy shortcut", err)
	}

	text, err := s.clipboard.Read(ctx)
	restore()
	if err != nil {
		return Result{}, newError(KindClipboardIO, "read after copy", err)
	}
	if text == "" || text == snap.Text {
		return Result{}, newError(KindNoSelection, "", nil)
	}
	return Result{Text: text, Source: SourceClipboardSimulation}, nil
}

// Replace puts text on the clipboard and pastes it over the selection. The
// clipboard keeps text afterwards, including when the paste fails.
func (s *Service) Replace(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.clipboard.Write(ctx, text); err != nil {
		return newError(KindClipboardIO, "write replacement", err)
	}
	if err := s.keyboard.Paste(ctx); err != nil {
		detail := "paste shortcut"
		if ctx.Err() != nil {
			detail = "timed out waiting for paste"
		}
		return newError(KindInjection, detail, err)
	}
	log.Printf("selection: replaced selection with %d chars", len([]rune(text)))
	return nil
}

// bounded runs fn and stops waiting for it when ctx ends. Accessibility calls
// take no context of their own, so an abandoned call finishes in the background.
func bounded[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn()
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
