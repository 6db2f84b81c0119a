// Package clipboard bridges the system clipboard: plain text read/write plus
// the snapshot/restore discipline capture uses to leave the user's clipboard
// as it found it.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrUnavailable is returned when no clipboard backend can be initialised.
var ErrUnavailable = errors.New("clipboard unavailable")

// Backend is a platform clipboard implementation.
type Backend interface {
	Name() string
	Init() error
	ReadText() (string, error)
	WriteText(text string) error
}

// ImageBackend is implemented by backends that can also carry PNG image data.
type ImageBackend interface {
	ReadImage() ([]byte, error)
	WriteImage(png []byte) error
}

// Snapshot is the clipboard content captured before a simulated copy.
// Valid is false when the clipboard could not be read; such a snapshot is
// never written back. HasText is false when the clipboard held no text.
type Snapshot struct {
	Text       string
	HasText    bool
	Image      []byte
	Valid      bool
	CapturedAt time.Time
}

// Bridge serialises access to one Backend.
type Bridge struct {
	backend Backend
	mu      sync.Mutex
	now     func() time.Time
}

func New(backend Backend) *Bridge {
	return &Bridge{backend: backend, now: time.Now}
}

// Init initialises the underlying backend.
func (b *Bridge) Init() error {
	if err := b.backend.Init(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, b.backend.Name(), err)
	}
	return nil
}

func (b *Bridge) Read(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	text, err := callWithContext(ctx, b.backend.ReadText)
	if err != nil {
		return "", fmt.Errorf("clipboard read (%s): %w", b.backend.Name(), err)
	}
	return text, nil
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func (b *Bridge) Write(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := callWithContext(ctx, func() (string, error) {
		return "", b.backend.WriteText(text)
	})
	if err != nil {
		return fmt.Errorf("clipboard write (%s): %w", b.backend.Name(), err)
	}
	return nil
}

// Snapshot reads the current content on a best-effort basis. It never fails:
// an unreadable clipboard yields a snapshot that Restore skips. When there is
// no text and the backend supports images, the image is kept instead.
func (b *Bridge) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{CapturedAt: b.now()}
	text, err := b.Read(ctx)
	if err != nil {
		log.Printf("clipboard: snapshot read failed, clipboard will not be restored: %v", err)
		return snap
	}
	snap.Text = text
	snap.HasText = text != ""
	snap.Valid = true
	if snap.HasText {
		return snap
	}

	ib, ok := b.backend.(ImageBackend)
	if !ok {
		return snap
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	img, err := callWithContext(ctx, func() (string, error) {
		data, err := ib.ReadImage()
		return string(data), err
	})
	if err != nil {
		log.Printf("clipboard: snapshot image read failed, clipboard will not be restored: %v", err)
		snap.Valid = false
		return snap
	}
	if img != "" {
		snap.Image = []byte(img)
	}
	return snap
}

// Restore writes the snapshot back. A valid snapshot without text or image
// clears the clipboard so text copied in between does not linger. An invalid
// snapshot is skipped. Failures are logged and swallowed.
func (b *Bridge) Restore(ctx context.Context, snap Snapshot) {
	if !snap.Valid {
		log.Printf("clipboard: skipping restore, snapshot from %s was not readable", snap.CapturedAt.Format(time.RFC3339Nano))
		return
	}
	var err error
	if len(snap.Image) > 0 {
		err = b.writeImage(ctx, snap.Image)
	} else {
		err = b.Write(ctx, snap.Text)
	}
	if err != nil {
		log.Printf("clipboard: restore failed (snapshot from %s): %v", snap.CapturedAt.Format(time.RFC3339Nano), err)
	}
}

func (b *Bridge) writeImage(ctx context.Context, png []byte) error {
	ib, ok := b.backend.(ImageBackend)
	if !ok {
		return fmt.Errorf("clipboard (%s): images not supported", b.backend.Name())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := callWithContext(ctx, func() (string, error) {
		return "", ib.WriteImage(png)
	})
	if err != nil {
		return fmt.Errorf("clipboard image write (%s): %w", b.backend.Name(), err)
	}
	return nil
}

// callWithContext runs a blocking backend call and gives up when ctx ends.
// The call itself keeps running in the background; its result is dropped.
func callWithContext(ctx context.Context, fn func() (string, error)) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resCh := make(chan struct {
		text string
		err  error
	}, 1)
	go func() {
		text, err := fn()
		resCh <- struct {
			text string
			err  error
		}{text, err}
	}()
	select {
	case r := <-resCh:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
