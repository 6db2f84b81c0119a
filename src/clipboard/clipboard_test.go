package clipboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu       sync.Mutex
	text     string
	readErr  error
	writeErr error
	block    chan struct{}
	writes   []string
}

func (f *fakeBackend) Name() string { return "fake" }
func (f *fakeBackend) Init() error  { return nil }

func (f *fakeBackend) ReadText() (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.readErr
}

func (f *fakeBackend) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.text = text
	f.writes = append(f.writes, text)
	return nil
}

func TestReadWrite(t *testing.T) {
	fb := &fakeBackend{}
	b := New(fb)
	ctx := context.Background()

	if err := b.Write(ctx, "hello"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := b.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "hello" {
		t.Errorf("Read() = %q; want %q", got, "hello")
	}
}

func TestWriteErrorIsWrapped(t *testing.T) {
	sentinel := errors.New("pasteboard locked")
	b := New(&fakeBackend{writeErr: sentinel})
	err := b.Write(context.Background(), "x")
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func TestSnapshotNeverFails(t *testing.T) {
	b := New(&fakeBackend{readErr: errors.New("boom")})
	snap := b.Snapshot(context.Background())
	if snap.Valid || snap.HasText || snap.Text != "" {
		t.Errorf("expected invalid empty snapshot on read failure, got %+v", snap)
	}
	if snap.CapturedAt.IsZero() {
		t.Error("CapturedAt should be set")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	fb := &fakeBackend{text: "previous"}
	b := New(fb)
	ctx := context.Background()

	snap := b.Snapshot(ctx)
	if !snap.HasText || snap.Text != "previous" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	_ = b.Write(ctx, "Hello world")
	b.Restore(ctx, snap)

	got, _ := b.Read(ctx)
	if got != "previous" {
		t.Errorf("clipboard after restore = %q; want %q", got, "previous")
	}
}

func TestRestoreEmptySnapshotClears(t *testing.T) {
	fb := &fakeBackend{}
	b := New(fb)
	ctx := context.Background()

	snap := b.Snapshot(ctx)
	_ = b.Write(ctx, "copied selection")
	b.Restore(ctx, snap)

	got, _ := b.Read(ctx)
	if got != "" {
		t.Errorf("clipboard after restoring empty snapshot = %q; want empty", got)
	}
}

func TestRestoreSwallowsErrors(t *testing.T) {
	b := New(&fakeBackend{writeErr: errors.New("denied")})
	// must not panic or block
	b.Restore(context.Background(), Snapshot{Text: "x", HasText: true, Valid: true})
}

// flakyBackend fails its first read, as a pasteboard held by another process does.
type flakyBackend struct {
	fakeBackend
	failedOnce bool
}

func (f *flakyBackend) ReadText() (string, error) {
	f.mu.Lock()
	first := !f.failedOnce
	f.failedOnce = true
	f.mu.Unlock()
	if first {
		return "", errors.New("pasteboard busy")
	}
	return f.fakeBackend.ReadText()
}

func TestRestoreSkipsUnreadableSnapshot(t *testing.T) {
	fb := &flakyBackend{fakeBackend: fakeBackend{text: "previous"}}
	b := New(fb)
	ctx := context.Background()

	snap := b.Snapshot(ctx)
	if snap.Valid {
		t.Fatalf("snapshot of failed read should be invalid: %+v", snap)
	}
	b.Restore(ctx, snap)

	if len(fb.writes) != 0 {
		t.Errorf("restore wrote %q over an unread clipboard", fb.writes)
	}
	got, _ := b.Read(ctx)
	if got != "previous" {
		t.Errorf("clipboard = %q; want %q", got, "previous")
	}
}

// imageBackend holds either text or a PNG, like the native pasteboard.
type imageBackend struct {
	fakeBackend
	image []byte
}

func (f *imageBackend) WriteText(text string) error {
	f.mu.Lock()
	f.image = nil
	f.mu.Unlock()
	return f.fakeBackend.WriteText(text)
}

func (f *imageBackend) ReadImage() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.image, nil
}

func (f *imageBackend) WriteImage(png []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.image = png
	f.text = ""
	return nil
}

func TestSnapshotRestoresImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	fb := &imageBackend{image: png}
	b := New(fb)
	ctx := context.Background()

	snap := b.Snapshot(ctx)
	if !snap.Valid || snap.HasText || string(snap.Image) != string(png) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	_ = b.Write(ctx, "copied selection")
	b.Restore(ctx, snap)

	if string(fb.image) != string(png) {
		t.Errorf("image after restore = %q; want %q", fb.image, png)
	}
	if got, _ := b.Read(ctx); got != "" {
		t.Errorf("text after restore = %q; want empty", got)
	}
}

func TestReadHonoursContext(t *testing.T) {
	fb := &fakeBackend{block: make(chan struct{})}
	defer close(fb.block)
	b := New(fb)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Read(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewBackend(t *testing.T) {
	if NewBackend("cli").Name() != "cli" {
		t.Error("expected cli backend")
	}
	if NewBackend("").Name() != "native" {
		t.Error("expected native backend by default")
	}
}
