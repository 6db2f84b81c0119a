package tray

import (
	"bytes"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-text/src/status"
)

type fakeSurface struct {
	mu       sync.Mutex
	icons    [][]byte
	tooltips []string
}

func (f *fakeSurface) SetIcon(icon []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.icons = append(f.icons, icon)
}

func (f *fakeSurface) SetTooltip(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tooltips = append(f.tooltips, text)
}

func (f *fakeSurface) snapshot() ([][]byte, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.icons...), append([]string(nil), f.tooltips...)
}

func testIcons() Icons {
	return Icons{
		Ready:      []byte("ready"),
		Processing: [2][]byte{[]byte("busy-0"), []byte("busy-1")},
		Error:      []byte("error"),
	}
}

func TestBlinkerAlternatesAndStops(t *testing.T) {
	var mu sync.Mutex
	var frames []int
	b := NewBlinker(5*time.Millisecond, 2, func(frame int) {
		mu.Lock()
		frames = append(frames, frame)
		mu.Unlock()
	})

	b.Start()
	b.Start() // no second goroutine
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) >= 4
	}, time.Second, time.Millisecond)
	b.Stop()
	assert.False(t, b.Running())

	mu.Lock()
	got := append([]int(nil), frames...)
	mu.Unlock()
	for i, f := range got {
		assert.Equal(t, i%2, f, "frame %d", i)
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, len(got), len(frames), "no frames after Stop returned")
}

func TestBlinkerStopIdempotentAndRestartable(t *testing.T) {
	b := NewBlinker(time.Hour, 2, func(int) {})
	b.Stop()
	b.Start()
	assert.True(t, b.Running())
	b.Stop()
	b.Stop()
	b.Start()
	assert.True(t, b.Running())
	b.Stop()
}

func TestIndicatorTransitions(t *testing.T) {
	surface := &fakeSurface{}
	ind := NewIndicator(surface, testIcons())

	ind.Notify(status.Processing)
	assert.Equal(t, status.Processing, ind.State())
	ind.Notify(status.Error)
	ind.Notify(status.Ready)
	ind.Close()

	icons, tooltips := surface.snapshot()
	assert.Equal(t, []string{TooltipProcessing, TooltipError, TooltipReady}, tooltips)
	require.NotEmpty(t, icons)
	assert.Equal(t, []byte("busy-0"), icons[0])
	assert.Equal(t, []byte("error"), icons[len(icons)-2])
	assert.Equal(t, []byte("ready"), icons[len(icons)-1])
}

func TestIndicatorReadyIconIsLastAfterBlinking(t *testing.T) {
	surface := &fakeSurface{}
	ind := NewIndicator(surface, testIcons())
	ind.blinker.interval = time.Millisecond

	ind.Notify(status.Processing)
	time.Sleep(10 * time.Millisecond)
	ind.Notify(status.Ready)
	time.Sleep(10 * time.Millisecond)

	icons, _ := surface.snapshot()
	assert.Equal(t, []byte("ready"), icons[len(icons)-1])
}

func TestDefaultIconsDecode(t *testing.T) {
	icons := DefaultIcons()
	for _, data := range [][]byte{icons.Ready, icons.Processing[0], icons.Processing[1], icons.Error} {
		require.NotEmpty(t, data)
		if bytes.HasPrefix(data, []byte{0, 0, 1, 0}) {
			data = data[22:]
		}
		_, err := png.Decode(bytes.NewReader(data))
		assert.NoError(t, err)
	}
}

func TestWrapICOHeader(t *testing.T) {
	ico := wrapICO([]byte("PNGDATA"), 32)
	assert.Equal(t, []byte{0, 0, 1, 0, 1, 0}, ico[:6])
	assert.Equal(t, byte(32), ico[6])
	assert.Equal(t, []byte("PNGDATA"), ico[22:])
}
