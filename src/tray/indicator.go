// Package tray shows the application's state in the system tray.
package tray

import (
	"sync"
	"time"

	"omni-text/src/status"
)

const (
	BlinkInterval     = 500 * time.Millisecond
	TooltipReady      = "Omni Text"
	TooltipProcessing = "Omni Text - Processing..."
	TooltipError      = "Omni Text - Error"
)

// Surface is the part of the tray the indicator draws on.
type Surface interface {
	SetIcon(icon []byte)
	SetTooltip(text string)
}

// Indicator implements status.Sink on top of a Surface.
type Indicator struct {
	mu      sync.Mutex
	surface Surface
	icons   Icons
	blinker *Blinker
	state   status.State
}

func NewIndicator(surface Surface, icons Icons) *Indicator {
	ind := &Indicator{surface: surface, icons: icons}
	ind.blinker = NewBlinker(BlinkInterval, len(icons.Processing), func(frame int) {
		surface.SetIcon(icons.Processing[frame])
	})
	return ind
}

// Notify switches icon and tooltip. Leaving Processing stops the blink
// before the new icon is set so a late frame cannot overwrite it.
func (i *Indicator) Notify(s status.State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = s

	switch s {
	case status.Processing:
		i.surface.SetTooltip(TooltipProcessing)
		i.blinker.Start()
	case status.Error:
		i.blinker.Stop()
		i.surface.SetIcon(i.icons.Error)
		i.surface.SetTooltip(TooltipError)
	default:
		i.blinker.Stop()
		i.surface.SetIcon(i.icons.Ready)
		i.surface.SetTooltip(TooltipReady)
	}
}

func (i *Indicator) State() status.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Close stops any running animation.
func (i *Indicator) Close() {
	i.blinker.Stop()
}
