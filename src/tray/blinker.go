package tray

import (
	"sync"
	"time"
)

// Blinker alternates between frames on a ticker until stopped. Each run
// owns its stop channel; Stop returns once the run has exited, which is at
// most one tick after the call.
type Blinker struct {
	interval time.Duration
	show     func(frame int)
	frames   int

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewBlinker(interval time.Duration, frames int, show func(frame int)) *Blinker {
	if frames < 1 {
		frames = 1
	}
	return &Blinker{interval: interval, frames: frames, show: show}
}

// Start begins blinking from frame 0. Starting a running blinker is a no-op.
func (b *Blinker) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	b.stop, b.done = stop, done
	b.show(0)
	go b.run(stop, done)
}

func (b *Blinker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	frame := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// re-check so a frame never lands after Stop was requested
			select {
			case <-stop:
				return
			default:
			}
			frame = (frame + 1) % b.frames
			b.show(frame)
		}
	}
}

// Stop ends the current run and waits for it to exit.
func (b *Blinker) Stop() {
	b.mu.Lock()
	stop, done := b.stop, b.done
	b.stop, b.done = nil, nil
	b.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (b *Blinker) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stop != nil
}
