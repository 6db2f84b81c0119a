// Package inject synthesises keyboard chords (copy, paste, select-all) in
// whatever application currently has focus.
//
// Every chord is four or more discrete events: modifier(s) down, key down,
// key up, modifier(s) up. The OS coalesces events that arrive too close
// together, so InterEventDelay separates each pair. The target application
// handles the input asynchronously, so SettleDelay follows the sequence
// before callers read dependent state such as the clipboard.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"
)

const (
	DefaultInterEventDelay = 20 * time.Millisecond
	DefaultSettleDelay     = 100 * time.Millisecond
	selectAllSettleDelay   = 50 * time.Millisecond
)

// ErrInjection marks failures to deliver synthetic input.
var ErrInjection = errors.New("input injection failed")

// Backend delivers a single key transition.
type Backend interface {
	Toggle(key string, down bool) error
}

// Chord is a key pressed while holding Modifiers. A zero Settle uses the
// injector's default settle delay.
type Chord struct {
	Modifiers []string
	Key       string
	Settle    time.Duration
}

type Options struct {
	InterEventDelay time.Duration
	SettleDelay     time.Duration
	// PrimaryModifier overrides the platform shortcut modifier (cmd on macOS, ctrl elsewhere).
	PrimaryModifier string
}

type Injector struct {
	backend    Backend
	interEvent time.Duration
	settle     time.Duration
	primary    string
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(backend Backend, opts Options) *Injector {
	inj := &Injector{
		backend:    backend,
		interEvent: opts.InterEventDelay,
		settle:     opts.SettleDelay,
		primary:    opts.PrimaryModifier,
		sleep:      sleepContext,
	}
	if inj.interEvent <= 0 {
		inj.interEvent = DefaultInterEventDelay
	}
	if inj.settle <= 0 {
		inj.settle = DefaultSettleDelay
	}
	if inj.primary == "" {
		inj.primary = PrimaryModifier()
	}
	return inj
}

// PrimaryModifier is the modifier used for clipboard shortcuts on this OS.
func PrimaryModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}

type keyEvent struct {
	key  string
	down bool
}

// SendChord delivers the chord and waits for it to settle. If an event fails
// part-way, keys already held are released so no modifier stays stuck.
func (i *Injector) SendChord(ctx context.Context, c Chord) error {
	if c.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInjection)
	}

	events := make([]keyEvent, 0, 2*len(c.Modifiers)+2)
	for _, m := range c.Modifiers {
		events = append(events, keyEvent{key: m, down: true})
	}
	events = append(events, keyEvent{key: c.Key, down: true}, keyEvent{key: c.Key, down: false})
	for j := len(c.Modifiers) - 1; j >= 0; j-- {
		events = append(events, keyEvent{key: c.Modifiers[j], down: false})
	}

	held := make([]string, 0, len(c.Modifiers)+1)
	for idx, ev := range events {
		if idx > 0 {
			if err := i.sleep(ctx, i.interEvent); err != nil {
				i.release(held)
				return fmt.Errorf("%w: %v", ErrInjection, err)
			}
		}
		if err := i.backend.Toggle(ev.key, ev.down); err != nil {
			i.release(held)
			return fmt.Errorf("%w: %s %s: %v", ErrInjection, direction(ev.down), ev.key, err)
		}
		if ev.down {
			held = append(held, ev.key)
		} else {
			held = remove(held, ev.key)
		}
	}

	settle := c.Settle
	if settle <= 0 {
		settle = i.settle
	}
	if err := i.sleep(ctx, settle); err != nil {
		return fmt.Errorf("%w: settle: %v", ErrInjection, err)
	}
	return nil
}

func (i *Injector) Copy(ctx context.Context) error {
	return i.SendChord(ctx, Chord{Modifiers: []string{i.primary}, Key: "c"})
}

func (i *Injector) Paste(ctx context.Context) error {
	return i.SendChord(ctx, Chord{Modifiers: []string{i.primary}, Key: "v"})
}

func (i *Injector) SelectAll(ctx context.Context) error {
	return i.SendChord(ctx, Chord{Modifiers: []string{i.primary}, Key: "a", Settle: selectAllSettleDelay})
}

func (i *Injector) release(held []string) {
	for j := len(held) - 1; j >= 0; j-- {
		if err := i.backend.Toggle(held[j], false); err != nil {
			log.Printf("inject: failed to release %s: %v", held[j], err)
		}
	}
}

func direction(down bool) string {
	if down {
		return "press"
	}
	return "release"
}

func remove(keys []string, key string) []string {
	for j := len(keys) - 1; j >= 0; j-- {
		if keys[j] == key {
			return append(keys[:j], keys[j+1:]...)
		}
	}
	return keys
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
