// Package hotkey registers global key combinations and reports which action
// a pressed combination belongs to. All bindings share one gohook event loop.
package hotkey

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

var (
	ErrAlreadyRegistered = errors.New("hotkey already registered")
	ErrNotRegistered     = errors.New("hotkey not registered")
)

// binding is one combination; each element of keys lists the keycodes that
// satisfy that position (left and right variants of a modifier).
type binding struct {
	id    string
	combo string
	keys  [][]uint16
	fired bool
}

func (b *binding) satisfied(pressed map[uint16]bool) bool {
	for _, alts := range b.keys {
		if !anyPressed(alts, pressed) {
			return false
		}
	}
	return true
}

func (b *binding) uses(code uint16) bool {
	for _, alts := range b.keys {
		for _, c := range alts {
			if c == code {
				return true
			}
		}
	}
	return false
}

type Registry struct {
	mu        sync.Mutex
	bindings  map[string]*binding
	pressed   map[uint16]bool
	onTrigger func(id string)
	started   bool
	start     func() chan gohook.Event
	end       func()
}

// NewRegistry creates a registry that calls onTrigger with the action id of
// each combination pressed.
func NewRegistry(onTrigger func(id string)) *Registry {
	return &Registry{
		bindings:  map[string]*binding{},
		pressed:   map[uint16]bool{},
		onTrigger: onTrigger,
		start:     gohook.Start,
		end:       gohook.End,
	}
}

// Register binds combo (e.g. "CommandOrControl+Shift+1") to id and starts
// the event loop on first use.
func (r *Registry) Register(id, combo string) error {
	keys, err := parseCombo(combo)
	if err != nil {
		return err
	}
	norm := normalizeCombo(combo)

	r.mu.Lock()
	if existing, ok := r.bindings[norm]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s (action %s)", ErrAlreadyRegistered, combo, existing.id)
	}
	r.bindings[norm] = &binding{id: id, combo: combo, keys: keys}
	needStart := !r.started
	r.started = true
	r.mu.Unlock()

	log.Printf("hotkey: registered %s -> %s", combo, id)
	if needStart {
		r.listen()
	}
	return nil
}

func (r *Registry) Unregister(combo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	norm := normalizeCombo(combo)
	if _, ok := r.bindings[norm]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, combo)
	}
	delete(r.bindings, norm)
	return nil
}

// UnregisterAll drops every binding; the event loop keeps running for later registrations.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = map[string]*binding{}
	r.pressed = map[uint16]bool{}
}

// Registered returns the bound combinations, sorted.
func (r *Registry) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b.combo)
	}
	sort.Strings(out)
	return out
}

// Close stops the event loop.
func (r *Registry) Close() {
	r.mu.Lock()
	started := r.started
	r.started = false
	r.mu.Unlock()
	if started {
		r.end()
	}
}

func (r *Registry) listen() {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("PANIC in hotkey goroutine: %v", rec)
			}
		}()

		evChan := r.start()
		if evChan == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
			return
		}
		for ev := range evChan {
			r.handle(ev)
		}
		log.Printf("hotkey: event channel closed")
	}()
}

// handle updates the pressed set and fires at most one binding per press.
// When several bindings are satisfied the one with the most keys wins, so
// Ctrl+Shift+1 is not also reported as Ctrl+1.
func (r *Registry) handle(ev gohook.Event) {
	var fire string

	r.mu.Lock()
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		r.pressed[ev.Keycode] = true
		var best *binding
		for _, b := range r.bindings {
			if b.fired || !b.uses(ev.Keycode) || !b.satisfied(r.pressed) {
				continue
			}
			if best == nil || len(b.keys) > len(best.keys) {
				best = b
			}
		}
		if best != nil {
			best.fired = true
			fire = best.id
		}
	case gohook.KeyUp:
		delete(r.pressed, ev.Keycode)
		for _, b := range r.bindings {
			if b.fired && b.uses(ev.Keycode) {
				b.fired = false
			}
		}
	}
	r.mu.Unlock()

	if fire != "" && r.onTrigger != nil {
		log.Printf("hotkey: triggered %s", fire)
		r.onTrigger(fire)
	}
}

func anyPressed(codes []uint16, pressed map[uint16]bool) bool {
	for _, c := range codes {
		if pressed[c] {
			return true
		}
	}
	return false
}

// parseHotkey converts a combination like "CommandOrControl+Shift+1" to
// normalized key names.
func parseHotkey(combo string) []string {
	parts := strings.Split(strings.ToLower(combo), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "commandorcontrol", "cmdorctrl":
			if runtime.GOOS == "darwin" {
				keys = append(keys, "cmd")
			} else {
				keys = append(keys, "ctrl")
			}
		case "ctrl", "control":
			keys = append(keys, "ctrl")
		case "alt", "option":
			keys = append(keys, "alt")
		case "shift":
			keys = append(keys, "shift")
		case "win", "cmd", "command", "super", "meta":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}

	return keys
}

func normalizeCombo(combo string) string {
	keys := parseHotkey(combo)
	sort.Strings(keys)
	return strings.Join(keys, "+")
}

func parseCombo(combo string) ([][]uint16, error) {
	names := parseHotkey(combo)
	if len(names) == 0 {
		return nil, fmt.Errorf("empty hotkey %q", combo)
	}
	keys := make([][]uint16, 0, len(names))
	for _, name := range names {
		codes := keyNameToKeycodes(name)
		if len(codes) == 0 {
			return nil, fmt.Errorf("unknown key %q in hotkey %q", name, combo)
		}
		keys = append(keys, codes)
	}
	return keys, nil
}

// modifierVariants lists the gohook key names for the left and right side of each modifier.
var modifierVariants = map[string][]string{
	"ctrl":  {"ctrl", "rctrl"},
	"alt":   {"alt", "ralt"},
	"shift": {"shift", "rshift"},
	"cmd":   {"cmd", "rcmd"},
}

var keyAliases = map[string]string{
	"return": "enter",
	"escape": "esc",
	"del":    "delete",
	"ins":    "insert",
	"pgup":   "pageup",
	"pgdn":   "pagedown",
}

// keyNameToKeycodes maps a key name to the libuiohook keycodes gohook reports.
func keyNameToKeycodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if alias, ok := keyAliases[keyName]; ok {
		keyName = alias
	}

	names := []string{keyName}
	if variants, ok := modifierVariants[keyName]; ok {
		names = variants
	}

	var codes []uint16
	for _, n := range names {
		if code, ok := gohook.Keycode[n]; ok {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		log.Printf("WARNING: Unknown key name '%s', cannot map to keycode", keyName)
	}
	return codes
}
