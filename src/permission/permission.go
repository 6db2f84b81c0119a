// Package permission reports whether this process may observe and drive
// other applications (the macOS Accessibility trust, or a usable display
// session elsewhere).
package permission

import (
	"log"
	"os"
	"strings"
)

// OverrideEnvVar forces the answer for headless testing: "granted" or "denied".
const OverrideEnvVar = "OMNI_TEXT_ACCESSIBILITY"

type State string

const (
	StateGranted State = "granted"
	StateDenied  State = "denied"
	StateUnknown State = "unknown"
)

// LookupEnvFunc exposes environment probing for testability.
type LookupEnvFunc func(string) (string, bool)

// Gate is re-queried on every call; nothing is cached.
type Gate struct {
	lookup LookupEnvFunc
	probe  func() bool
	prompt func()
}

func New() *Gate {
	return &Gate{lookup: os.LookupEnv, probe: platformTrusted, prompt: platformPrompt}
}

// Check never shows UI.
func (g *Gate) Check() bool {
	return g.Status() == StateGranted
}

// Status is the tri-state form of Check. StateUnknown only comes from an
// override value the gate cannot interpret.
func (g *Gate) Status() State {
	if value, ok := g.lookup(OverrideEnvVar); ok {
		return interpretOverride(value)
	}
	if g.probe() {
		return StateGranted
	}
	return StateDenied
}

// Request asks the OS to show its consent dialog and returns immediately.
// The answer is observed by a later Check.
func (g *Gate) Request() {
	if _, ok := g.lookup(OverrideEnvVar); ok {
		log.Printf("permission: %s set, not prompting", OverrideEnvVar)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("permission: prompt failed: %v", r)
		}
	}()
	g.prompt()
}

func interpretOverride(value string) State {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "granted", "allow", "allowed", "yes", "true":
		return StateGranted
	case "denied", "no", "false", "blocked":
		return StateDenied
	default:
		return StateUnknown
	}
}
