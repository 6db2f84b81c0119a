// Package status carries the Ready / Processing / Error signal from the
// action pipeline to whatever shows it (tray icon, log).
package status

import (
	"fmt"
	"log"
	"strings"
)

type State int

const (
	Ready State = iota
	Processing
	Error
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Processing:
		return "processing"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState accepts the lowercase names produced by String.
func ParseState(name string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ready":
		return Ready, nil
	case "processing":
		return Processing, nil
	case "error":
		return Error, nil
	default:
		return Ready, fmt.Errorf("invalid status %q", name)
	}
}

// Sink receives transitions. Notify must not block and has no result.
type Sink interface {
	Notify(State)
}

type SinkFunc func(State)

func (f SinkFunc) Notify(s State) { f(s) }

// Nop discards every transition.
type Nop struct{}

func (Nop) Notify(State) {}

// Logger writes transitions to the standard logger.
type Logger struct{}

func (Logger) Notify(s State) { log.Printf("status: %s", s) }

// Multi fans a transition out to several sinks.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(s State) {
		for _, sink := range sinks {
			if sink != nil {
				sink.Notify(s)
			}
		}
	})
}
