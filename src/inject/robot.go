package inject

import (
	"github.com/go-vgo/robotgo"
)

// RobotBackend posts key events through robotgo (CGEvent on macOS,
// SendInput on Windows, XTest on X11).
type RobotBackend struct{}

func (RobotBackend) Toggle(key string, down bool) error {
	state := "up"
	if down {
		state = "down"
	}
	return robotgo.KeyToggle(key, state)
}
