//go:build !darwin

package permission

import (
	"os"
	"runtime"
)

// platformTrusted has no consent model to query outside macOS; synthetic
// input works whenever there is a display session to send it to.
func platformTrusted() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

func platformPrompt() {}
