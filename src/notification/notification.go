// Package notification shows short desktop notices, used to tell the user
// why a hotkey action did nothing.
package notification

import (
	"log"
	"strings"
)

const (
	appName    = "Omni Text"
	maxBodyLen = 200
)

// Notifier is implemented per platform.
type Notifier interface {
	Notify(title, body string) error
}

// New returns the platform notifier.
func New() Notifier { return newPlatform() }

// Show delivers a notice in the background. Failures are logged only.
func Show(n Notifier, title, body string) {
	if n == nil {
		return
	}
	body = truncate(body, maxBodyLen)
	go func() {
		if err := n.Notify(title, body); err != nil {
			log.Printf("Failed to show notification: %v", err)
		}
	}()
}

func truncate(text string, maxLen int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen]) + "..."
}

// logNotifier only logs, for platforms without a notification service.
type logNotifier struct{}

func (logNotifier) Notify(title, body string) error {
	log.Printf("%s: %s", title, body)
	return nil
}
