//go:build darwin

package notification

import (
	"fmt"
	"os/exec"
	"strings"
)

type osascriptNotifier struct{}

func newPlatform() Notifier { return osascriptNotifier{} }

func (osascriptNotifier) Notify(title, body string) error {
	script := fmt.Sprintf("display notification %s with title %s", appleScriptString(body), appleScriptString(title))
	if out, err := exec.Command("osascript", "-e", script).CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
