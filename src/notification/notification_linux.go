//go:build linux

package notification

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = "org.freedesktop.Notifications.Notify"
	expireMS     = int32(5000)
)

// dbusNotifier talks to the freedesktop notification service on the session bus.
type dbusNotifier struct{}

func newPlatform() Notifier { return dbusNotifier{} }

func (dbusNotifier) Notify(title, body string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(notifyDest, dbus.ObjectPath(notifyPath))
	call := obj.Call(notifyMethod, 0,
		appName, uint32(0), "", title, body,
		[]string{}, map[string]dbus.Variant{}, expireMS)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	return nil
}
