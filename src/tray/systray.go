package tray

import (
	"log"

	"github.com/getlantern/systray"

	"omni-text/src/status"
)

// Menu callbacks. They run on the tray's event goroutine.
type Menu struct {
	Enabled  bool
	OnToggle func(enabled bool)
	OnQuit   func()
}

// systraySurface draws on the real tray.
type systraySurface struct{}

func (systraySurface) SetIcon(icon []byte)    { systray.SetIcon(icon) }
func (systraySurface) SetTooltip(text string) { systray.SetTooltip(text) }

// Run shows the tray icon and blocks until Quit. ready receives the
// indicator once the tray exists.
func Run(menu Menu, ready func(*Indicator), onExit func()) {
	systray.Run(func() {
		ind := NewIndicator(systraySurface{}, DefaultIcons())
		ind.Notify(status.Ready)

		mEnabled := systray.AddMenuItemCheckbox("Enabled", "Respond to action hotkeys", menu.Enabled)
		systray.AddSeparator()
		mQuit := systray.AddMenuItem("Quit", "Quit Omni Text")

		go func() {
			for {
				select {
				case <-mEnabled.ClickedCh:
					if mEnabled.Checked() {
						mEnabled.Uncheck()
					} else {
						mEnabled.Check()
					}
					log.Printf("tray: enabled=%v", mEnabled.Checked())
					if menu.OnToggle != nil {
						menu.OnToggle(mEnabled.Checked())
					}
				case <-mQuit.ClickedCh:
					if menu.OnQuit != nil {
						menu.OnQuit()
					}
					systray.Quit()
					return
				}
			}
		}()

		if ready != nil {
			ready(ind)
		}
	}, func() {
		if onExit != nil {
			onExit()
		}
	})
}

// Quit closes the tray, which makes Run return.
func Quit() {
	systray.Quit()
}
