//go:build windows

package main

import (
	"log"

	"golang.org/x/sys/windows"
)

const processPerMonitorDPIAware = 2

// enableDPIAwareness keeps the tray icon sharp on scaled displays. Shcore is
// Windows 8.1+; older systems get system-wide awareness from user32.
func enableDPIAwareness() {
	shcore := windows.NewLazySystemDLL("shcore.dll")
	if proc := shcore.NewProc("SetProcessDpiAwareness"); proc.Find() == nil {
		if hr, _, _ := proc.Call(processPerMonitorDPIAware); hr != 0 {
			log.Printf("DPI: SetProcessDpiAwareness returned 0x%x", hr)
		}
		return
	}
	user32 := windows.NewLazySystemDLL("user32.dll")
	if proc := user32.NewProc("SetProcessDPIAware"); proc.Find() == nil {
		if ok, _, _ := proc.Call(); ok == 0 {
			log.Printf("DPI: SetProcessDPIAware failed")
		}
		return
	}
	log.Printf("DPI: no DPI awareness API available")
}
