//go:build gui

package main

import (
	"runtime"

	"melodeus/gui"
)

var guiApp *gui.App

func initGUI() {
	guiMode = true

	// Lock this goroutine to OS thread for Fyne/GLFW
	runtime.LockOSThread()

	guiApp = gui.NewApp(func() {
		run()
	})
	guiApp.OnKey = func(r rune) {
		var ch chan struct{}
		switch r {
		case 'm', ' ':
			ch = monitorToggleChan
		case 't':
			ch = toneToggleChan
		case 'd':
			ch = deviceSelectChan
		default:
			return
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	sink = guiApp
	if err := gui.Run(guiApp); err != nil {
		panic(err)
	}
}
