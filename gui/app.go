//go:build gui

package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"melodeus/monitor"
)

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	wave    *WaveWidget

	statusLabel *widget.Label
	deviceLabel *widget.Label
	permLabel   *widget.Label
	toneLabel   *widget.Label

	onReady func()

	// OnKey receives rune key presses so the event loop can react to the
	// same m/t/d bindings the TUI uses.
	OnKey func(r rune)
}

func NewApp(onReady func()) *App {
	return &App{onReady: onReady}
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.melodeus.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	icon := appIcon()
	if icon != nil {
		a.fyneApp.SetIcon(icon)
	}
	if desk, ok := a.fyneApp.(desktop.App); ok {
		menu := fyne.NewMenu("melodeus",
			fyne.NewMenuItem("Quit", func() {
				a.fyneApp.Quit()
			}),
		)
		desk.SetSystemTrayMenu(menu)
		if icon != nil {
			desk.SetSystemTrayIcon(icon)
		}
	}

	a.window = a.fyneApp.NewWindow("melodeus")
	if icon != nil {
		a.window.SetIcon(icon)
	}
	a.wave = NewWaveWidget()
	a.statusLabel = widget.NewLabel("standby")
	a.deviceLabel = widget.NewLabel("")
	a.permLabel = widget.NewLabel("")
	a.toneLabel = widget.NewLabel("")

	header := container.NewVBox(a.statusLabel, a.deviceLabel, a.permLabel, a.toneLabel)
	a.window.SetContent(container.NewBorder(header, nil, nil, nil, a.wave))
	a.window.Resize(fyne.NewSize(720, 440))

	a.window.Canvas().SetOnTypedRune(func(r rune) {
		if a.OnKey != nil {
			a.OnKey(r)
		}
	})
	a.window.SetCloseIntercept(func() {
		a.fyneApp.Quit()
	})

	go a.onReady()

	a.window.Show()
	a.fyneApp.Run()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}

func (a *App) setLabel(l *widget.Label, text string) {
	fyne.Do(func() { l.SetText(text) })
}

// EventSink implementation

func (a *App) MonitorStart() {
	a.wave.SetLive(true)
	a.setLabel(a.statusLabel, "LIVE")
}

func (a *App) MonitorStop() {
	a.wave.SetLive(false)
	a.setLabel(a.statusLabel, "standby")
}

func (a *App) Traces(traces []monitor.DeviceTrace) {
	a.wave.SetTraces(traces)
}

func (a *App) StatusLine(text string) {
	a.setLabel(a.statusLabel, text)
}

func (a *App) DeviceLine(text string) {
	a.setLabel(a.deviceLabel, text)
}

func (a *App) PermissionLine(text string) {
	a.setLabel(a.permLabel, "permission: "+text)
}

func (a *App) ToneState(on bool) {
	if on {
		a.setLabel(a.toneLabel, "tone: playing")
	} else {
		a.setLabel(a.toneLabel, "")
	}
}
