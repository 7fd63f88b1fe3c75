package main

import (
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"melodeus/monitor"
)

// TUI message types
type MonitorStartMsg struct{}
type MonitorStopMsg struct{}
type TracesMsg struct{ Traces []monitor.DeviceTrace }
type StatusMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type PermissionMsg struct{ Text string }
type ToneMsg struct{ On bool }

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateMonitoring
)

type tuiModel struct {
	state          tuiState
	traces         []monitor.DeviceTrace
	frames         int
	statusLine     string
	deviceLine     string
	permissionLine string
	toneOn         bool
	width, height  int
}

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

// Key presses are handed to the event loop through these channels, same
// pattern as the hotkey.
var (
	monitorToggleChan = make(chan struct{}, 1)
	toneToggleChan    = make(chan struct{}, 1)
	deviceSelectChan  = make(chan struct{}, 1)
)

var (
	waveStyles = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	}
	traceNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	statusOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBoldStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

var waveBlocks = []rune(" ▁▂▃▄▅▆▇█")

func NewTUIProgram() *tea.Program {
	m := tuiModel{}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "m", " ":
			select {
			case monitorToggleChan <- struct{}{}:
			default:
			}
		case "t":
			select {
			case toneToggleChan <- struct{}{}:
			default:
			}
		case "d":
			select {
			case deviceSelectChan <- struct{}{}:
			default:
			}
		}

	case MonitorStartMsg:
		m.state = tuiStateMonitoring
		m.frames = 0
		m.traces = nil

	case MonitorStopMsg:
		m.state = tuiStateIdle
		m.traces = nil

	case TracesMsg:
		if m.state == tuiStateMonitoring {
			m.traces = msg.Traces
			m.frames++
		}

	case StatusMsg:
		m.statusLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case PermissionMsg:
		m.permissionLine = msg.Text

	case ToneMsg:
		m.toneOn = msg.On
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder

	if m.state == tuiStateMonitoring {
		b.WriteString(statusOnStyle.Render(fmt.Sprintf("● LIVE  frame %d", m.frames)))
	} else {
		b.WriteString(statusOffStyle.Render("○ STANDBY"))
	}
	if m.toneOn {
		b.WriteString("  " + warnStyle.Render("♪ tone"))
	}
	b.WriteString("\n")

	if m.deviceLine != "" {
		b.WriteString(dimStyle.Render(m.deviceLine) + "\n")
	}
	if m.permissionLine != "" {
		b.WriteString(dimStyle.Render("permission: "+m.permissionLine) + "\n")
	}
	if m.statusLine != "" {
		b.WriteString(warnStyle.Render(m.statusLine) + "\n")
	}
	b.WriteString("\n")

	waveWidth := m.width - 2
	if waveWidth < 16 {
		waveWidth = 16
	}
	if m.state == tuiStateMonitoring && len(m.traces) > 0 {
		for i, tr := range m.traces {
			style := waveStyles[i%len(waveStyles)]
			b.WriteString(traceNameStyle.Render(tr.Name) + "\n")
			b.WriteString(style.Render(renderWave(tr.Samples, waveWidth)) + "\n\n")
		}
	} else if m.state == tuiStateMonitoring {
		b.WriteString(dimStyle.Render("waiting for frames...") + "\n\n")
	}

	b.WriteString("\n")
	b.WriteString(helpBoldStyle.Render("m") + helpStyle.Render(" monitor  "))
	b.WriteString(helpBoldStyle.Render("t") + helpStyle.Render(" tone  "))
	b.WriteString(helpBoldStyle.Render("d") + helpStyle.Render(" device  "))
	b.WriteString(helpBoldStyle.Render("q") + helpStyle.Render(" quit"))
	b.WriteString("\n" + helpStyle.Render("melodeus "+version))

	return b.String()
}

// renderWave downsamples one trace to width columns and draws each column's
// peak amplitude as a block character.
func renderWave(samples []float32, width int) string {
	if len(samples) == 0 || width <= 0 {
		return ""
	}
	if width > len(samples) {
		width = len(samples)
	}
	var out strings.Builder
	per := len(samples) / width
	for col := 0; col < width; col++ {
		var peak float32
		for _, s := range samples[col*per : (col+1)*per] {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
		idx := int(peak * float32(len(waveBlocks)-1))
		if idx >= len(waveBlocks) {
			idx = len(waveBlocks) - 1
		}
		out.WriteRune(waveBlocks[idx])
	}
	return out.String()
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink adapts the TUI program to the EventSink interface.
type tuiSink struct{}

func (tuiSink) MonitorStart() { tuiSend(MonitorStartMsg{}) }

func (tuiSink) MonitorStop() { tuiSend(MonitorStopMsg{}) }

func (tuiSink) Traces(traces []monitor.DeviceTrace) { tuiSend(TracesMsg{Traces: traces}) }

func (tuiSink) StatusLine(text string) { tuiSend(StatusMsg{Text: text}) }

func (tuiSink) DeviceLine(text string) { tuiSend(DeviceLineMsg{Text: text}) }

func (tuiSink) PermissionLine(text string) { tuiSend(PermissionMsg{Text: text}) }

func (tuiSink) ToneState(on bool) { tuiSend(ToneMsg{On: on}) }
