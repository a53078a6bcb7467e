// ABOUTME: Bubbletea model for the proxy status TUI
// ABOUTME: Renders connected bus devices and open streams with lipgloss
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audioproxy"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Snapshot is the state shown by the TUI
type Snapshot struct {
	audioproxy.Status
	Port    int
	Playing string // title of the local source, if any
}

type tickMsg time.Time
type snapshotMsg Snapshot

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	listStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	remoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Model is the TUI state
type Model struct {
	snapshot    Snapshot
	startTime   time.Time
	showDetails bool
	quitting    bool
	quit        chan struct{}
}

// NewModel creates a model that signals quit on the given channel
func NewModel(initial Snapshot, quit chan struct{}) Model {
	return Model{
		snapshot:  initial,
		startTime: time.Now(),
		quit:      quit,
	}
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the uptime ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			select {
			case m.quit <- struct{}{}:
			default:
			}
			return m, tea.Quit
		case "d":
			m.showDetails = !m.showDetails
		}

	case tickMsg:
		return m, tickEvery()

	case snapshotMsg:
		m.snapshot = Snapshot(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down proxy...\n"
	}

	var b strings.Builder
	s := m.snapshot

	b.WriteString(titleStyle.Render("Audio Proxy"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	field("Proxy", s.Name)
	field("Port", fmt.Sprintf("%d", s.Port))
	field("Uptime", time.Since(m.startTime).Round(time.Second).String())
	if s.Playing != "" {
		field("Playing", s.Playing)
	}
	b.WriteString("\n")

	b.WriteString(listStyle.Render(fmt.Sprintf("Bus Devices (%d)", len(s.Devices))))
	b.WriteString("\n\n")
	if len(s.Devices) == 0 {
		b.WriteString(idleStyle.Render("  No devices connected"))
		b.WriteString("\n")
	}
	for _, d := range s.Devices {
		b.WriteString(fmt.Sprintf("  • %s", d.Address))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" %s, %d streams", d.Name, d.Streams)))
		if m.showDetails {
			b.WriteString(idleStyle.Render(fmt.Sprintf(" [%s] since %s",
				strings.Join(d.Codecs, ","), d.ConnectedAt.Format(time.TimeOnly))))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(listStyle.Render(fmt.Sprintf("Streams (%d)", len(s.Streams))))
	b.WriteString("\n\n")
	if len(s.Streams) == 0 {
		b.WriteString(idleStyle.Render("  No open streams"))
		b.WriteString("\n")
	}
	for _, st := range s.Streams {
		transport := idleStyle.Render(st.Transport)
		if st.Transport == "remote" {
			transport = remoteStyle.Render(st.Transport)
		}
		b.WriteString(fmt.Sprintf("  • %s %s ", st.Address, transport))
		b.WriteString(valueStyle.Render(st.Config))
		if m.showDetails {
			b.WriteString(idleStyle.Render(fmt.Sprintf(" buffer %dB, credit [%s]",
				st.BufferSize, renderBar(st.Available, st.BufferSize, 10))))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("d: details  q: quit"))

	return b.String()
}

func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = min(value*width/max, width)
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
