// ABOUTME: Tests for the proxy TUI model
// ABOUTME: Tests snapshot updates, key handling and rendering
package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/Sendspin/audio-proxy/pkg/audioproxy"
	tea "github.com/charmbracelet/bubbletea"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Status: audioproxy.Status{
			Name: "Test Proxy",
			Devices: []audioproxy.DeviceInfo{
				{Address: "bus0", Name: "Kitchen", Codecs: []string{"pcm"}, Streams: 1, ConnectedAt: time.Now()},
			},
			Streams: []audioproxy.StreamInfo{
				{Address: "bus0", Config: "48000Hz/2ch/AUDIO_FORMAT_PCM_16_BIT", BufferSize: 3840, Transport: "remote", Available: 1920},
				{Address: "bus1", Config: "48000Hz/2ch/AUDIO_FORMAT_PCM_16_BIT", BufferSize: 3840, Transport: "fallback"},
			},
		},
		Port: 8928,
	}
}

func TestViewEmpty(t *testing.T) {
	m := NewModel(Snapshot{Status: audioproxy.Status{Name: "Empty"}, Port: 8928}, make(chan struct{}, 1))
	view := m.View()

	for _, want := range []string{"Empty", "8928", "No devices connected", "No open streams"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestSnapshotUpdate(t *testing.T) {
	m := NewModel(Snapshot{}, make(chan struct{}, 1))

	updated, _ := m.Update(snapshotMsg(sampleSnapshot()))
	view := updated.(Model).View()

	for _, want := range []string{"Bus Devices (1)", "bus0", "Kitchen", "Streams (2)", "fallback", "remote"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "credit") {
		t.Error("details should be hidden by default")
	}
}

func TestDetailsToggle(t *testing.T) {
	m := NewModel(sampleSnapshot(), make(chan struct{}, 1))

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	view := updated.(Model).View()
	if !strings.Contains(view, "credit") || !strings.Contains(view, "[pcm]") {
		t.Error("details should be shown after pressing d")
	}
}

func TestQuitSignals(t *testing.T) {
	quit := make(chan struct{}, 1)
	m := NewModel(Snapshot{}, quit)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("expected quit command")
	}
	if !strings.Contains(updated.(Model).View(), "Shutting down") {
		t.Error("expected shutdown view")
	}

	select {
	case <-quit:
	default:
		t.Error("expected quit signal")
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max int
		want       string
	}{
		{0, 100, "░░░░░░░░░░"},
		{50, 100, "█████░░░░░"},
		{200, 100, "██████████"},
		{5, 0, "░░░░░░░░░░"},
	}
	for _, tt := range tests {
		if got := renderBar(tt.value, tt.max, 10); got != tt.want {
			t.Errorf("renderBar(%d, %d) = %q, want %q", tt.value, tt.max, got, tt.want)
		}
	}
}
