// Package dashboardui renders a live bubbletea view of the worker dashboard
// (C5) and active batch summaries (C4). It has no write path into the
// harness: every value it displays comes from a read-only snapshot function
// supplied by the caller.
package dashboardui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kestrelrun/genie/internal/config"
	"github.com/kestrelrun/genie/internal/dashboard"
)

// Styles holds the lipgloss styles used to render dashboard rows, keyed by
// dashboard.Status plus a handful of chrome styles. Built from a
// config.ThemeConfig the same way the teacher's styles package layers a
// named preset under explicit color-token overrides.
type Styles struct {
	Header  lipgloss.Style
	Border  lipgloss.Style
	Dim     lipgloss.Style
	Running lipgloss.Style
	Idle    lipgloss.Style
	Waiting lipgloss.Style
	Stopped lipgloss.Style
}

var presetColors = map[string]map[string]string{
	"default": {
		"running": "#3FB950",
		"idle":    "#8B949E",
		"waiting": "#D29922",
		"stopped": "#6E7681",
		"border":  "#30363D",
	},
	"dracula": {
		"running": "#50FA7B",
		"idle":    "#6272A4",
		"waiting": "#F1FA8C",
		"stopped": "#44475A",
		"border":  "#44475A",
	},
}

// BuildStyles applies theme onto the "default" preset, then individual color
// overrides from theme.FlattenedColors(), mirroring the teacher's
// styles.ApplyTheme layering: preset first, explicit tokens win.
func BuildStyles(theme config.ThemeConfig) Styles {
	colors := make(map[string]string, len(presetColors["default"]))
	for k, v := range presetColors["default"] {
		colors[k] = v
	}
	if preset, ok := presetColors[theme.Preset]; ok {
		for k, v := range preset {
			colors[k] = v
		}
	}
	for k, v := range theme.FlattenedColors() {
		colors[k] = v
	}

	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Underline(true),
		Border:  lipgloss.NewStyle().Foreground(lipgloss.Color(colors["border"])),
		Dim:     lipgloss.NewStyle().Faint(true),
		Running: lipgloss.NewStyle().Foreground(lipgloss.Color(colors["running"])),
		Idle:    lipgloss.NewStyle().Foreground(lipgloss.Color(colors["idle"])),
		Waiting: lipgloss.NewStyle().Foreground(lipgloss.Color(colors["waiting"])).Bold(true),
		Stopped: lipgloss.NewStyle().Foreground(lipgloss.Color(colors["stopped"])),
	}
}

// ForStatus returns the style to render a row with the given dashboard
// status.
func (s Styles) ForStatus(status dashboard.Status) lipgloss.Style {
	switch status {
	case dashboard.StatusRunning:
		return s.Running
	case dashboard.StatusWaiting:
		return s.Waiting
	case dashboard.StatusStopped:
		return s.Stopped
	default:
		return s.Idle
	}
}
