package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

// Color palette
var (
	// Brand colors
	Primary   = lipgloss.Color("#E0559A") // Candy pink - brand color
	Secondary = lipgloss.Color("#00D4AA") // Cyan/Teal

	// Grade colors between Success and Error
	Medium = lipgloss.Color("#FFD93D") // Yellow
	Low    = lipgloss.Color("#6BCB77") // Green

	// Status colors
	Success = lipgloss.Color("#00D26A") // Bright green
	Warning = lipgloss.Color("#FFB800") // Amber
	Error   = lipgloss.Color("#FF3838") // Red
	Muted   = lipgloss.Color("#6B7280") // Gray

	Foreground = lipgloss.Color("#FAFAFA")
)

// styles are bound to one renderer, so a console writing to a pipe
// never emits escape codes.
type styles struct {
	banner  lipgloss.Style
	version lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	info    lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	border  lipgloss.Style
	r       *lipgloss.Renderer
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		r:       r,
		banner:  r.NewStyle().Foreground(Primary).Bold(true),
		version: r.NewStyle().Foreground(Secondary).Bold(true),
		section: r.NewStyle().Foreground(Foreground).Bold(true).MarginTop(1),
		label:   r.NewStyle().Foreground(Muted).Width(15),
		value:   r.NewStyle().Foreground(Foreground),
		muted:   r.NewStyle().Foreground(Muted),
		success: r.NewStyle().Foreground(Success).Bold(true),
		warning: r.NewStyle().Foreground(Warning).Bold(true),
		failure: r.NewStyle().Foreground(Error).Bold(true),
		info:    r.NewStyle().Foreground(Primary),
		header:  r.NewStyle().Foreground(Foreground).Bold(true).Padding(0, 1),
		cell:    r.NewStyle().Padding(0, 1),
		border:  r.NewStyle().Foreground(Muted),
	}
}

// grade colors a letter grade by its first letter
func (s styles) grade(grade string) lipgloss.Style {
	base := s.r.NewStyle().Bold(true)
	grade = strings.ToUpper(strings.TrimSpace(grade))
	if grade == "" {
		return base.Foreground(Muted)
	}
	switch grade[0] {
	case 'A':
		return base.Foreground(Success)
	case 'B':
		return base.Foreground(Low)
	case 'C':
		return base.Foreground(Medium)
	case 'D':
		return base.Foreground(Warning)
	default:
		return base.Foreground(Error)
	}
}

// status returns the style for a triage status
func (s styles) status(st triage.Status) lipgloss.Style {
	switch st {
	case triage.StatusConfirmed:
		return s.success
	case triage.StatusRejected:
		return s.failure
	default:
		return s.warning
	}
}
