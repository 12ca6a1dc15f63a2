package bubbletea

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fastapicloud/buildlogs"
)

// Styles maps a Theme to lipgloss styles for TUI rendering.
type Styles struct {
	Text    lipgloss.Style
	LineNo  lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style

	// Badges render deployment statuses in the header.
	BadgeSuccess lipgloss.Style
	BadgeFailed  lipgloss.Style
	BadgeActive  lipgloss.Style
	BadgeUnknown lipgloss.Style
}

// NewStyles creates Styles from a Theme.
func NewStyles(t buildlogs.Theme) Styles {
	badge := lipgloss.NewStyle().Foreground(ansiColor(t.BadgeText)).Bold(true).Padding(0, 1)
	return Styles{
		Text:         lipgloss.NewStyle().Foreground(ansiColor(t.Text)),
		LineNo:       lipgloss.NewStyle().Foreground(ansiColor(t.LineNo)).Faint(true),
		Error:        lipgloss.NewStyle().Foreground(ansiColor(t.Error)),
		Success:      lipgloss.NewStyle().Foreground(ansiColor(t.Success)),
		Warning:      lipgloss.NewStyle().Foreground(ansiColor(t.Warning)),
		Muted:        lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		Accent:       lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
		BadgeSuccess: badge.Background(ansiColor(t.Success)),
		BadgeFailed:  badge.Background(ansiColor(t.Error)),
		BadgeActive:  badge.Background(ansiColor(t.Warning)),
		BadgeUnknown: badge.Background(ansiColor(t.Muted)),
	}
}

// Badge returns the style for a deployment status badge.
func (s Styles) Badge(status buildlogs.DeploymentStatus) lipgloss.Style {
	switch status {
	case buildlogs.DeploymentSuccess:
		return s.BadgeSuccess
	case buildlogs.DeploymentFailed:
		return s.BadgeFailed
	case buildlogs.DeploymentWaitingUpload, buildlogs.DeploymentBuilding, buildlogs.DeploymentDeploying:
		return s.BadgeActive
	default:
		return s.BadgeUnknown
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}
