// Package tui renders the mcqscan console: styles, the banner, progress bars and the logger
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Color palette - Catppuccin Mocha inspired
var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"} // Violet
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#38BDF8"} // Sky blue
	ColorAccent    = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"} // Amber

	ColorSuccess = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#6366F1", Dark: "#818CF8"}

	ColorText   = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#F1F5F9"}
	ColorSubtle = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#64748B"}
	ColorBorder = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	BodyStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	DebugStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	BadgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(ColorPrimary).
			Foreground(lipgloss.Color("#FFFFFF"))
)

// Banner is the application header
var Banner = `
  __  __  ___ ___    ___
 |  \/  |/ __/ _ \  / __| __ __ _ _ _
 | |\/| | (_| (_) | \__ \/ _/ _' | ' \
 |_|  |_|\___\__\_\ |___/\__\__,_|_||_|
`

// GetHeader returns the styled banner
func GetHeader() string {
	return lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render(Banner)
}

// ProgressBar renders a static bar for current/total
func ProgressBar(current, total int, width int) string {
	if total <= 0 {
		total = 1
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}

	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)

	percentage := float64(current) / float64(total)
	percentText := lipgloss.NewStyle().
		Foreground(ColorSubtle).
		Render(fmt.Sprintf(" %3d%%", int(percentage*100)))

	return bar.ViewAs(percentage) + percentText
}

// ImageHeader is the line printed before each page is processed
func ImageHeader(current, total int, name string) string {
	counter := BadgeStyle.Render(fmt.Sprintf("%d/%d", current, total))
	return counter + " " + ProgressBar(current-1, total, 30) + " " + BodyStyle.Render(name)
}

// Card renders a titled box
func Card(title, content string, width int) string {
	return BoxStyle.Width(width).Render(TitleStyle.Render(title) + "\n" + BodyStyle.Render(content))
}

// FolderHeading announces the folder about to be processed
func FolderHeading(current, total int, name string) string {
	return SubtitleStyle.Render(fmt.Sprintf("[%d/%d] %s", current, total, name))
}

// FolderStatus is the outcome shown on a folder's status card
type FolderStatus int

const (
	FolderDone FolderStatus = iota
	FolderPartial
	FolderFailed
)

// StatusCard renders a one-folder summary with a colored border
func StatusCard(title, subtitle string, status FolderStatus, width int) string {
	var borderColor lipgloss.AdaptiveColor
	var icon string

	switch status {
	case FolderDone:
		borderColor, icon = ColorSuccess, "[x]"
	case FolderPartial:
		borderColor, icon = ColorWarning, "[~]"
	default:
		borderColor, icon = ColorError, "[!]"
	}

	iconStyle := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorText)
	subtitleStyle := lipgloss.NewStyle().
		Foreground(ColorSubtle)

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 2).
		Width(width)

	content := iconStyle.Render(icon) + " " + titleStyle.Render(title)
	if subtitle != "" {
		content += "\n    " + subtitleStyle.Render(subtitle)
	}
	return cardStyle.Render(content)
}
