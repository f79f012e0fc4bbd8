package ui

import "github.com/charmbracelet/lipgloss"

const (
	primaryColor   = "#7C3AED"
	secondaryColor = "#10B981"
	warningColor   = "#F59E0B"
	errorColor     = "#EF4444"
	dimColor       = "#6B7280"
	textColor      = "#F3F4F6"
)

var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4B5563")).
			Padding(0, 1)

	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(1, 2)

	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	QuestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(textColor)).
			Bold(true)

	CodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB")).
			Background(lipgloss.Color("#111827")).
			Padding(0, 1)

	UserBubbleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#2563EB")).
			Padding(0, 1)

	AssistantBubbleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(textColor)).
				Background(lipgloss.Color("#374151")).
				Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)
)
