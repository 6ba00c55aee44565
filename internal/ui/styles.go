package ui

import "github.com/charmbracelet/lipgloss"

// Colors for the prview theme
var (
	Green   = lipgloss.Color("2")
	Red     = lipgloss.Color("1")
	Yellow  = lipgloss.Color("3")
	Blue    = lipgloss.Color("4")
	Cyan    = lipgloss.Color("6")
	Magenta = lipgloss.Color("5")
	White   = lipgloss.Color("15")
	Gray    = lipgloss.Color("8")
	DimGray = lipgloss.Color("240")
)

// Text styles
var (
	// Success style for positive messages
	SuccessStyle = lipgloss.NewStyle().Foreground(Green)

	// Error style for error messages
	ErrorStyle = lipgloss.NewStyle().Foreground(Red).Bold(true)

	// Warning style for warnings
	WarnStyle = lipgloss.NewStyle().Foreground(Yellow)

	// Dim style for secondary text
	DimStyle = lipgloss.NewStyle().Faint(true)

	// Header style for the title bar
	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(White).
		Background(Blue).
		Padding(0, 1)
)

// File list styles
var (
	// FileSelectedStyle marks the selected file row
	FileSelectedStyle = lipgloss.NewStyle().
		Foreground(White).
		Background(Blue).
		Bold(true)

	// FileRowStyle is an unselected file row
	FileRowStyle = lipgloss.NewStyle().
		Foreground(White)

	// FileStatStyle renders the +N/-M change counts
	FileStatStyle = lipgloss.NewStyle().
		Foreground(DimGray)
)

// Diff pane styles
var (
	// DiffCursorStyle marks the selected diff line
	DiffCursorStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236"))

	// CommentMarkerStyle renders the inline comment marker
	CommentMarkerStyle = lipgloss.NewStyle().
		Foreground(Magenta).
		Bold(true)

	// LineNumberStyle renders the new-file line number gutter
	LineNumberStyle = lipgloss.NewStyle().
		Foreground(DimGray)
)

// Status bar styles
var (
	// StatusBarStyle is the base style for the status bar
	StatusBarStyle = lipgloss.NewStyle().
		Foreground(White).
		Background(Gray)

	// StatusBarBrandStyle is for the tool name badge
	StatusBarBrandStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(Blue).
		Padding(0, 1)

	// StatusBarSectionStyle is for individual sections
	StatusBarSectionStyle = lipgloss.NewStyle().
		Foreground(White).
		Background(Gray).
		Padding(0, 1)

	// StatusBarDividerStyle is for dividers between sections
	StatusBarDividerStyle = lipgloss.NewStyle().
		Foreground(DimGray).
		Background(Gray)

	// StatusBarProgressStyle is for the progress indicator
	StatusBarProgressStyle = lipgloss.NewStyle().
		Foreground(Green).
		Background(Gray)

	// StatusBarWarningStyle is for warnings in the status bar
	StatusBarWarningStyle = lipgloss.NewStyle().
		Foreground(Yellow).
		Background(Gray)

	// StatusBarErrorStyle is for errors in the status bar
	StatusBarErrorStyle = lipgloss.NewStyle().
		Foreground(Red).
		Background(Gray)
)

// Rally panel styles
var (
	// RallyThinkingStyle is for streamed agent reasoning
	RallyThinkingStyle = lipgloss.NewStyle().
		Foreground(Cyan).
		PaddingLeft(2)

	// RallyToolStyle is for tool invocations
	RallyToolStyle = lipgloss.NewStyle().
		Foreground(Yellow).
		PaddingLeft(2)

	// RallyTextStyle is for agent output text
	RallyTextStyle = lipgloss.NewStyle().
		Foreground(White).
		PaddingLeft(2)

	// RallyInfoStyle is for orchestrator log lines
	RallyInfoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("7")).
		PaddingLeft(2)

	// RallyBulletStyle is for the event bullet
	RallyBulletStyle = lipgloss.NewStyle().
		Foreground(Cyan)
)

// Help styles
var (
	// HelpKeyStyle is for key bindings
	HelpKeyStyle = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	// HelpDescStyle is for key descriptions
	HelpDescStyle = lipgloss.NewStyle().
		Foreground(DimGray)

	// HelpStyle is the overall help section style
	HelpStyle = lipgloss.NewStyle().
		Foreground(DimGray).
		PaddingTop(1)
)

// Box styles
var (
	// BorderStyle is for bordered boxes
	BorderStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Gray).
		Padding(0, 1)

	// ActiveBorderStyle is for focused/active boxes
	ActiveBorderStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Blue).
		Padding(0, 1)
)
