package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorRed       = lipgloss.Color("#ff5555")
	colorGreen     = lipgloss.Color("#50fa7b")
	colorYellow    = lipgloss.Color("#f1fa8c")
	colorBlue      = lipgloss.Color("#8be9fd")
	colorPurple    = lipgloss.Color("#bd93f9")
	colorOrange    = lipgloss.Color("#ffb86c")
	colorDim       = lipgloss.Color("#6272a4")
	colorBgLight   = lipgloss.Color("#343746")
	colorFg        = lipgloss.Color("#f8f8f2")
	colorBorder    = lipgloss.Color("#44475a")
	colorHighlight = lipgloss.Color("#44475a")
)

// Style definitions.
var (
	// File list styles
	fileListStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	fileItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	fileItemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorFg).
				Background(colorHighlight).
				Bold(true)

	// Change view styles
	changeViewStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	changeCursorStyle = lipgloss.NewStyle().
				Background(colorHighlight)

	lineNumberStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(4).
			Align(lipgloss.Right)

	addedMarkStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	modifiedMarkStyle = lipgloss.NewStyle().
				Foreground(colorOrange)

	deletedLineStyle = lipgloss.NewStyle().
				Foreground(colorRed)

	oldContentStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)

	fileHeaderStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Padding(0, 0, 1, 0)

	// Status bar
	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBgLight).
			Padding(0, 1)

	// Finding annotation styles
	findingHighStyle = lipgloss.NewStyle().
				Foreground(colorPurple).
				Bold(true)

	findingMediumStyle = lipgloss.NewStyle().
				Foreground(colorBlue)

	findingLowStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	// Review decision styles
	acceptedStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	rejectedStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	summaryHeaderStyle = lipgloss.NewStyle().
				Foreground(colorBlue).
				Bold(true).
				Padding(1, 0)

	// Help bar
	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)
