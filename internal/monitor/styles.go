package monitor

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - borders, titles
	SuccessColor = lipgloss.Color("#43BF6D") // Green - saved transfers, sent commands
	ErrorColor   = lipgloss.Color("#FF5555") // Red - failures
	WarningColor = lipgloss.Color("#FFA500") // Orange - robot alerts
	MutedColor   = lipgloss.Color("#626262") // Gray - system lines, timestamps
	TextColor    = lipgloss.Color("#FFFFFF") // White - robot output
)

// Layout constants
const (
	MinTerminalWidth  = 60
	MinTerminalHeight = 12
	headerHeight      = 4 // Bordered two-line status block
	inputHeight       = 1
	helpHeight        = 1
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	valueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	receivedStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	alertStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	sentStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(MutedColor)
)

func headerStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2). // Account for border characters
		PaddingLeft(1)
}

// IsTerminal reports whether stdin and stdout are both attached to a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// terminalSize returns the current terminal size with a fallback
func terminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80, 24
	}
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if height < MinTerminalHeight {
		height = MinTerminalHeight
	}
	return width, height
}
