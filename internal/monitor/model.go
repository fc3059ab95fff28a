package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/robot"
	"github.com/muurk/farmlink/internal/serial"
	"github.com/muurk/farmlink/internal/telemetry"
)

// DefaultMaxLines bounds the log scrollback
const DefaultMaxLines = 2000

// controlPrefix selects a control sequence instead of a command line
const controlPrefix = "!"

// Controller is implemented by transports that can send console control
// sequences (serial.Port does)
type Controller interface {
	Control(name string) error
}

// Options configures the monitor
type Options struct {
	// Port is shown in the header
	Port string

	// Sender receives typed commands. Nil makes the monitor read-only.
	Sender serial.Sender

	// MaxLines bounds the scrollback (default DefaultMaxLines)
	MaxLines int
}

// Model is the monitor's Bubble Tea model
type Model struct {
	opts Options

	keys     keyMap
	help     help.Model
	viewport viewport.Model
	input    textinput.Model
	bar      progress.Model

	lines      []string
	history    []string
	historyIdx int

	position     *telemetry.Event
	progress     protocol.Progress
	lastTransfer string
	lastSaved    string
	ended        bool

	width  int
	height int
	now    func() time.Time
}

// New creates a monitor model sized to the current terminal
func New(opts Options) Model {
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "command or preset (reload, stop, ...), !interrupt"
	input.CharLimit = 256
	input.Focus()

	m := Model{
		opts:     opts,
		keys:     defaultKeyMap(),
		help:     help.New(),
		viewport: viewport.New(80, 10),
		input:    input,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		now:      time.Now,
	}
	if opts.Sender == nil {
		m.input.Placeholder = "read-only session"
		m.input.Blur()
	}

	w, h := terminalSize()
	return m.resize(w, h)
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case lineMsg:
		if msg.Alert {
			m.appendLine(alertStyle.Render("! " + msg.Text))
		} else {
			m.appendLine(receivedStyle.Render(msg.Text))
		}

	case blockMsg:
		state := "valid"
		if !msg.Valid {
			state = "invalid"
		}
		m.appendLine(systemStyle.Render(fmt.Sprintf("JSON block (%s, %s)", state, humanize.Bytes(uint64(len(msg.Text))))))
		for _, l := range strings.Split(msg.Text, "\n") {
			m.appendLine(receivedStyle.Render("  " + l))
		}

	case positionMsg:
		ev := telemetry.Event(msg)
		m.position = &ev
		m.appendLine(systemStyle.Render(fmt.Sprintf("Robot position detected: (%g, %g)", ev.X, ev.Y)))

	case progressMsg:
		m.progress = protocol.Progress(msg)

	case transferMsg:
		m.progress = protocol.Progress{}
		m.lastTransfer = summarize(msg.t)
		line := "Transfer complete: " + m.lastTransfer
		if !msg.t.ChecksumOK {
			line += " (checksum mismatch)"
		}
		m.appendLine(sentStyle.Render(line))

	case failureMsg:
		m.progress = protocol.Progress{}
		m.appendLine(errorStyle.Render("Transfer failed: " + msg.err.Error()))

	case savedMsg:
		m.lastSaved = msg.path
		m.appendLine(systemStyle.Render("Saved " + msg.path))

	case streamEndMsg:
		m.ended = true
		text := "Stream closed"
		if msg.err != nil {
			text += ": " + msg.err.Error()
		}
		m.appendLine(errorStyle.Render(text))

	case commandResultMsg:
		if msg.err != nil {
			m.appendLine(errorStyle.Render(fmt.Sprintf("%s failed: %v", msg.command, msg.err)))
		} else {
			m.appendLine(sentStyle.Render(">> " + msg.command))
		}

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.Previous):
		m.recall(-1)
		return m, nil

	case key.Matches(msg, m.keys.Next):
		m.recall(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Clear):
		m.lines = nil
		m.viewport.SetContent("")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line as a command, a preset or a control sequence
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if text == "" {
		return m, nil
	}
	m.history = append(m.history, text)
	m.historyIdx = len(m.history)

	sender := m.opts.Sender
	if sender == nil {
		m.appendLine(errorStyle.Render("Read-only session: command not sent"))
		return m, nil
	}

	if name, ok := strings.CutPrefix(text, controlPrefix); ok {
		ctrl, ok := sender.(Controller)
		if !ok {
			m.appendLine(errorStyle.Render("Control sequences are not supported by this connection"))
			return m, nil
		}
		return m, func() tea.Msg {
			return commandResultMsg{command: text, err: ctrl.Control(name)}
		}
	}

	command := robot.Resolve(text)
	return m, func() tea.Msg {
		return commandResultMsg{command: command, err: sender.Send(command)}
	}
}

// recall moves through the command history
func (m *Model) recall(step int) {
	if len(m.history) == 0 {
		return
	}
	idx := m.historyIdx + step
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.history) {
		m.historyIdx = len(m.history)
		m.input.SetValue("")
		return
	}
	m.historyIdx = idx
	m.input.SetValue(m.history[idx])
	m.input.CursorEnd()
}

// appendLine adds a timestamped line, trims the scrollback and follows the
// tail if the view was already at the bottom
func (m *Model) appendLine(text string) {
	follow := m.viewport.AtBottom()

	stamp := labelStyle.Render(m.now().Format("15:04:05"))
	m.lines = append(m.lines, stamp+" "+text)
	if over := len(m.lines) - m.opts.MaxLines; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}

	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) resize(width, height int) Model {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if height < MinTerminalHeight {
		height = MinTerminalHeight
	}
	m.width = width
	m.height = height

	m.viewport.Width = width
	m.viewport.Height = height - headerHeight - inputHeight - helpHeight
	m.input.Width = width - len(m.input.Prompt) - 1
	m.help.Width = width

	barWidth := width / 3
	if barWidth > 50 {
		barWidth = 50
	}
	m.bar.Width = barWidth
	return m
}

// View implements tea.Model
func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.input.View(),
		helpStyle.Render(m.help.View(m.keys)),
	)
}

func (m Model) renderHeader() string {
	port := m.opts.Port
	if port == "" {
		port = "-"
	}
	if m.ended {
		port += " (closed)"
	}

	pos := "unknown"
	if m.position != nil {
		pos = fmt.Sprintf("(%g, %g)", m.position.X, m.position.Y)
	}

	first := titleStyle.Render("farmlink") + "  " +
		field("port", port) + "  " +
		field("position", pos)

	var second string
	if m.progress.Active {
		second = labelStyle.Render("receiving ") +
			m.bar.ViewAs(m.progress.Fraction()) +
			valueStyle.Render(fmt.Sprintf(" %d/%d chunks", m.progress.Received, m.progress.Expected))
	} else {
		last := m.lastTransfer
		if last == "" {
			last = "none"
		}
		second = field("last transfer", last)
		if m.lastSaved != "" {
			second += "  " + field("saved", m.lastSaved)
		}
	}

	return headerStyle(m.width).Render(first + "\n" + second)
}

func field(label, value string) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}

// summarize describes a completed transfer in one line
func summarize(t *protocol.CompletedTransfer) string {
	name := t.FileName
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s (%s, %s, %d chunks)", name, t.Kind(), humanize.Bytes(uint64(len(t.Raw))), t.Chunks)
}
