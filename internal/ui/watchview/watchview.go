// Package watchview is the interactive screen behind `observables watch --tui`.
// It shows the current value of a container, a scrollable list of committed
// changes and the most recent log lines.
package watchview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/observables/internal/log"
	"github.com/zjrosen/observables/internal/observable"
	"github.com/zjrosen/observables/internal/pubsub"
	"github.com/zjrosen/observables/internal/statefile"
)

const (
	maxLogLines       = 5
	maxChangeLines    = 500
	viewportMinHeight = 3
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#1F6FEB", Dark: "#58A6FF"})
	sectionStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"})
	notifyStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"})
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"})
)

// NotifiedMsg is sent by the watching subscriber each time it is called.
type NotifiedMsg struct {
	Value observable.Value
}

// ErrorMsg reports a failed reload.
type ErrorMsg struct {
	Err error
}

// Model is the watch screen state.
type Model struct {
	name  string
	value observable.Value

	changes *pubsub.ContinuousListener[observable.Change]
	logs    *log.LogListener

	changeLines []string
	logLines    []string
	notified    int
	lastNotify  string
	lastErr     error

	width    int
	height   int
	viewport viewport.Model
}

// New subscribes to c's change stream and, when logging is initialised, to
// the log stream. Both subscriptions end with ctx.
func New(ctx context.Context, c *observable.Container) Model {
	return Model{
		name:     c.Name(),
		value:    c.Value(),
		changes:  pubsub.NewContinuousListener(ctx, c.Source()),
		logs:     log.NewListener(ctx),
		viewport: viewport.New(0, viewportMinHeight),
	}
}

// Value returns the value carried by the last change seen.
func (m Model) Value() observable.Value {
	return m.value
}

// Notified returns how many times the watching subscriber was called.
func (m Model) Notified() int {
	return m.notified
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.logs == nil {
		return m.changes.Listen()
	}
	return tea.Batch(m.changes.Listen(), m.logs.Listen())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case pubsub.Event[observable.Change]:
		m.value = msg.Payload.Value
		m.changeLines = append(m.changeLines, formatChange(msg))
		if len(m.changeLines) > maxChangeLines {
			m.changeLines = m.changeLines[len(m.changeLines)-maxChangeLines:]
		}
		m.resize()
		return m, m.changes.Listen()

	case log.LogEvent:
		m.logLines = append(m.logLines, strings.TrimRight(msg.Payload, "\n"))
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
		var cmd tea.Cmd
		if m.logs != nil {
			cmd = m.logs.Listen()
		}
		return m, cmd

	case NotifiedMsg:
		m.notified++
		m.lastNotify = statefile.RenderInline(msg.Value)
		return m, nil

	case ErrorMsg:
		m.lastErr = msg.Err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "j", "down":
			m.viewport.ScrollDown(1)
		case "k", "up":
			m.viewport.ScrollUp(1)
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		}
		return m, nil
	}
	return m, nil
}

func formatChange(ev pubsub.Event[observable.Change]) string {
	return fmt.Sprintf("%s #%d %s %s keys=%s",
		ev.Timestamp.Format(time.TimeOnly),
		ev.Seq,
		ev.Type,
		ev.Payload.ID.String()[:8],
		strings.Join(ev.Payload.Keys, ","))
}

// resize fits the changes viewport into whatever the header, state, status
// and log panes leave over, then refreshes its content.
func (m *Model) resize() {
	fixed := 1 + // title
		1 + strings.Count(statefile.Render(m.value), "\n") + // state pane
		1 + // changes heading
		1 + // status line
		1 + maxLogLines + // log pane
		1 // help
	h := m.height - fixed
	if h < viewportMinHeight {
		h = viewportMinHeight
	}
	m.viewport.Width = m.width
	m.viewport.Height = h

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(m.clip(m.changeLines), "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) clip(lines []string) []string {
	if m.width <= 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = ansi.Truncate(l, m.width, "…")
	}
	return out
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("watching " + m.name))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("state"))
	b.WriteString("\n")
	b.WriteString(strings.Join(m.clip(strings.Split(strings.TrimRight(statefile.Render(m.value), "\n"), "\n")), "\n"))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("changes (%d)", len(m.changeLines))))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.lastErr != nil:
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
	case m.notified > 0:
		b.WriteString(notifyStyle.Render(fmt.Sprintf("-> %s (notified %d)", m.lastNotify, m.notified)))
	default:
		b.WriteString(mutedStyle.Render("waiting for changes"))
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("log"))
	b.WriteString("\n")
	if m.logs == nil {
		b.WriteString(mutedStyle.Render("logging disabled (run with --debug)"))
	} else {
		b.WriteString(mutedStyle.Render(strings.Join(m.clip(m.logLines), "\n")))
	}
	b.WriteString("\n")

	b.WriteString(mutedStyle.Render("j/k scroll  g/G top/bottom  q quit"))
	return b.String()
}
