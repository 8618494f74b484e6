package term

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/chat-widget/backend/internal/model/chat"
	chatService "github.com/zhouzirui/chat-widget/backend/internal/service/chat"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	botStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// Controller is the part of the conversation controller the terminal widget drives.
type Controller interface {
	SetInput(text string) uint64
	OnKeyCommit(ctx context.Context, key string) *chatService.Task
	Subscribe() (<-chan chat.Snapshot, func())
}

type snapshotMsg chat.Snapshot

// App is the root bubbletea model. It renders controller snapshots and forwards keystrokes.
type App struct {
	ctx  context.Context
	ctrl Controller

	updates     <-chan chat.Snapshot
	unsubscribe func()

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	snap     chat.Snapshot

	// inputVersion is the state version of the last edit sent to the controller.
	inputVersion uint64

	width, height int
}

// NewApp subscribes to ctrl. Call Close once the program exits.
func NewApp(ctx context.Context, ctrl Controller) *App {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about a destination..."
	ti.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	updates, unsubscribe := ctrl.Subscribe()
	return &App{
		ctx:         ctx,
		ctrl:        ctrl,
		updates:     updates,
		unsubscribe: unsubscribe,
		input:       ti,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
	}
}

// Close stops the snapshot subscription.
func (m *App) Close() {
	m.unsubscribe()
}

// Snapshot returns the last state rendered.
func (m *App) Snapshot() chat.Snapshot {
	return m.snap
}

func (m *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForSnapshot())
}

func (m *App) waitForSnapshot() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		return snapshotMsg(<-updates)
	}
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case snapshotMsg:
		m.apply(chat.Snapshot(msg))
		return m, m.waitForSnapshot()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.ctrl.OnKeyCommit(m.ctx, msg.String())
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if value := m.input.Value(); value != before {
			m.inputVersion = m.ctrl.SetInput(value)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply renders a snapshot. The controller owns the input buffer, so a change made after
// the last local edit, such as the clear after a reply, is mirrored into the text field.
// Older snapshots never touch the field.
func (m *App) apply(snap chat.Snapshot) {
	m.snap = snap
	if snap.Version > m.inputVersion && m.input.Value() != snap.Input {
		m.input.SetValue(snap.Input)
		m.input.CursorEnd()
	}
	m.viewport.SetContent(renderTranscript(snap.Messages, m.width))
	m.viewport.GotoBottom()
}

func (m *App) View() string {
	if m.width == 0 || m.height == 0 {
		return "initializing..."
	}

	status := hintStyle.Render("enter to send, esc to quit")
	if m.snap.Awaiting() {
		status = m.spinner.View() + hintStyle.Render(fmt.Sprintf(" waiting for %d repl%s", m.snap.Pending, plural(m.snap.Pending)))
	}

	sep := separatorStyle.Render(strings.Repeat("─", m.width))
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		sep,
		status,
		m.input.View(),
	)
}

func (m *App) recalcLayout() {
	const footerH = 3

	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-footerH, 1)
	m.input.Width = max(m.width-len(m.input.Prompt)-1, 1)
	m.viewport.SetContent(renderTranscript(m.snap.Messages, m.width))
	m.viewport.GotoBottom()
}

func renderTranscript(messages []chat.Message, width int) string {
	if len(messages) == 0 {
		return hintStyle.Render("No messages yet.")
	}

	wrap := lipgloss.NewStyle()
	if width > 0 {
		wrap = wrap.Width(width)
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			lines = append(lines, wrap.Render(userStyle.Render("you: ")+msg.Text))
		default:
			lines = append(lines, wrap.Render(botStyle.Render("bot: ")+msg.Text))
		}
	}
	return strings.Join(lines, "\n")
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// Run starts the terminal widget and blocks until the user quits.
func Run(ctx context.Context, ctrl Controller) error {
	app := NewApp(ctx, ctrl)
	defer app.Close()

	_, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
