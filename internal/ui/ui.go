package ui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tbman/internal/types"
)

const refreshInterval = 2 * time.Second

// SessionClient is the slice of the daemon client the dashboard needs.
type SessionClient interface {
	ListSessions(ctx context.Context) ([]types.SessionInfo, error)
	StartSession(ctx context.Context, id string) error
	StopSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
}

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type sessionsMsg []types.SessionInfo

type errMsg struct{ err error }

type tickMsg time.Time

type Model struct {
	client   SessionClient
	table    table.Model
	sessions []types.SessionInfo
	err      error
}

func NewModel(client SessionClient) Model {
	columns := []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Title", Width: 28},
		{Title: "Port", Width: 6},
		{Title: "Status", Width: 9},
		{Title: "URL", Width: 28},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)
	return Model{client: client, table: t}
}

// Run renders the session dashboard until the user quits.
func Run(client SessionClient) error {
	program := tea.NewProgram(NewModel(client), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchSessions(), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetchSessions()
		case "s":
			return m, m.withSelected(m.client.StartSession)
		case "x":
			return m, m.withSelected(m.client.StopSession)
		case "d":
			return m, m.withSelected(m.client.DeleteSession)
		}
	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 6)
	case sessionsMsg:
		m.err = nil
		m.sessions = msg
		m.table.SetRows(sessionRows(msg))
	case errMsg:
		m.err = msg.err
	case tickMsg:
		return m, tea.Batch(m.fetchSessions(), tick())
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	header := headerStyle.Render(fmt.Sprintf("tbman — %d sessions", len(m.sessions)))
	body := baseStyle.Render(m.table.View())
	footer := helpStyle.Render("s start · x stop · d delete · r refresh · q quit")
	if m.err != nil {
		footer = errStyle.Render("error: " + m.err.Error())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) fetchSessions() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sessions, err := m.client.ListSessions(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return sessionsMsg(sessions)
	}
}

func (m Model) withSelected(action func(context.Context, string) error) tea.Cmd {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return nil
	}
	id := m.selectedID(row[0])
	if id == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := action(ctx, id); err != nil {
			return errMsg{err: err}
		}
		sessions, err := m.client.ListSessions(ctx)
		if err != nil {
			return errMsg{err: err}
		}
		return sessionsMsg(sessions)
	}
}

// selectedID maps the truncated id shown in the table back to the full id.
func (m Model) selectedID(short string) string {
	for _, session := range m.sessions {
		if shortID(session.ID) == short {
			return session.ID
		}
	}
	return ""
}

func sessionRows(sessions []types.SessionInfo) []table.Row {
	rows := make([]table.Row, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, table.Row{
			shortID(session.ID),
			session.Title,
			strconv.Itoa(session.Port),
			string(session.Status),
			session.URL,
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
