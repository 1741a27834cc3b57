package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/swarmwatch/internal/observability"
)

var watchTail int

// watchInterval is the polling cadence of the live view. Observation is
// polling-based: the log is re-read, never pushed.
const watchInterval = time.Second

type watchTickMsg time.Time

type watchDataMsg struct {
	events []observability.Event
	total  int
	stats  observability.ErrorStats
	types  map[string]int
	err    error
}

type watchModel struct {
	sessionID string
	eventsDir string
	tail      int

	width  int
	height int
	paused bool

	events []observability.Event
	total  int
	stats  observability.ErrorStats
	types  map[string]int
	err    error
}

// Style definitions.
var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	watchPanelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	watchTimeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchTypeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	watchErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	watchSourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	watchPausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	watchHelpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newWatchModel(sessionID, eventsDir string, tail int) watchModel {
	return watchModel{
		sessionID: sessionID,
		eventsDir: eventsDir,
		tail:      tail,
		types:     make(map[string]int),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.loadEvents, watchTick())
}

func watchTick() tea.Cmd {
	return tea.Tick(watchInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) loadEvents() tea.Msg {
	events, _, err := observability.ReadSessionLog(m.eventsDir, m.sessionID)
	if err != nil && !errors.Is(err, observability.ErrSessionNotFound) {
		return watchDataMsg{err: err}
	}
	return watchDataMsg{
		events: observability.Tail(events, m.tail),
		total:  len(events),
		stats:  observability.ErrorRate(events),
		types:  observability.CountByType(events),
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
			return m, nil
		case "r":
			return m, m.loadEvents
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case watchTickMsg:
		if m.paused {
			return m, watchTick()
		}
		return m, tea.Batch(m.loadEvents, watchTick())

	case watchDataMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.events = msg.events
		m.total = msg.total
		m.stats = msg.stats
		m.types = msg.types
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m watchModel) View() string {
	title := watchTitleStyle.Render(fmt.Sprintf(" swarmwatch %s ", m.sessionID))
	if m.paused {
		title += " " + watchPausedStyle.Render("[paused]")
	}
	help := watchHelpStyle.Render("p: pause | r: refresh | q: quit")

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	status := fmt.Sprintf("%d events", m.total)
	if m.stats.ErrorCount > 0 {
		status += " | " + watchErrorStyle.Render(fmt.Sprintf("%d errors (%.1f%%)", m.stats.ErrorCount, m.stats.Rate*100))
	}

	var b strings.Builder
	if m.total == 0 {
		b.WriteString("Waiting for events...")
	}
	for _, ev := range m.events {
		typeStyle := watchTypeStyle
		if observability.IsErrorClass(ev.EventType) {
			typeStyle = watchErrorStyle
		}
		line := fmt.Sprintf("%s %s %s",
			watchTimeStyle.Render(ev.Timestamp.UTC().Format("15:04:05")),
			typeStyle.Render(fmt.Sprintf("%-24s", ev.EventType)),
			watchSourceStyle.Render(ev.Source),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}

	panelWidth := m.width - 4
	if panelWidth < 40 {
		panelWidth = 40
	}
	panel := watchPanelStyle.Width(panelWidth).Render(strings.TrimRight(b.String(), "\n"))

	return fmt.Sprintf("%s  %s\n\n%s\n\n%s", title, status, panel, help)
}

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Watch a session's events live",
	Long: `Watch a session's event log in a live terminal view.

The log is polled once per second; the most recent events are shown with
a running total and error rate. Watching a session that has not started
yet simply waits for its first events.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]

		eventsDir, err := resolveEventsDir(sessionID)
		if err != nil {
			return err
		}

		p := tea.NewProgram(newWatchModel(sessionID, eventsDir, watchTail), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running watch view: %w", err)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchTail, "tail", 20, "number of recent events to keep on screen")
	rootCmd.AddCommand(watchCmd)
}
