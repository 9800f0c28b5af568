package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/armrecord/pkg/control"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Chart series, plotted in millimeters.
var series = []struct {
	name  string
	color string
}{
	{"action x", "196"}, // red
	{"action y", "46"},  // green
	{"distance", "51"},  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type sessionModel struct {
	title  string
	loop   *control.Loop
	logCh  <-chan string
	cancel context.CancelFunc

	chart    *streamlinechart.Model
	width    int // terminal width
	height   int // terminal height
	logs     []string
	last     control.Event
	stopping bool
	done     bool
	err      error
}

// Messages from the loop
type eventMsg control.Event
type logMsg string
type doneMsg struct{ err error }

func waitForEvent(loop *control.Loop) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-loop.Events())
	}
}

func waitForLog(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ch)
	}
}

func newSessionModel(title string, loop *control.Loop, logCh <-chan string, cancel context.CancelFunc) sessionModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-50, 50),
	)
	for _, s := range series {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color))
		chart.SetDataSetStyles(s.name, runes.ThinLineStyle, style)
	}
	return sessionModel{
		title:  title,
		loop:   loop,
		logCh:  logCh,
		cancel: cancel,
		chart:  &chart,
	}
}

func (m *sessionModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *sessionModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m sessionModel) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.loop),
		waitForLog(m.logCh),
	)
}

func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			// Wait for the loop to finalize the episode.
			m.stopping = true
			m.cancel()
			return m, nil
		}

	case eventMsg:
		ev := control.Event(msg)
		m.last = ev
		if len(ev.Action) == 2 {
			m.chart.PushDataSet(series[0].name, float64(ev.Action[0])*1000)
			m.chart.PushDataSet(series[1].name, float64(ev.Action[1])*1000)
			m.chart.PushDataSet(series[2].name, -float64(ev.Reward)*1000)
			m.chart.DrawAll()
		}
		return m, waitForEvent(m.loop)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.logCh)

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m sessionModel) View() string {
	if m.done {
		return fmt.Sprintf("%s stopped after %d records.\n", m.title, m.last.Records)
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("armrecord " + m.title))
	sb.WriteString(fmt.Sprintf(" - %s - cycle %d - %d records", m.loop.State(), m.last.Cycle, m.last.Records))
	if m.last.Path != "" {
		sb.WriteString(statusStyle.Render("  " + m.last.Path))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	switch {
	case m.stopping:
		logLines = statusStyle.Render("Stopping, closing episode...")
	case len(m.logs) == 0:
		logLines = statusStyle.Render("Press 'q' to stop")
	default:
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, s := range series {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+s.name+" (mm)")
	}
	return strings.Join(items, "  ")
}

// runTUI runs the loop behind the session TUI and returns the loop's error.
func runTUI(ctx context.Context, cancel context.CancelFunc, title string, loop *control.Loop, logCh <-chan string) error {
	errCh := make(chan error, 1)
	p := tea.NewProgram(newSessionModel(title, loop, logCh, cancel), tea.WithAltScreen())

	go func() {
		err := loop.Run(ctx)
		errCh <- err
		p.Send(doneMsg{err: err})
	}()

	_, tuiErr := p.Run()
	cancel()
	err := <-errCh
	if tuiErr != nil && err == nil {
		return tuiErr
	}
	return err
}
