package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/demorecorder/pkg/episode"
	"github.com/gwillem/demorecorder/pkg/event"
	"github.com/gwillem/demorecorder/pkg/input"
	"github.com/gwillem/demorecorder/pkg/robot"
	"github.com/gwillem/demorecorder/pkg/teleop"
)

const (
	headerHeight   = 2 // title + blank line
	legendHeight   = 2 // legend row + blank
	footerHeight   = 8 // log box height
	maxLogs        = 6 // number of information lines to show
	borderSize     = 2 // chart border
	previewTimeout = 8 * time.Second
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	modeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
)

// Messages delivered to the model
type (
	stateMsg   teleop.State
	mappingMsg map[string]string
	infoMsg    string
	previewMsg string
	clearMsg   struct{ at time.Time }
	doneMsg    struct{ err error }
)

// tuiSink is the status sink of the terminal UI. Messages are buffered so
// that the dispatcher never waits for the UI.
type tuiSink struct {
	ch  chan tea.Msg
	log *slog.Logger
}

func newTUISink(log *slog.Logger) *tuiSink {
	return &tuiSink{ch: make(chan tea.Msg, 256), log: log}
}

func (s *tuiSink) send(msg tea.Msg) {
	select {
	case s.ch <- msg:
	default:
		s.log.Warn("terminal UI is behind, dropping status message", "message", fmt.Sprint(msg))
	}
}

func (s *tuiSink) DisplayInputMapping(mapping string) {
	var m map[string]string
	if err := json.Unmarshal([]byte(mapping), &m); err != nil {
		s.send(infoMsg("invalid input mapping: " + err.Error()))
		return
	}
	s.send(mappingMsg(m))
}

func (s *tuiSink) DisplayInformation(text string) {
	s.send(infoMsg(text))
}

// Preview receives episode charts from the data logging backend.
func (s *tuiSink) Preview(chart string) {
	s.send(previewMsg(chart))
}

func (s *tuiSink) wait() tea.Cmd {
	return func() tea.Msg {
		return <-s.ch
	}
}

func waitForState(states <-chan teleop.State) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-states)
	}
}

type recordModel struct {
	keyboard *input.Keyboard
	post     func(event.Event)
	sink     *tuiSink
	states   <-chan teleop.State // nil without arms
	backend  string
	hz       int

	chart         *streamlinechart.Model
	width         int
	height        int
	mapping       map[string]string
	logs          []string
	mode          string
	preview       string
	previewAt     time.Time
	lastPositions robot.Positions
	terminating   bool
	quitting      bool
	err           error
}

func newRecordModel(keyboard *input.Keyboard, post func(event.Event), sink *tuiSink, states <-chan teleop.State, backend string, hz int) recordModel {
	chart := episode.NewChart(80, 20)
	return recordModel{
		keyboard: keyboard,
		post:     post,
		sink:     sink,
		states:   states,
		backend:  backend,
		hz:       hz,
		chart:    &chart,
	}
}

func (m *recordModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if any motor position has changed from the last state
func (m *recordModel) hasMovement(positions robot.Positions) bool {
	if m.lastPositions == nil {
		return true
	}
	for name, pos := range positions {
		if lastPos, ok := m.lastPositions[name]; !ok || pos != lastPos {
			return true
		}
	}
	return false
}

// chartSize calculates the size of the chart from the terminal and the key
// table next to it.
func (m *recordModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = m.width - borderSize - 2 - lipgloss.Width(m.renderKeys())
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *recordModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func (m recordModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.sink.wait()}
	if m.states != nil {
		cmds = append(cmds, waitForState(m.states))
	}
	return tea.Batch(cmds...)
}

func (m recordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			// ctrl+c terminates whatever the keymap binds it to
			m.post(event.Terminate())
			m.terminating = true
			return m, nil
		}
		if ev, ok := m.keyboard.HandleKey(key); ok && ev.Category == event.TerminateCategory {
			m.terminating = true
		}
		return m, nil

	case stateMsg:
		state := teleop.State(msg)
		m.mode = state.Mode.String()
		if state.Positions != nil && m.hasMovement(state.Positions) {
			for name, pos := range state.Positions {
				m.chart.PushDataSet(string(name), pos)
			}
			m.chart.DrawAll()
			m.lastPositions = state.Positions
		}
		return m, waitForState(m.states)

	case mappingMsg:
		m.mapping = msg
		m.resizeChart()
		return m, m.sink.wait()

	case infoMsg:
		m.addLog(string(msg))
		return m, m.sink.wait()

	case previewMsg:
		m.preview = string(msg)
		m.previewAt = time.Now()
		at := m.previewAt
		return m, tea.Batch(m.sink.wait(), tea.Tick(previewTimeout, func(time.Time) tea.Msg {
			return clearMsg{at: at}
		}))

	case clearMsg:
		if msg.at.Equal(m.previewAt) {
			m.preview = ""
		}
		return m, nil

	case doneMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m recordModel) View() string {
	if m.quitting {
		return "Recording session ended.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Demo Recorder"))
	sb.WriteString(fmt.Sprintf(" - %s @ %d Hz", m.backend, m.hz))
	if m.mode != "" {
		sb.WriteString("  " + modeStyle.Render(m.mode))
	}
	if m.terminating {
		sb.WriteString(statusStyle.Render("  terminating..."))
	}
	sb.WriteString("\n\n")

	// Live chart, or the preview of an episode
	body := m.chart.View()
	if m.preview != "" {
		body = m.preview
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, chartStyle.Render(body), " ", m.renderKeys()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Information box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Waiting for input")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

// renderKeys renders the input mapping as a table.
func (m recordModel) renderKeys() string {
	if len(m.mapping) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m.mapping))
	for key := range m.mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, m.mapping[key]})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(statusStyle).
		Headers("Key", "Event").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headStyle
			case col == 0:
				return keyStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}

func renderLegend() string {
	var items []string
	for _, name := range robot.AllMotors() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(episode.MotorColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(name))
	}
	return strings.Join(items, "  ")
}
