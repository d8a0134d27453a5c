// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Slots shown per row of the level grid
const gridColumns = 16

// Focus states
const (
	focusPortList = iota
	focusLevelInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// outputPort is one entry of the port list
type outputPort struct {
	index int
	name  string
	style dmx.OutputStyle
	state dmx.TxState
	sent  uint32
}

// Implement list.Item interface
func (p outputPort) Title() string { return fmt.Sprintf("Port %d %s", p.index, p.name) }

func (p outputPort) Description() string {
	return fmt.Sprintf("%s %s, %d sent", p.style, p.state, p.sent)
}

func (p outputPort) FilterValue() string { return p.name }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	node *Node

	// Levels per port, without start code
	levels [][]byte

	portList     list.Model
	levelInput   textinput.Model
	focusedField int

	log           []logEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(node *Node) controlModel {
	ti := textinput.New()
	ti.Placeholder = "1-24@255"
	ti.CharLimit = 16
	ti.Width = 16

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	portList := list.New([]list.Item{}, delegate, 30, 10)
	portList.Title = "Ports"
	portList.SetShowStatusBar(false)
	portList.SetShowHelp(false)
	portList.SetFilteringEnabled(false)

	e := node.Engine
	levels := make([][]byte, e.Ports())
	for i := range levels {
		levels[i] = make([]byte, e.Slots())
	}

	m := controlModel{
		node:          node,
		levels:        levels,
		portList:      portList,
		levelInput:    ti,
		focusedField:  focusPortList,
		log:           make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.refreshPorts()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		m.refreshPorts()
		return m, controlTickCmd()
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField == focusPortList {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		if m.focusedField == focusPortList {
			m.focusedField = focusLevelInput
			return m, m.levelInput.Focus()
		}
		m.focusedField = focusPortList
		m.levelInput.Blur()
		return m, nil

	case "enter":
		if m.focusedField == focusLevelInput {
			m.handleEnter()
			return m, nil
		}
	}

	// Pass through to focused component
	var cmd tea.Cmd
	if m.focusedField == focusLevelInput {
		m.levelInput, cmd = m.levelInput.Update(msg)
	} else {
		m.portList, cmd = m.portList.Update(msg)
	}
	return m, cmd
}

func (m *controlModel) selectedPort() int {
	return m.portList.Index()
}

func (m *controlModel) handleEnter() {
	input := strings.TrimSpace(m.levelInput.Value())
	m.levelInput.SetValue("")
	if input == "" {
		return
	}

	e := m.node.Engine
	switch input {
	case "blackout":
		e.Blackout()
		for _, l := range m.levels {
			clear(l)
		}
		m.addLogEntry("Blackout", false)
		return
	case "full":
		e.FullOn()
		for _, l := range m.levels {
			for i := range l {
				l[i] = 0xFF
			}
		}
		m.addLogEntry("Full on", false)
		return
	}

	port := m.selectedPort()
	c, err := parseLevelCommand(input, len(m.levels[port]))
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	c.apply(m.levels[port])
	e.SetSendDataWithoutStartCode(port, m.levels[port])
	e.Sync()
	m.addLogEntry(fmt.Sprintf("Port %d: slots %d-%d at %d", port, c.first, c.last, c.value), false)
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.log = append(m.log, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

func (m *controlModel) refreshPorts() {
	e := m.node.Engine
	board := e.Board()
	items := make([]list.Item, e.Ports())
	for i := range items {
		items[i] = outputPort{
			index: i,
			name:  board.Ports[i].Name,
			style: e.OutputStyle(i),
			state: e.TxState(i),
			sent:  e.TotalStatistics(i).DMX.Sent,
		}
	}
	m.portList.SetItems(items)
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("LUMEN CONTROL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch Enter=apply", m.node.Info())))
	s.WriteString("\n\n")

	// Layout: left panel (ports) | right panel (levels)
	leftWidth := 30
	rightWidth := max(m.width-leftWidth-6, 20)

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusPortList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	portPanel := listStyle.Render(m.portList.View())

	var levels strings.Builder
	port := m.selectedPort()
	levels.WriteString(labelStyle.Render(fmt.Sprintf("Port %d levels", port)))
	levels.WriteString("\n")
	l := m.levels[port]
	for row := 0; row < min(len(l), 8*gridColumns); row += gridColumns {
		levels.WriteString(headerStyle.Render(fmt.Sprintf("%3d ", row+1)))
		for _, v := range l[row:min(row+gridColumns, len(l))] {
			cell := fmt.Sprintf("%3d ", v)
			if v > 0 {
				cell = valueStyle.Render(cell)
			}
			levels.WriteString(cell)
		}
		levels.WriteString("\n")
	}
	levels.WriteString("\n")
	levels.WriteString(labelStyle.Render("Level: "))
	levels.WriteString(m.levelInput.View())

	controlStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusLevelInput {
		controlStyle = focusedBoxStyle.Width(rightWidth)
	}
	controlPanel := controlStyle.Render(levels.String())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, portPanel, " ", controlPanel))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Events:"))
	s.WriteString("\n")
	logHeight := max(m.height-26, 3)
	var logContent strings.Builder
	if len(m.log) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.log[max(len(m.log)-logHeight, 0):] {
		style := infoStyle
		if entry.isError {
			style = errorStyle
		}
		logContent.WriteString(fmt.Sprintf("%s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(entry.message),
		))
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
