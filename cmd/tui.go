// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/rdm"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type model struct {
	node          *Node
	views         []portView
	ports         table.Model
	log           []logEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type pollMsg time.Time

// formatUptime formats uptime in seconds to human-friendly string
func formatUptime(seconds uint32) string {
	if seconds == 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, unit := range []struct {
		n    uint32
		name string
	}{{days, "day"}, {hours, "hour"}, {minutes, "minute"}, {seconds, "second"}} {
		switch {
		case unit.n == 1:
			parts = append(parts, "1 "+unit.name)
		case unit.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", unit.n, unit.name))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(node *Node) model {
	columns := []table.Column{
		{Title: "Port", Width: 4},
		{Title: "Device", Width: 16},
		{Title: "Rate", Width: 6},
		{Title: "Frames", Width: 9},
		{Title: "RDM", Width: 6},
		{Title: "Bad", Width: 5},
		{Title: "Slots", Width: 3 * monitorSlots},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(node.Engine.Ports()+1),
		table.WithFocused(false),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("12"))
	s.Selected = s.Cell
	t.SetStyles(s)

	m := model{
		node:          node,
		views:         make([]portView, node.Engine.Ports()),
		ports:         t,
		log:           make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.refreshTable()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), pollCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Duration(monitorInterval)*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.refreshTable()
		return m, tickCmd()

	case pollMsg:
		for _, frame := range poll(m.node.Engine, m.views) {
			m.addLogEntry(strings.TrimSpace(rdm.FormatFrame(frame)), !isGoodFrame(frame))
		}
		return m, pollCmd()
	}

	return m, nil
}

func isGoodFrame(frame []byte) bool {
	if len(frame) > 0 && frame[0] != rdm.StartCode {
		_, err := rdm.DecodeDiscoveryResponse(frame)
		return err == nil
	}
	return rdm.VerifyChecksum(frame)
}

func (m *model) addLogEntry(message string, isError bool) {
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

func (m *model) refreshTable() {
	e := m.node.Engine
	board := e.Board()
	rows := make([]table.Row, 0, e.Ports())
	for i := range e.Ports() {
		s := e.TotalStatistics(i)
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i),
			board.Ports[i].Name,
			fmt.Sprintf("%d/s", e.DMXUpdatesPerSecond(i)),
			fmt.Sprintf("%d", s.DMX.Received),
			fmt.Sprintf("%d", s.RDM.Received.Good),
			fmt.Sprintf("%d", s.RDM.Received.Bad),
			formatSlots(m.views[i].slots),
		})
	}
	m.ports.SetRows(rows)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	e := m.node.Engine

	var s strings.Builder
	s.WriteString(titleStyle.Render("LUMEN - DMX MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.node.Info())))
	s.WriteString("\n\n")

	s.WriteString(fmt.Sprintf("%s %s   %s %s\n\n",
		labelStyle.Render("Uptime:"), valueStyle.Render(formatUptime(e.Uptime())),
		labelStyle.Render("Direction:"), valueStyle.Render(dmx.DirectionInput.String()),
	))

	s.WriteString(boxStyle.Render(m.ports.View()))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("RDM Messages:"))
	s.WriteString("\n")

	// Reserve space for header and the port table
	logHeight := max(m.height-12-e.Ports(), 5)

	logContent := strings.Builder{}
	startIdx := max(len(m.log)-logHeight, 0)

	if len(m.log) == 0 {
		logContent.WriteString(headerStyle.Render("  (no messages yet)"))
	} else {
		for _, entry := range m.log[startIdx:] {
			timestamp := entry.timestamp.Format("15:04:05.000")
			style, mark := infoStyle, "ℹ "
			if entry.isError {
				style, mark = errorStyle, "✗ "
			}
			logContent.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				style.Render(mark+entry.message),
			))
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
