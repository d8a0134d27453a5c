// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/rdm"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	monitorSlots    int
	monitorInterval int
	useTUI          bool
)

// pollInterval is how often the monitor drains received frames
const pollInterval = 20 * time.Millisecond

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Receive DMX and RDM on every port",
	Long: `Listen on every --port and show what arrives.

For each port the monitor shows the DMX update rate, frame counters, the RDM
checksum statistics and the first slots of the latest frame. Received RDM
messages are decoded and logged.

The terminal UI is used when stdout is a terminal; otherwise, or with
--tui=false, a text summary is printed at --stats-interval.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&monitorSlots, "slots", 16, "Number of slots to show per frame")
	monitorCmd.Flags().IntVar(&monitorInterval, "stats-interval", 1, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	node, err := OpenNode(nil)
	if err != nil {
		return err
	}
	defer node.Close()

	e := node.Engine
	for i := range e.Ports() {
		e.SetPortDirection(i, dmx.DirectionInput, true)
	}

	if useTUI && term.IsTerminal(int(os.Stdout.Fd())) {
		return runTUIMode(node)
	}
	return runTextMode(node)
}

// portView is the latest state of one input port
type portView struct {
	slots []byte
	rdm   []byte
}

// poll drains the receive slots of every port into views. It returns the RDM
// messages that arrived.
func poll(e *dmx.Engine, views []portView) [][]byte {
	var messages [][]byte
	for i := range views {
		if f := e.DMXAvailable(i); f != nil {
			data := f.SlotData()
			views[i].slots = append(views[i].slots[:0], data[:min(len(data), monitorSlots)]...)
		}
		if msg := e.RDMReceive(i); msg != nil {
			views[i].rdm = append(views[i].rdm[:0], msg...)
			messages = append(messages, views[i].rdm)
		}
	}
	return messages
}

func runTUIMode(node *Node) error {
	p := tea.NewProgram(initialModel(node), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func runTextMode(node *Node) error {
	e := node.Engine

	fmt.Printf("Lumen - DMX Monitor\n")
	fmt.Printf("Connection: %s\n", node.Info())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	views := make([]portView, e.Ports())
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	statsTicker := time.NewTicker(time.Duration(monitorInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-interrupt:
			fmt.Println()
			printMonitorStatistics(e, views)
			return nil

		case <-pollTicker.C:
			for _, msg := range poll(e, views) {
				timestamp := time.Now().Format("15:04:05.000")
				fmt.Printf("[%s] RDM (%d bytes)\n%s\n", timestamp, len(msg), rdm.FormatFrame(msg))
			}

		case <-statsTicker.C:
			printMonitorStatistics(e, views)
		}
	}
}

func printMonitorStatistics(e *dmx.Engine, views []portView) {
	timestamp := time.Now().Format("15:04:05")
	for i := range e.Ports() {
		s := e.TotalStatistics(i)
		fmt.Printf("[%s] port %d: %3d/s, %d frames, RDM %d good %d bad | %s\n",
			timestamp, i, e.DMXUpdatesPerSecond(i), s.DMX.Received,
			s.RDM.Received.Good, s.RDM.Received.Bad, formatSlots(views[i].slots))
	}
}

func formatSlots(slots []byte) string {
	if len(slots) == 0 {
		return "(no data)"
	}
	return fmt.Sprintf("% X", slots)
}
