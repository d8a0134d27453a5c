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
	"github.com/spf13/cobra"
)

var rawLogChanged bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display every received frame in human-readable format",
	Long: `Continuously display DMX frames and RDM messages as they arrive.

Each DMX frame is printed with timestamp, port, start code and all slots as
hex. RDM messages are decoded. With --changed, DMX frames identical to the
previous frame of the same port are skipped.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogChanged, "changed", false, "Only show DMX frames that differ from the previous one")
}

// formatFrame renders a DMX frame as a timestamped hex dump
func formatFrame(port int, f *dmx.DMXFrame, at time.Time) string {
	result := fmt.Sprintf("[%s] port %d DMX start=0x%02X slots=%d\n",
		at.Format("15:04:05.000"), port, f.StartCode(), f.Slots)
	result += "  " + rdm.FormatHex(f.SlotData())
	return result
}

func runRawLog(cmd *cobra.Command, args []string) error {
	node, err := OpenNode(nil)
	if err != nil {
		return err
	}
	defer node.Close()
	e := node.Engine

	fmt.Printf("Lumen - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", node.Info())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	for i := range e.Ports() {
		e.SetPortDirection(i, dmx.DirectionInput, true)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	previous := make([]dmx.DMXFrame, e.Ports())
	pollTicker := time.NewTicker(time.Millisecond)
	defer pollTicker.Stop()

	for {
		select {
		case <-interrupt:
			return nil

		case <-pollTicker.C:
			now := time.Now()
			for i := range e.Ports() {
				if msg := e.RDMReceive(i); msg != nil {
					fmt.Printf("[%s] port %d RDM %s", now.Format("15:04:05.000"), i, rdm.FormatFrame(msg))
				}
				f := e.DMXAvailable(i)
				if f == nil || (rawLogChanged && previous[i] == *f) {
					continue
				}
				previous[i] = *f
				fmt.Print(formatFrame(i, f, now))
			}
		}
	}
}
