// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/spf13/cobra"
)

var frameTestTimeout int

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test a line by waiting for a DMX frame",
	Long: `Wait for a complete DMX frame on any --port until timeout.

Frames with a non-zero start code count as well; RDM messages do not.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a frame
  2 - Connection error

Useful for checking wiring and termination before a show.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	node, err := OpenNode(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	e := node.Engine

	fmt.Printf("Lumen - Frame Test\n")
	fmt.Printf("Connection: %s\n", node.Info())
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for a DMX frame...\n\n")

	for i := range e.Ports() {
		e.SetPortDirection(i, dmx.DirectionInput, true)
	}

	deadline := time.After(time.Duration(frameTestTimeout) * time.Second)
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-pollTicker.C:
			for i := range e.Ports() {
				f := e.DMXAvailable(i)
				if f == nil {
					continue
				}
				fmt.Printf("SUCCESS: Received frame on port %d\n", i)
				fmt.Printf("  Start code: 0x%02X\n", f.StartCode())
				fmt.Printf("  Slots: %d\n", f.Slots)
				fmt.Printf("  Data: %s\n", formatSlots(f.SlotData()[:min(f.Slots, 16)]))
				node.Close()
				os.Exit(0)
			}

		case <-deadline:
			for i := range e.Ports() {
				s := e.TotalStatistics(i)
				fmt.Fprintf(os.Stderr, "  port %d: %d frames, %d RDM\n", i, s.DMX.Received, s.RDM.Received.Good+s.RDM.Received.Bad)
			}
			fmt.Fprintf(os.Stderr, "TIMEOUT: No DMX frame received within %d seconds\n", frameTestTimeout)
			node.Close()
			os.Exit(1)
		}
	}
}
