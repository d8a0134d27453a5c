// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/driver/sim"
	"github.com/Thermoquad/lumen/pkg/status"
	"github.com/spf13/cobra"
)

var (
	simulateTiming   timingFlags
	simulateDuration time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run an output looped back into an input on the simulator",
	Long: `Run the engine on simulated hardware: port 0 transmits a ramp into port 1.

Time is simulated, so the run finishes as fast as the host allows. A status
report is printed for every simulated second. Timing flags behave as for send,
which makes this useful for checking what the engine does with a timing set
before putting it on a line.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateTiming.register(simulateCmd)
	simulateCmd.Flags().DurationVar(&simulateDuration, "duration", 3*time.Second, "Simulated run time")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	style, err := simulateTiming.outputStyle()
	if err != nil {
		return err
	}
	p, err := loadParams(simulateTiming.override(cmd))
	if err != nil {
		return err
	}

	board := dmx.GenericBoard("sim-out", "sim-in")
	hw := sim.New(board)
	e, err := dmx.New(board, hw, dmx.WithLogger(newLogger()))
	if err != nil {
		return err
	}
	p.Apply(e)
	hw.Connect(0, 1)

	fmt.Printf("Lumen - Simulation\n")
	printTiming(e)
	fmt.Printf("Style: %s, duration: %v\n\n", style, simulateDuration)

	if err := simulateTiming.saveEffective(e); err != nil {
		return err
	}

	e.SetPortDirection(1, dmx.DirectionInput, true)
	e.SetOutputStyle(0, style)
	e.SetPortDirection(0, dmx.DirectionOutput, true)

	slots := make([]byte, e.Slots())
	reported := e.Uptime()
	var last *dmx.DMXFrame
	for frame := 0; hw.Now() < simulateDuration; frame++ {
		for i := range slots {
			slots[i] = byte(frame)
		}
		e.SetSendDataWithoutStartCode(0, slots)
		e.Sync()
		hw.Run(min(e.PeriodTime(), simulateDuration-hw.Now()))
		if f := e.DMXAvailable(1); f != nil {
			last = f
		}

		if up := e.Uptime(); up != reported {
			reported = up
			fmt.Print(status.New(e, "simulator"))
		}
	}

	if last != nil {
		fmt.Printf("Last frame: start code 0x%02X, %d slots, %s\n", last.StartCode(), last.Slots, formatSlots(last.SlotData()[:min(last.Slots, 16)]))
	}
	return nil
}
