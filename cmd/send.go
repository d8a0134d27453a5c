// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/spf13/cobra"
)

var (
	sendTiming   timingFlags
	sendLevel    string
	sendPattern  string
	sendDuration time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Transmit DMX on every port",
	Long: `Drive every --port as a DMX output.

Patterns:
  level  - every slot at --level
  chase  - one slot at full, moving once per frame
  ramp   - all slots fading 0 to 255, one step per frame
  values - slot values from --level as a comma separated list

With --style delta a frame is sent only when the data changes; continuous
resends the current frame every refresh period. Statistics are printed once
per second until --duration elapses or Ctrl+C is pressed.`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendTiming.register(sendCmd)
	sendCmd.Flags().StringVar(&sendLevel, "level", "255", "Slot level, or comma separated values with --pattern values")
	sendCmd.Flags().StringVar(&sendPattern, "pattern", "level", "Test pattern (level, chase, ramp, values)")
	sendCmd.Flags().DurationVar(&sendDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
}

// pattern renders frame n of a test pattern
type pattern func(n int, slots []byte)

func parsePattern(name, level string) (pattern, error) {
	switch name {
	case "level":
		v, err := strconv.ParseUint(level, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid level %q: %v", level, err)
		}
		return func(_ int, slots []byte) {
			for i := range slots {
				slots[i] = byte(v)
			}
		}, nil

	case "chase":
		return func(n int, slots []byte) {
			clear(slots)
			slots[n%len(slots)] = 0xFF
		}, nil

	case "ramp":
		return func(n int, slots []byte) {
			for i := range slots {
				slots[i] = byte(n)
			}
		}, nil

	case "values":
		var values []byte
		for _, field := range strings.Split(level, ",") {
			v, err := strconv.ParseUint(strings.TrimSpace(field), 0, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q: %v", field, err)
			}
			values = append(values, byte(v))
		}
		return func(_ int, slots []byte) {
			clear(slots)
			copy(slots, values)
		}, nil

	default:
		return nil, fmt.Errorf("unknown pattern: %s", name)
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	style, err := sendTiming.outputStyle()
	if err != nil {
		return err
	}
	render, err := parsePattern(sendPattern, sendLevel)
	if err != nil {
		return err
	}

	node, err := OpenNode(sendTiming.override(cmd))
	if err != nil {
		return err
	}
	defer node.Close()
	e := node.Engine

	fmt.Printf("Lumen - DMX Send\n")
	fmt.Printf("Connection: %s\n", node.Info())
	printTiming(e)
	fmt.Printf("Style: %s, pattern: %s\n", style, sendPattern)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := sendTiming.saveEffective(e); err != nil {
		return err
	}

	for i := range e.Ports() {
		e.SetOutputStyle(i, style)
		e.SetPortDirection(i, dmx.DirectionOutput, true)
	}
	slots := make([]byte, e.Slots())
	render(0, slots)
	for i := range e.Ports() {
		e.SetSendDataWithoutStartCode(i, slots)
	}
	e.Sync()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	var deadline <-chan time.Time
	if sendDuration > 0 {
		deadline = time.After(sendDuration)
	}

	frame := time.NewTicker(e.PeriodTime())
	defer frame.Stop()
	stats := time.NewTicker(time.Second)
	defer stats.Stop()

	for n := 1; ; {
		select {
		case <-interrupt:
			fmt.Println()
			printSendStatistics(e)
			return nil
		case <-deadline:
			printSendStatistics(e)
			return nil
		case <-stats.C:
			printSendStatistics(e)
		case <-frame.C:
			if sendPattern == "level" || sendPattern == "values" {
				continue
			}
			render(n, slots)
			n++
			for i := range e.Ports() {
				e.SetSendDataWithoutStartCode(i, slots)
			}
			e.Sync()
		}
	}
}

func printSendStatistics(e *dmx.Engine) {
	timestamp := time.Now().Format("15:04:05")
	for i := range e.Ports() {
		s := e.TotalStatistics(i)
		fmt.Printf("[%s] port %d: %s, sent %d frames\n", timestamp, i, e.TxState(i), s.DMX.Sent)
	}
}
