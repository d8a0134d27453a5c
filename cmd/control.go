// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/lumen/pkg/dmx"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlTiming timingFlags

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive console for setting output levels",
	Long: `Drive every --port as a DMX output from an interactive terminal UI.

Select a port in the list, then type a level command and press Enter:
  5@255       slot 5 at full
  1-24@128    slots 1 to 24 at half
  *@0         every slot
  blackout    every slot of every port to 0
  full        every slot of every port to 255

Slots are numbered from 1. Tab switches between the port list and the input.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlTiming.register(controlCmd)
}

// levelCommand sets slots [first, last] to value; first and last count from 1
type levelCommand struct {
	first, last int
	value       byte
}

func parseSlot(s string, slots int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q", s)
	}
	if n < 1 || n > slots {
		return 0, fmt.Errorf("slot %d out of range 1-%d", n, slots)
	}
	return n, nil
}

// parseLevelCommand parses "N@V", "A-B@V" and "*@V"
func parseLevelCommand(s string, slots int) (levelCommand, error) {
	target, level, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok {
		return levelCommand{}, fmt.Errorf("expected SLOTS@LEVEL, got %q", s)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(level), 0, 8)
	if err != nil {
		return levelCommand{}, fmt.Errorf("invalid level %q", level)
	}

	c := levelCommand{value: byte(v)}
	switch first, last, isRange := strings.Cut(target, "-"); {
	case strings.TrimSpace(target) == "*":
		c.first, c.last = 1, slots
	case isRange:
		if c.first, err = parseSlot(first, slots); err != nil {
			return levelCommand{}, err
		}
		if c.last, err = parseSlot(last, slots); err != nil {
			return levelCommand{}, err
		}
		if c.last < c.first {
			c.first, c.last = c.last, c.first
		}
	default:
		if c.first, err = parseSlot(target, slots); err != nil {
			return levelCommand{}, err
		}
		c.last = c.first
	}
	return c, nil
}

func (c levelCommand) apply(slots []byte) {
	for i := c.first - 1; i < c.last; i++ {
		slots[i] = c.value
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	style, err := controlTiming.outputStyle()
	if err != nil {
		return err
	}

	node, err := OpenNode(controlTiming.override(cmd))
	if err != nil {
		return err
	}
	defer node.Close()
	e := node.Engine

	if err := controlTiming.saveEffective(e); err != nil {
		return err
	}

	for i := range e.Ports() {
		e.SetOutputStyle(i, style)
		e.SetPortDirection(i, dmx.DirectionOutput, true)
	}

	p := tea.NewProgram(initialControlModel(node), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
