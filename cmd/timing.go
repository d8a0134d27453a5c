// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/params"
	"github.com/spf13/cobra"
)

// timingFlags are the transmit timing overrides shared by output commands
type timingFlags struct {
	breakTime   time.Duration
	mabTime     time.Duration
	refreshRate uint32
	slots       int
	style       string
	save        bool
}

func (f *timingFlags) register(cmd *cobra.Command) {
	def := params.Default()
	cmd.Flags().DurationVar(&f.breakTime, "break", def.BreakTime, "Break length")
	cmd.Flags().DurationVar(&f.mabTime, "mab", def.MabTime, "Mark-after-break length")
	cmd.Flags().Uint32Var(&f.refreshRate, "refresh", def.RefreshRate, "Refresh rate in Hz (0 for fastest)")
	cmd.Flags().IntVar(&f.slots, "slots", def.Slots, "Data slots per frame")
	cmd.Flags().StringVar(&f.style, "style", "continuous", "Output style (continuous or delta)")
	cmd.Flags().BoolVar(&f.save, "save", false, "Write the effective timing to the parameter file")
}

// override returns a function applying only the flags set on the command line
func (f *timingFlags) override(cmd *cobra.Command) func(*params.Params) {
	return func(p *params.Params) {
		if cmd.Flags().Changed("break") {
			p.BreakTime = f.breakTime
		}
		if cmd.Flags().Changed("mab") {
			p.MabTime = f.mabTime
		}
		if cmd.Flags().Changed("refresh") {
			p.RefreshRate = f.refreshRate
		}
		if cmd.Flags().Changed("slots") {
			p.Slots = f.slots
		}
	}
}

func (f *timingFlags) outputStyle() (dmx.OutputStyle, error) {
	switch f.style {
	case "continuous":
		return dmx.StyleContinuous, nil
	case "delta":
		return dmx.StyleDelta, nil
	default:
		return 0, fmt.Errorf("unknown output style: %s (use continuous or delta)", f.style)
	}
}

// saveEffective stores the timing the engine settled on
func (f *timingFlags) saveEffective(e *dmx.Engine) error {
	if !f.save {
		return nil
	}
	p := params.FromEngine(e)
	if err := p.Save(configPath); err != nil {
		return err
	}
	fmt.Printf("Saved %s to %s\n", p, configPath)
	return nil
}

func printTiming(e *dmx.Engine) {
	t := e.Timing()
	fmt.Printf("Timing: break %v, MAB %v, period %v (%d Hz), %d slots\n",
		t.BreakTime, t.MabTime, t.Period, t.RefreshRate(), e.Slots())
}
