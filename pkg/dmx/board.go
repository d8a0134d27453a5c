// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"fmt"
	"time"
)

// Direction is the electrical direction of a port's line driver
type Direction int32

// Direction values
const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "INPUT"
	case DirectionOutput:
		return "OUTPUT"
	default:
		return fmt.Sprintf("Direction(%d)", int32(d))
	}
}

// OutputStyle selects when a port transmits
type OutputStyle int32

// Output style values
const (
	// StyleDelta sends one frame per explicit update.
	StyleDelta OutputStyle = iota
	// StyleContinuous resends the current frame every period.
	StyleContinuous
)

func (s OutputStyle) String() string {
	switch s {
	case StyleDelta:
		return "DELTA"
	case StyleContinuous:
		return "CONTINUOUS"
	default:
		return fmt.Sprintf("OutputStyle(%d)", int32(s))
	}
}

// PortConfig binds one logical port to its peripherals
type PortConfig struct {
	Name         string // serial peripheral, e.g. "USART2" or "/dev/ttyUSB0"
	DirectionPin int
	Group        int // ports in a group share one timer counter
	TxChannel    int // compare channel driving the transmit framer
	RxChannel    int // compare channel used for the receive byte timeout
	DMAChannel   int
}

// Board is the port configuration table of a node
type Board struct {
	Name  string
	Ports []PortConfig

	// CounterBits is the width of the timer counters (16 or 32).
	CounterBits uint

	// Minimums applied when a requested period does not fit the counter.
	BreakTimeMin time.Duration
	MabTimeMin   time.Duration
}

// GenericBoard returns a board with one port per name, two compare channels
// per port and two ports per timer group
func GenericBoard(names ...string) Board {
	b := Board{
		Name:         "generic",
		Ports:        make([]PortConfig, len(names)),
		CounterBits:  32,
		BreakTimeMin: BreakTimeMin,
		MabTimeMin:   MabTimeMin,
	}
	for i, name := range names {
		b.Ports[i] = PortConfig{
			Name:         name,
			DirectionPin: i,
			Group:        i / 2,
			TxChannel:    2 * i,
			RxChannel:    2*i + 1,
			DMAChannel:   i,
		}
	}
	return b
}

// CounterMax returns the longest delay a single compare can schedule
func (b Board) CounterMax() time.Duration {
	if b.CounterBits == 0 || b.CounterBits >= 32 {
		return time.Duration(1<<32-1) * time.Microsecond
	}
	return time.Duration(1<<b.CounterBits-1) * time.Microsecond
}

// Validate checks that the table is usable by an engine
func (b Board) Validate() error {
	if len(b.Ports) == 0 {
		return ErrNoPorts
	}
	if b.BreakTimeMin < BreakTimeMin {
		return fmt.Errorf("board %s: break minimum %v below %v", b.Name, b.BreakTimeMin, BreakTimeMin)
	}
	if b.MabTimeMin < MabTimeMin {
		return fmt.Errorf("board %s: MAB minimum %v below %v", b.Name, b.MabTimeMin, MabTimeMin)
	}

	channels := make(map[int]int)
	dma := make(map[int]int)
	for i, p := range b.Ports {
		if p.TxChannel < 0 || p.RxChannel < 0 || p.DMAChannel < 0 {
			return fmt.Errorf("board %s: port %d has a negative channel", b.Name, i)
		}
		for _, ch := range []int{p.TxChannel, p.RxChannel} {
			if owner, ok := channels[ch]; ok {
				return fmt.Errorf("board %s: timer channel %d shared by ports %d and %d", b.Name, ch, owner, i)
			}
			channels[ch] = i
		}
		if owner, ok := dma[p.DMAChannel]; ok {
			return fmt.Errorf("board %s: DMA channel %d shared by ports %d and %d", b.Name, p.DMAChannel, owner, i)
		}
		dma[p.DMAChannel] = i
	}
	return nil
}
