// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/lumen/pkg/rdm"
)

// RxState is the receive state machine state of a port
type RxState int32

// Receive states
const (
	RxIdle RxState = iota
	RxBreak
	RxDMXData
	RxRDMData
	RxChecksumH
	RxChecksumL
	RxRDMDisc
)

func (s RxState) String() string {
	switch s {
	case RxIdle:
		return "IDLE"
	case RxBreak:
		return "BREAK"
	case RxDMXData:
		return "DMXDATA"
	case RxRDMData:
		return "RDMDATA"
	case RxChecksumH:
		return "CHECKSUMH"
	case RxChecksumL:
		return "CHECKSUML"
	case RxRDMDisc:
		return "RDMDISC"
	default:
		return fmt.Sprintf("RxState(%d)", int32(s))
	}
}

// DMXFrame is a received DMX512 frame
type DMXFrame struct {
	Data  [MaxFrameSize]byte // start code followed by the slots
	Slots int                // number of data slots in Data[1:]
}

// StartCode returns the start code of the frame
func (f *DMXFrame) StartCode() byte {
	return f.Data[0]
}

// SlotData returns the received slots without the start code
func (f *DMXFrame) SlotData() []byte {
	return f.Data[1 : 1+f.Slots]
}

// Positions of the RDM header bytes checked while receiving
const (
	rdmSubStartIndex = 1
	rdmLengthIndex   = 2
)

type rdmFrame struct {
	data      [rdm.FrameMaxSize]byte
	length    int
	discovery bool
}

type receiver struct {
	state atomic.Int32 // RxState

	// interrupt context only
	dmx      *DMXFrame
	rdm      *rdmFrame
	index    int
	lastByte time.Duration

	dmxSlot    Slot[DMXFrame]
	rdmSlot    Slot[rdmFrame]
	dmxScratch DMXFrame // parse target while the consumer holds dmxSlot
	rdmScratch rdmFrame

	// main loop only
	dmxFront DMXFrame
	rdmFront [rdm.FrameMaxSize]byte
}

// resetReceiver drops any frame in progress and waits for the next break
func (e *Engine) resetReceiver(p *port) {
	e.hw.Disarm(p.cfg.RxChannel)
	p.rx.state.Store(int32(RxIdle))
}

// settleRx undoes a handler's work when the port stopped receiving while
// it ran. The main loop clears enabled before it resets the receiver, so
// either the handler sees the flag here or its changes precede the reset.
func (e *Engine) settleRx(p *port) {
	if !p.receiving() {
		e.resetReceiver(p)
	}
}

func (e *Engine) armRx(p *port, d time.Duration) {
	e.hw.Arm(p.cfg.RxChannel, d)
}

// HandleFramingError is the break-detect interrupt of a port. Any DMX or
// discovery frame in progress is complete; the next byte is a start code.
func (e *Engine) HandleFramingError(i int) {
	p := e.port(i)
	if !p.receiving() {
		return
	}
	defer e.settleRx(p)
	switch RxState(p.rx.state.Load()) {
	case RxDMXData:
		e.completeDMX(p)
	case RxRDMDisc:
		e.completeRDM(p)
	}
	e.hw.Disarm(p.cfg.RxChannel)
	p.rx.state.Store(int32(RxBreak))
}

// HandleByte is the receive interrupt of a port
func (e *Engine) HandleByte(i int, b byte) {
	p := e.port(i)
	if !p.receiving() {
		return
	}
	defer e.settleRx(p)
	now := e.hw.Now()

	switch RxState(p.rx.state.Load()) {
	case RxIdle:
		return

	case RxBreak:
		e.classify(p, b, now)

	case RxDMXData:
		if p.rx.index > MaxSlots {
			e.hw.Disarm(p.cfg.RxChannel)
			p.rx.state.Store(int32(RxIdle))
			return
		}
		p.rx.dmx.Data[p.rx.index] = b
		p.rx.index++
		delta := now - p.rx.lastByte
		p.rx.lastByte = now
		e.armRx(p, delta+e.rxGuard)

	case RxRDMData:
		r := p.rx.rdm
		r.data[p.rx.index] = b
		p.rx.index++
		switch {
		case p.rx.index == rdmSubStartIndex+1 && b != rdm.SubStartCode:
			p.rx.state.Store(int32(RxIdle))
		case p.rx.index == rdmLengthIndex+1 && b < rdm.MessageMinLength:
			p.rx.state.Store(int32(RxIdle))
		case p.rx.index > rdmLengthIndex && p.rx.index == int(r.data[rdmLengthIndex]):
			p.rx.state.Store(int32(RxChecksumH))
		}

	case RxChecksumH:
		p.rx.rdm.data[p.rx.index] = b
		p.rx.index++
		p.rx.state.Store(int32(RxChecksumL))

	case RxChecksumL:
		p.rx.rdm.data[p.rx.index] = b
		p.rx.index++
		e.completeRDM(p)
		p.rx.state.Store(int32(RxIdle))

	case RxRDMDisc:
		p.rx.rdm.data[p.rx.index] = b
		p.rx.index++
		if p.rx.index == rdm.DiscoveryResponseMaxSize {
			e.hw.Disarm(p.cfg.RxChannel)
			e.completeRDM(p)
			p.rx.state.Store(int32(RxIdle))
			return
		}
		delta := now - p.rx.lastByte
		p.rx.lastByte = now
		e.armRx(p, delta+e.rxGuard)
	}
}

// classify handles the first byte after a break
func (e *Engine) classify(p *port, b byte, now time.Duration) {
	switch b {
	case StartCode:
		f := p.rx.dmxSlot.Begin()
		if f == nil {
			f = &p.rx.dmxScratch
		}
		f.Data[0] = b
		p.rx.dmx = f
		p.rx.index = 1
		p.rx.lastByte = now
		p.rx.state.Store(int32(RxDMXData))
		e.armRx(p, rxFirstSlotWindow+e.rxGuard)

	case rdm.StartCode, rdm.DiscoveryPreamble:
		r := p.rx.rdmSlot.Begin()
		if r == nil {
			r = &p.rx.rdmScratch
		}
		r.data[0] = b
		r.discovery = b == rdm.DiscoveryPreamble
		p.rx.rdm = r
		p.rx.index = 1
		p.rx.lastByte = now
		if r.discovery {
			p.rx.state.Store(int32(RxRDMDisc))
			e.armRx(p, rxFirstSlotWindow+e.rxGuard)
		} else {
			p.rx.state.Store(int32(RxRDMData))
		}

	default:
		p.rx.state.Store(int32(RxIdle))
	}
}

func (e *Engine) handleRxTimeout(p *port) {
	if !p.receiving() {
		return
	}
	switch RxState(p.rx.state.Load()) {
	case RxDMXData:
		e.completeDMX(p)
		p.rx.state.Store(int32(RxIdle))
	case RxRDMDisc:
		e.completeRDM(p)
		p.rx.state.Store(int32(RxIdle))
	}
}

// completeDMX publishes the frame in progress. Frames parsed into scratch
// storage are counted but not published.
func (e *Engine) completeDMX(p *port) {
	f := p.rx.dmx
	f.Slots = p.rx.index - 1
	if f.Slots < 1 {
		return
	}
	if f != &p.rx.dmxScratch {
		p.rx.dmxSlot.Commit()
	}
	p.stats.dmxReceived.Add(1)
}

func (e *Engine) completeRDM(p *port) {
	r := p.rx.rdm
	r.length = p.rx.index
	if r != &p.rx.rdmScratch {
		p.rx.rdmSlot.Commit()
	}
	e.lastRxEnd.Store(int64(e.hw.Now()))
}

// DMXAvailable returns the latest received frame of a port and frees the
// receive slot, or nil if no new frame arrived. The frame stays valid until
// the next call for the same port.
func (e *Engine) DMXAvailable(i int) *DMXFrame {
	p := e.port(i)
	f := p.rx.dmxSlot.Peek()
	if f == nil {
		return nil
	}
	n := f.Slots + 1
	p.rx.dmxFront.Slots = f.Slots
	copy(p.rx.dmxFront.Data[:n], f.Data[:n])
	p.rx.dmxSlot.Clear()
	return &p.rx.dmxFront
}
