// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"fmt"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
)

// EventKind classifies a recorded line event
type EventKind int

// Recorded line events
const (
	EventDirection EventKind = iota
	EventBreak
	EventMark
	EventDMA
	EventWrite
)

func (k EventKind) String() string {
	switch k {
	case EventDirection:
		return "DIRECTION"
	case EventBreak:
		return "BREAK"
	case EventMark:
		return "MARK"
	case EventDMA:
		return "DMA"
	case EventWrite:
		return "WRITE"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// LineEvent is one recorded action on a line
type LineEvent struct {
	At        time.Duration
	Kind      EventKind
	Direction dmx.Direction
	Data      []byte
}

// Line is a simulated serial peripheral with its line driver
type Line struct {
	hw    *Hardware
	index int
	peer  *Line

	dir       dmx.Direction
	rxEnabled bool
	low       bool
	busyUntil time.Duration

	Events []LineEvent
}

func (l *Line) record(ev LineEvent) {
	ev.At = l.hw.now
	l.Events = append(l.Events, ev)
}

// SetDirection drives the simulated direction pin
func (l *Line) SetDirection(dir dmx.Direction) {
	l.dir = dir
	l.record(LineEvent{Kind: EventDirection, Direction: dir})
}

// Direction returns the direction pin state
func (l *Line) Direction() dmx.Direction {
	return l.dir
}

// EnableReceive masks or unmasks delivery of received bytes and breaks
func (l *Line) EnableReceive(on bool) {
	l.rxEnabled = on
}

// ReceiveEnabled reports whether received events are delivered
func (l *Line) ReceiveEnabled() bool {
	return l.rxEnabled
}

// DriveLow starts a break
func (l *Line) DriveLow(time.Duration) {
	l.low = true
	l.record(LineEvent{Kind: EventBreak})
}

// Release ends a break. A connected peer sees the break when it ends.
func (l *Line) Release() {
	if !l.low {
		return
	}
	l.low = false
	l.record(LineEvent{Kind: EventMark})
	if p := l.transmitPeer(); p != nil {
		p.receiveBreak()
	}
}

// Low reports whether the line is held in break
func (l *Line) Low() bool {
	return l.low
}

// StartDMA shifts data out and reports completion after len(data) slots
func (l *Line) StartDMA(data []byte) {
	l.record(LineEvent{Kind: EventDMA, Data: append([]byte(nil), data...)})
	end := l.shift(data)
	l.hw.schedule(end, func() {
		l.hw.handlers.HandleDMAComplete(l.index)
	})
}

// Write shifts data out without a completion event
func (l *Line) Write(data []byte) {
	l.record(LineEvent{Kind: EventWrite, Data: append([]byte(nil), data...)})
	l.shift(data)
}

// TransmitComplete reports whether the last byte has left the line
func (l *Line) TransmitComplete() bool {
	return l.hw.now >= l.busyUntil
}

func (l *Line) shift(data []byte) time.Duration {
	start := max(l.hw.now, l.busyUntil)
	peer := l.transmitPeer()
	for i, b := range data {
		at := start + time.Duration(i+1)*dmx.SlotTime
		if peer != nil {
			l.hw.schedule(at, func() { peer.receiveByte(b) })
		}
	}
	l.busyUntil = start + time.Duration(len(data))*dmx.SlotTime
	return l.busyUntil
}

// transmitPeer returns the connected receiver while the driver is enabled
func (l *Line) transmitPeer() *Line {
	if l.peer == nil || l.dir != dmx.DirectionOutput {
		return nil
	}
	return l.peer
}

func (l *Line) receiveBreak() {
	if l.rxEnabled {
		l.hw.handlers.HandleFramingError(l.index)
	}
}

func (l *Line) receiveByte(b byte) {
	if l.rxEnabled {
		l.hw.handlers.HandleByte(l.index, b)
	}
}

// Frames returns the data of every DMA burst and polled write, in order
func (l *Line) Frames() [][]byte {
	var frames [][]byte
	for _, ev := range l.Events {
		if ev.Kind == EventDMA || ev.Kind == EventWrite {
			frames = append(frames, ev.Data)
		}
	}
	return frames
}

// Breaks returns the start time of every break
func (l *Line) Breaks() []time.Duration {
	var at []time.Duration
	for _, ev := range l.Events {
		if ev.Kind == EventBreak {
			at = append(at, ev.At)
		}
	}
	return at
}

// Reset drops the recorded events
func (l *Line) Reset() {
	l.Events = nil
}
