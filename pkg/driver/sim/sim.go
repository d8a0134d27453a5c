// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim is a discrete-event hardware binding for the dmx engine.
//
// Simulated time only advances inside Delay and Run. Compare channels, DMA
// completions, injected bytes and the one-second tick are events on a single
// queue, so handlers are delivered one at a time and in time order. Lines
// record what the engine drove onto them and can be cross-wired for loopback.
package sim

import (
	"container/heap"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
)

// TickInterval is the period of the statistics tick
const TickInterval = time.Second

type event struct {
	at        time.Duration
	seq       uint64
	fire      func()
	cancelled bool
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// Hardware simulates the timers, DMA and serial lines of a board
type Hardware struct {
	now      time.Duration
	seq      uint64
	queue    eventQueue
	handlers dmx.Interrupts
	lines    []*Line
	armed    map[int]*event
}

// New creates a simulated binding with one line per board port
func New(board dmx.Board) *Hardware {
	h := &Hardware{
		armed: make(map[int]*event),
		lines: make([]*Line, len(board.Ports)),
	}
	for i := range h.lines {
		h.lines[i] = &Line{hw: h, index: i}
	}
	return h
}

// Now returns the simulated time
func (h *Hardware) Now() time.Duration {
	return h.now
}

// Delay advances simulated time by d, firing every event that falls due
func (h *Hardware) Delay(d time.Duration) {
	h.Run(d)
}

// Run advances simulated time by d
func (h *Hardware) Run(d time.Duration) {
	h.RunUntil(h.now + d)
}

// RunUntil advances simulated time to t
func (h *Hardware) RunUntil(t time.Duration) {
	for len(h.queue) > 0 && h.queue[0].at <= t {
		ev := heap.Pop(&h.queue).(*event)
		if ev.cancelled {
			continue
		}
		h.now = max(h.now, ev.at)
		ev.fire()
	}
	h.now = max(h.now, t)
}

// Pending returns the number of live events
func (h *Hardware) Pending() int {
	n := 0
	for _, ev := range h.queue {
		if !ev.cancelled {
			n++
		}
	}
	return n
}

func (h *Hardware) schedule(at time.Duration, fire func()) *event {
	h.seq++
	ev := &event{at: at, seq: h.seq, fire: fire}
	heap.Push(&h.queue, ev)
	return ev
}

// Bind registers the engine and starts the statistics tick
func (h *Hardware) Bind(handlers dmx.Interrupts) {
	h.handlers = handlers
	var tick func()
	tick = func() {
		h.handlers.HandleTick()
		h.schedule(h.now+TickInterval, tick)
	}
	h.schedule(h.now+TickInterval, tick)
}

// Line returns the line of a port as the engine sees it
func (h *Hardware) Line(port int) dmx.Line {
	return h.lines[port]
}

// Port returns the simulated line of a port
func (h *Hardware) Port(port int) *Line {
	return h.lines[port]
}

// Arm schedules a compare on ch, replacing a pending one
func (h *Hardware) Arm(ch int, after time.Duration) {
	h.Disarm(ch)
	var ev *event
	ev = h.schedule(h.now+max(after, 0), func() {
		if h.armed[ch] == ev {
			delete(h.armed, ch)
		}
		h.handlers.HandleTimer(ch)
	})
	h.armed[ch] = ev
}

// Disarm cancels a pending compare on ch
func (h *Hardware) Disarm(ch int) {
	if ev, ok := h.armed[ch]; ok {
		ev.cancelled = true
		delete(h.armed, ch)
	}
}

// Armed reports whether a compare is pending on ch
func (h *Hardware) Armed(ch int) bool {
	_, ok := h.armed[ch]
	return ok
}

// Connect wires the transmit side of port from into the receive side of
// port to. Connect both ways for a half-duplex loopback.
func (h *Hardware) Connect(from, to int) {
	h.lines[from].peer = h.lines[to]
}

// InjectBreak delivers a break to port at the current time
func (h *Hardware) InjectBreak(port int) {
	h.lines[port].receiveBreak()
}

// InjectByte delivers one byte to port at the current time
func (h *Hardware) InjectByte(port int, b byte) {
	h.lines[port].receiveByte(b)
}

// InjectFrame schedules a break followed by data, one byte every spacing.
// It returns the time the last byte lands.
func (h *Hardware) InjectFrame(port int, data []byte, spacing time.Duration) time.Duration {
	l := h.lines[port]
	at := h.now + dmx.BreakTimeTypical
	h.schedule(at, l.receiveBreak)
	at += dmx.DefaultMabTime
	for _, b := range data {
		at += spacing
		h.schedule(at, func() { l.receiveByte(b) })
	}
	return at
}
