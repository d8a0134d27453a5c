// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TxState is the transmit framer state of a port
type TxState int32

// Transmit framer states
const (
	TxIdle TxState = iota
	TxBreak
	TxMAB
	TxData
	TxInter
)

// txClaimed marks an idle framer whose active buffer the main loop is
// writing. Neither the framer nor StartOutput leaves it.
const txClaimed = TxInter + 1

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "IDLE"
	case TxBreak:
		return "BREAK"
	case TxMAB:
		return "MAB"
	case TxData:
		return "DATA"
	case TxInter:
		return "INTER"
	case txClaimed:
		return "CLAIMED"
	default:
		return fmt.Sprintf("TxState(%d)", int32(s))
	}
}

// transmitter is the double-buffered framer of one port. The main loop stages
// into pending; the framer copies pending into active at the start of a
// break while commit is set, and clears commit afterwards. The main loop only
// touches pending while commit is clear, and only touches active while the
// framer is idle.
type transmitter struct {
	state  atomic.Int32 // TxState
	style  atomic.Int32 // OutputStyle
	stop   atomic.Bool
	commit atomic.Bool
	slots  atomic.Int32 // data slots per frame

	frameStart time.Duration // framer only
	active     [MaxFrameSize]byte

	pending    [MaxFrameSize]byte
	pendingLen int  // main loop, read by the framer while commit is set
	staged     bool // main loop: pending holds data not yet synced
	length     int  // main loop: slot count used for the timing
}

// applyPending copies the staged frame into the active buffer
func (p *port) applyPending() {
	n := p.tx.pendingLen
	if n == 0 {
		return
	}
	copy(p.tx.active[:n], p.tx.pending[:n])
	p.tx.slots.Store(int32(n - 1))
}

// startBreak begins a frame: it takes any committed data and drives the break
func (e *Engine) startBreak(p *port) {
	if p.tx.commit.Load() {
		p.applyPending()
		p.tx.commit.Store(false)
	}
	t := e.timing.Load()
	p.tx.frameStart = e.hw.Now()
	p.tx.state.Store(int32(TxBreak))
	p.line.DriveLow(t.BreakTime)
	e.hw.Arm(p.cfg.TxChannel, t.BreakTime)
}

func (e *Engine) handleTxTimer(p *port) {
	switch TxState(p.tx.state.Load()) {
	case TxBreak:
		p.line.Release()
		p.tx.state.Store(int32(TxMAB))
		e.hw.Arm(p.cfg.TxChannel, e.timing.Load().MabTime)
	case TxMAB:
		p.tx.state.Store(int32(TxData))
		n := int(p.tx.slots.Load()) + 1
		p.line.StartDMA(p.tx.active[:n])
	case TxInter:
		if p.tx.stop.Load() {
			p.tx.state.Store(int32(TxIdle))
			return
		}
		if OutputStyle(p.tx.style.Load()) == StyleDelta && !p.tx.commit.Load() {
			e.idleDelta(p)
			return
		}
		e.startBreak(p)
	}
}

// HandleDMAComplete is the end-of-burst interrupt of a port's transmit DMA
func (e *Engine) HandleDMAComplete(i int) {
	p := e.port(i)
	if TxState(p.tx.state.Load()) != TxData {
		return
	}
	p.stats.dmxSent.Add(1)

	if p.tx.stop.Load() {
		p.tx.state.Store(int32(TxIdle))
		return
	}

	now := e.hw.Now()
	if OutputStyle(p.tx.style.Load()) == StyleContinuous {
		next := max(p.tx.frameStart+e.timing.Load().Period-now, 0)
		p.tx.state.Store(int32(TxInter))
		e.hw.Arm(p.cfg.TxChannel, next)
		return
	}

	// Delta: the next frame only goes out if new data was committed, and
	// never closer than the minimum break-to-break time.
	if !p.tx.commit.Load() {
		e.idleDelta(p)
		return
	}
	next := max(p.tx.frameStart+BreakToBreakTimeMin-now, 0)
	p.tx.state.Store(int32(TxInter))
	e.hw.Arm(p.cfg.TxChannel, next)
}

// idleDelta parks a delta framer that found nothing committed. A commit can
// land between that check and the store, after Sync saw the framer busy and
// left the frame to it, so the flag is checked again once idle. Whoever wins
// the move out of IDLE, this handler or StartOutput, sends the frame.
func (e *Engine) idleDelta(p *port) {
	p.tx.state.Store(int32(TxIdle))
	if !p.tx.commit.Load() || !p.tx.state.CompareAndSwap(int32(TxIdle), int32(TxInter)) {
		return
	}
	next := max(p.tx.frameStart+BreakToBreakTimeMin-e.hw.Now(), 0)
	e.hw.Arm(p.cfg.TxChannel, next)
}

// StartOutput starts the framer on an idle output port. A running port is
// left alone.
func (e *Engine) StartOutput(i int) {
	p := e.port(i)
	if Direction(p.dir.Load()) != DirectionOutput {
		return
	}
	if !p.tx.state.CompareAndSwap(int32(TxIdle), int32(TxBreak)) {
		return
	}
	e.startBreak(p)
}

// stopOutput requests a running framer to stop and waits until it is idle.
// The frame in flight completes first.
func (e *Engine) stopOutput(p *port) {
	if TxState(p.tx.state.Load()) == TxIdle {
		return
	}
	p.tx.stop.Store(true)
	for TxState(p.tx.state.Load()) != TxIdle {
		e.hw.Delay(SlotTime)
	}
	p.tx.stop.Store(false)
}

// sendsOnSync reports whether a port starts a frame for every Sync
func (p *port) sendsOnSync() bool {
	return Direction(p.dir.Load()) == DirectionOutput && p.enabled.Load() &&
		OutputStyle(p.tx.style.Load()) == StyleDelta
}

// commitPending hands the staged frame to the framer. An idle framer is
// claimed first so the copy cannot race a restart; the main loop then
// applies the frame itself and reports true.
func (e *Engine) commitPending(p *port) bool {
	p.tx.commit.Store(true)
	return e.applyIdle(p)
}

func (e *Engine) applyIdle(p *port) bool {
	if !p.tx.state.CompareAndSwap(int32(TxIdle), int32(txClaimed)) {
		return false
	}
	if p.tx.commit.Load() {
		p.applyPending()
		p.tx.commit.Store(false)
	}
	p.tx.state.Store(int32(TxIdle))
	return true
}

// waitCommitted blocks until the framer has taken the last committed frame.
// A committed frame on an idle delta port is sent rather than applied.
func (e *Engine) waitCommitted(p *port) {
	for p.tx.commit.Load() {
		if TxState(p.tx.state.Load()) == TxIdle {
			if p.sendsOnSync() {
				e.StartOutput(p.index)
			} else {
				e.applyIdle(p)
			}
			continue
		}
		e.hw.Delay(SlotTime)
	}
}

// SetSendData stages a frame for a port. data starts with the start code and
// carries up to MaxSlots slots. The frame goes out after the next Sync.
func (e *Engine) SetSendData(i int, data []byte) {
	p := e.port(i)
	if len(data) < MinSlots+1 || len(data) > MaxFrameSize {
		panic(fmt.Sprintf("dmx: frame length %d out of range [%d, %d]", len(data), MinSlots+1, MaxFrameSize))
	}
	e.waitCommitted(p)
	copy(p.tx.pending[:], data)
	e.stage(p, len(data))
}

// SetSendDataWithoutStartCode stages slots behind the null start code
func (e *Engine) SetSendDataWithoutStartCode(i int, slots []byte) {
	p := e.port(i)
	if len(slots) < MinSlots || len(slots) > MaxSlots {
		panic(fmt.Sprintf("dmx: slot count %d out of range [%d, %d]", len(slots), MinSlots, MaxSlots))
	}
	e.waitCommitted(p)
	p.tx.pending[0] = StartCode
	copy(p.tx.pending[1:], slots)
	e.stage(p, len(slots)+1)
}

func (e *Engine) stage(p *port, n int) {
	p.tx.pendingLen = n
	p.tx.staged = true
	if p.tx.length != n-1 {
		p.tx.length = n - 1
		e.recomputeTiming()
	}
}

// Sync hands every staged frame to its framer. Idle delta-style ports with
// data enabled start a frame immediately; running ports switch buffers at
// their next break.
func (e *Engine) Sync() {
	for i := range e.ports {
		p := &e.ports[i]
		if !p.tx.staged {
			continue
		}
		p.tx.staged = false
		if p.sendsOnSync() {
			// The frame is taken at the next break, ours or the framer's
			p.tx.commit.Store(true)
			e.StartOutput(i)
			continue
		}
		e.commitPending(p)
	}
}

// OutputStyle returns the output style of a port
func (e *Engine) OutputStyle(i int) OutputStyle {
	return OutputStyle(e.port(i).tx.style.Load())
}

// SetOutputStyle switches a port between delta and continuous output.
// Running continuous ports of the same timer group are drained and restarted
// together so they stay in phase.
func (e *Engine) SetOutputStyle(i int, style OutputStyle) {
	p := e.port(i)
	if OutputStyle(p.tx.style.Load()) == style {
		return
	}

	var restart []*port
	for j := range e.ports {
		q := &e.ports[j]
		if q.cfg.Group != p.cfg.Group {
			continue
		}
		running := TxState(q.tx.state.Load()) != TxIdle
		if q != p && (!running || OutputStyle(q.tx.style.Load()) != StyleContinuous) {
			continue
		}
		e.stopOutput(q)
		if q != p {
			restart = append(restart, q)
		}
	}

	p.tx.style.Store(int32(style))
	if style == StyleContinuous && Direction(p.dir.Load()) == DirectionOutput && p.enabled.Load() {
		restart = append(restart, p)
	}
	for _, q := range restart {
		e.StartOutput(q.index)
	}

	e.log.Debug("output style changed", "port", i, "style", style, "group", p.cfg.Group, "restarted", len(restart))
}

// Blackout sets every slot of every output port to zero and syncs
func (e *Engine) Blackout() {
	e.fill(0x00)
}

// FullOn sets every slot of every output port to full and syncs
func (e *Engine) FullOn() {
	e.fill(0xFF)
}

func (e *Engine) fill(v byte) {
	var slots [MaxSlots]byte
	for i := range slots {
		slots[i] = v
	}
	for i := range e.ports {
		p := &e.ports[i]
		if Direction(p.dir.Load()) != DirectionOutput {
			continue
		}
		e.SetSendDataWithoutStartCode(i, slots[:p.tx.length])
	}
	e.Sync()
}
