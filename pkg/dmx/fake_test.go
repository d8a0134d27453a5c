// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"testing"
	"time"
)

// ============================================================
// Fake Hardware
// ============================================================

type fakeLine struct {
	dir    Direction
	rx     bool
	low    bool
	holds  []time.Duration
	dma    [][]byte
	writes [][]byte
}

func (l *fakeLine) SetDirection(dir Direction) { l.dir = dir }
func (l *fakeLine) EnableReceive(on bool)      { l.rx = on }

func (l *fakeLine) DriveLow(hold time.Duration) {
	l.low = true
	l.holds = append(l.holds, hold)
}

func (l *fakeLine) Release()               { l.low = false }
func (l *fakeLine) StartDMA(data []byte)   { l.dma = append(l.dma, append([]byte(nil), data...)) }
func (l *fakeLine) Write(data []byte)      { l.writes = append(l.writes, append([]byte(nil), data...)) }
func (l *fakeLine) TransmitComplete() bool { return true }

// fakeHardware records compares and lets tests deliver interrupts by hand.
// onDelay runs on every Delay so blocking calls can make progress; onArm and
// onDisarm run after a compare changes, standing in for an interrupt that
// fires at that moment.
type fakeHardware struct {
	now      time.Duration
	handlers Interrupts
	lines    []*fakeLine
	armed    map[int]time.Duration
	onDelay  func()
	onArm    func(ch int)
	onDisarm func(ch int)
}

func newFakeHardware(ports int) *fakeHardware {
	h := &fakeHardware{armed: make(map[int]time.Duration)}
	for range ports {
		h.lines = append(h.lines, &fakeLine{})
	}
	return h
}

func (h *fakeHardware) Now() time.Duration { return h.now }

func (h *fakeHardware) Delay(d time.Duration) {
	h.now += d
	if h.onDelay != nil {
		h.onDelay()
	}
}

func (h *fakeHardware) Bind(i Interrupts)  { h.handlers = i }
func (h *fakeHardware) Line(port int) Line { return h.lines[port] }

func (h *fakeHardware) Arm(ch int, after time.Duration) {
	h.armed[ch] = after
	if h.onArm != nil {
		h.onArm(ch)
	}
}

func (h *fakeHardware) Disarm(ch int) {
	delete(h.armed, ch)
	if h.onDisarm != nil {
		h.onDisarm(ch)
	}
}

// fire delivers a pending compare on ch
func (h *fakeHardware) fire(t *testing.T, ch int) {
	t.Helper()
	after, ok := h.armed[ch]
	if !ok {
		t.Fatalf("channel %d not armed", ch)
	}
	delete(h.armed, ch)
	h.now += after
	h.handlers.HandleTimer(ch)
}

func newTestEngine(t *testing.T, ports int) (*Engine, *fakeHardware) {
	t.Helper()
	names := make([]string, ports)
	for i := range names {
		names[i] = "port"
	}
	hw := newFakeHardware(ports)
	e, err := New(GenericBoard(names...), hw)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e, hw
}

// pump advances the framer of port i by one step
func pump(e *Engine, hw *fakeHardware, i int) {
	p := &e.ports[i]
	switch TxState(p.tx.state.Load()) {
	case TxBreak, TxMAB, TxInter:
		if _, ok := hw.armed[p.cfg.TxChannel]; ok {
			delete(hw.armed, p.cfg.TxChannel)
			e.HandleTimer(p.cfg.TxChannel)
		}
	case TxData:
		e.HandleDMAComplete(i)
	}
}
