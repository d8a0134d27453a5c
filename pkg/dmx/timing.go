// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import "time"

// periodGuard is the minimum gap kept after the last slot of a frame
const periodGuard = SlotTime

// Timing is the effective transmit timing shared by all output ports
type Timing struct {
	BreakTime time.Duration
	MabTime   time.Duration
	Period    time.Duration // break to break
}

// FrameTime returns the on-wire duration of a frame carrying slots data slots
func (t Timing) FrameTime(slots int) time.Duration {
	return t.BreakTime + t.MabTime + time.Duration(slots+1)*SlotTime
}

// InterFrameGap returns the idle time between the end of a frame carrying
// slots data slots and the next break
func (t Timing) InterFrameGap(slots int) time.Duration {
	return t.Period - t.FrameTime(slots)
}

// RefreshRate returns the frame rate in Hz
func (t Timing) RefreshRate() uint32 {
	if t.Period <= 0 {
		return 0
	}
	return uint32(time.Second / t.Period)
}

type timingRequest struct {
	breakTime time.Duration
	mabTime   time.Duration
	period    time.Duration // 0 requests the fastest rate
	slots     int
}

// minPeriod is the shortest break-to-break time for the given timing
func minPeriod(breakTime, mabTime time.Duration, slots int) time.Duration {
	t := Timing{BreakTime: breakTime, MabTime: mabTime}
	return max(t.FrameTime(slots)+periodGuard, BreakToBreakTimeMin)
}

// recomputeTiming derives the effective timing from the requested values and
// the longest frame of any port, and publishes it to the interrupt context
func (e *Engine) recomputeTiming() {
	breakTime := e.request.breakTime
	mabTime := e.request.mabTime

	slots := MinSlots
	for i := range e.ports {
		slots = max(slots, e.ports[i].tx.length)
	}

	period := max(e.request.period, minPeriod(breakTime, mabTime, slots))

	counterMax := e.board.CounterMax()
	t := Timing{BreakTime: breakTime, MabTime: mabTime, Period: period}
	if t.InterFrameGap(slots) > counterMax {
		t.BreakTime = e.board.BreakTimeMin
		t.MabTime = e.board.MabTimeMin
		t.Period = max(period, minPeriod(t.BreakTime, t.MabTime, slots))
		if t.InterFrameGap(slots) > counterMax {
			t.Period = t.FrameTime(slots) + counterMax
		}
		e.log.Debug("period clamped to timer width",
			"requested", period, "period", t.Period,
			"break", t.BreakTime, "mab", t.MabTime)
	} else if e.request.period != 0 && period != e.request.period {
		e.log.Debug("period raised to fit frame", "requested", e.request.period, "period", period, "slots", slots)
	}

	e.timing.Store(&t)
}

// Timing returns the effective transmit timing
func (e *Engine) Timing() Timing {
	return *e.timing.Load()
}

// SetBreakTime sets the transmit break length; values below the minimum are
// raised to it
func (e *Engine) SetBreakTime(d time.Duration) {
	e.request.breakTime = max(d, BreakTimeMin)
	e.recomputeTiming()
}

// BreakTime returns the effective break length
func (e *Engine) BreakTime() time.Duration {
	return e.timing.Load().BreakTime
}

// SetMabTime sets the transmit mark-after-break; values below the minimum are
// raised to it
func (e *Engine) SetMabTime(d time.Duration) {
	e.request.mabTime = max(d, MabTimeMin)
	e.recomputeTiming()
}

// MabTime returns the effective mark-after-break
func (e *Engine) MabTime() time.Duration {
	return e.timing.Load().MabTime
}

// SetPeriodTime sets the requested break-to-break time. Zero or values too
// short for the current frame are corrected upward.
func (e *Engine) SetPeriodTime(d time.Duration) {
	e.request.period = max(d, 0)
	e.recomputeTiming()
}

// PeriodTime returns the effective break-to-break time
func (e *Engine) PeriodTime() time.Duration {
	return e.timing.Load().Period
}

// SetRefreshRate sets the requested frame rate in Hz; 0 selects the fastest
// rate the frame allows
func (e *Engine) SetRefreshRate(hz uint32) {
	if hz == 0 {
		e.SetPeriodTime(0)
		return
	}
	e.SetPeriodTime(time.Second / time.Duration(hz))
}

// RefreshRate returns the effective frame rate in Hz
func (e *Engine) RefreshRate() uint32 {
	return e.timing.Load().RefreshRate()
}

// SetSlots sets the number of data slots every port transmits, clamped to
// [MinSlots, MaxSlots]
func (e *Engine) SetSlots(n int) {
	n = min(max(n, MinSlots), MaxSlots)
	e.request.slots = n
	for i := range e.ports {
		p := &e.ports[i]
		p.tx.length = n
		p.tx.slots.Store(int32(n))
	}
	e.recomputeTiming()
}

// Slots returns the slot count last set with SetSlots
func (e *Engine) Slots() int {
	return e.request.slots
}

// RoundDownSlots packs a slot count into one byte. Odd counts lose one slot.
func RoundDownSlots(n int) uint8 {
	n = min(max(n, MinSlots), MaxSlots)
	return uint8(n/2 - 1)
}

// RoundUpSlots unpacks a slot count stored by RoundDownSlots
func RoundUpSlots(b uint8) int {
	return (int(b) + 1) * 2
}
