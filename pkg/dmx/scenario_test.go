// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/driver/sim"
	"github.com/Thermoquad/lumen/pkg/rdm"
)

func newSimEngine(t *testing.T, ports ...string) (*dmx.Engine, *sim.Hardware) {
	t.Helper()
	board := dmx.GenericBoard(ports...)
	hw := sim.New(board)
	e, err := dmx.New(board, hw)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e, hw
}

// ============================================================
// Transmit Scenarios
// ============================================================

func TestScenario_Continuous40Hz(t *testing.T) {
	e, hw := newSimEngine(t, "out")

	e.SetBreakTime(176 * time.Microsecond)
	e.SetMabTime(12 * time.Microsecond)
	e.SetSlots(512)
	e.SetRefreshRate(40)
	e.SetOutputStyle(0, dmx.StyleContinuous)
	e.SetPortDirection(0, dmx.DirectionOutput, true)

	hw.Run(time.Second)

	sent := e.TotalStatistics(0).DMX.Sent
	if sent < 39 || sent > 41 {
		t.Errorf("Sent = %d in one second, want about 40", sent)
	}

	breaks := hw.Port(0).Breaks()
	for i := 1; i < len(breaks); i++ {
		if gap := breaks[i] - breaks[i-1]; gap != 25*time.Millisecond {
			t.Fatalf("break %d after %v, want 25ms", i, gap)
		}
	}
	for i, frame := range hw.Port(0).Frames() {
		if len(frame) != dmx.MaxFrameSize || frame[0] != dmx.StartCode {
			t.Fatalf("frame %d: %d bytes, start code 0x%02X", i, len(frame), frame[0])
		}
	}
}

func TestScenario_BreakAndMabOnWire(t *testing.T) {
	e, hw := newSimEngine(t, "out")
	e.SetMabTime(12 * time.Microsecond)
	e.SetOutputStyle(0, dmx.StyleContinuous)
	e.SetPortDirection(0, dmx.DirectionOutput, true)
	hw.Run(time.Millisecond)

	var brk, mark, data time.Duration
	for _, ev := range hw.Port(0).Events {
		switch ev.Kind {
		case sim.EventBreak:
			brk = ev.At
		case sim.EventMark:
			mark = ev.At
		case sim.EventDMA:
			data = ev.At
		}
	}
	if mark-brk != dmx.BreakTimeTypical {
		t.Errorf("break lasted %v, want %v", mark-brk, dmx.BreakTimeTypical)
	}
	if data-mark != 12*time.Microsecond {
		t.Errorf("MAB lasted %v, want 12µs", data-mark)
	}
}

func TestScenario_InputToOutputDelta(t *testing.T) {
	e, hw := newSimEngine(t, "port")

	e.SetPortDirection(0, dmx.DirectionInput, true)
	e.SetPortDirection(0, dmx.DirectionOutput, true)
	hw.Run(100 * time.Millisecond)

	if e.TxState(0) != dmx.TxIdle {
		t.Errorf("state = %v, want IDLE", e.TxState(0))
	}
	if hw.Port(0).ReceiveEnabled() {
		t.Error("receiver still enabled")
	}
	if hw.Port(0).Direction() != dmx.DirectionOutput {
		t.Error("direction pin not switched")
	}
	if n := len(hw.Port(0).Frames()); n != 0 {
		t.Errorf("%d frames sent without data", n)
	}
}

func TestScenario_DeltaUpdates(t *testing.T) {
	e, hw := newSimEngine(t, "out")
	e.SetPortDirection(0, dmx.DirectionOutput, true)

	for v := byte(1); v <= 3; v++ {
		e.SetSendDataWithoutStartCode(0, []byte{v, v, v})
		e.Sync()
		hw.Run(10 * time.Millisecond)
	}

	frames := hw.Port(0).Frames()
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	for i, frame := range frames {
		v := byte(i + 1)
		if !bytes.Equal(frame, []byte{dmx.StartCode, v, v, v}) {
			t.Errorf("frame %d = %v", i, frame)
		}
	}
	if e.TxState(0) != dmx.TxIdle {
		t.Errorf("state = %v, want IDLE", e.TxState(0))
	}
}

func TestScenario_DeltaBackToBackKeepsSpacing(t *testing.T) {
	e, hw := newSimEngine(t, "out")
	e.SetPortDirection(0, dmx.DirectionOutput, true)

	e.SetSendDataWithoutStartCode(0, []byte{1, 1})
	e.Sync()
	e.SetSendDataWithoutStartCode(0, []byte{2, 2})
	e.Sync()
	hw.Run(10 * time.Millisecond)

	breaks := hw.Port(0).Breaks()
	if len(breaks) != 2 {
		t.Fatalf("breaks = %d, want 2", len(breaks))
	}
	if gap := breaks[1] - breaks[0]; gap < dmx.BreakToBreakTimeMin {
		t.Errorf("break to break %v below %v", gap, dmx.BreakToBreakTimeMin)
	}
	if frames := hw.Port(0).Frames(); frames[1][1] != 2 {
		t.Errorf("second frame = %v", frames[1])
	}
}

// ============================================================
// Loopback Scenarios
// ============================================================

func TestScenario_Loopback(t *testing.T) {
	e, hw := newSimEngine(t, "out", "in")
	hw.Connect(0, 1)

	slots := make([]byte, 64)
	for i := range slots {
		slots[i] = byte(i * 3)
	}
	e.SetSendDataWithoutStartCode(0, slots)
	e.Sync()
	e.SetPortDirection(1, dmx.DirectionInput, true)
	e.SetOutputStyle(0, dmx.StyleContinuous)
	e.SetPortDirection(0, dmx.DirectionOutput, true)

	hw.Run(2*time.Second + time.Millisecond)

	frame := e.DMXAvailable(1)
	if frame == nil {
		t.Fatal("no frame received")
	}
	if !bytes.Equal(frame.SlotData(), slots) {
		t.Errorf("received %v, want %v", frame.SlotData(), slots)
	}

	rx := e.TotalStatistics(1).DMX.Received
	tx := e.TotalStatistics(0).DMX.Sent
	if rx == 0 || tx-rx > 1 {
		t.Errorf("sent %d, received %d", tx, rx)
	}
	if ups := e.DMXUpdatesPerSecond(1); ups < 39 || ups > 41 {
		t.Errorf("updates/s = %d, want about 40", ups)
	}
	if e.Uptime() != 2 {
		t.Errorf("Uptime = %d, want 2", e.Uptime())
	}
}

func TestScenario_InjectedFrame(t *testing.T) {
	e, hw := newSimEngine(t, "in")
	e.SetPortDirection(0, dmx.DirectionInput, true)

	data := []byte{dmx.StartCode, 10, 20, 30}
	hw.InjectFrame(0, data, dmx.SlotTime)
	hw.Run(time.Millisecond)

	frame := e.DMXAvailable(0)
	if frame == nil || !bytes.Equal(frame.SlotData(), data[1:]) {
		t.Fatalf("unexpected frame %+v", frame)
	}
	if e.RxState(0) != dmx.RxIdle {
		t.Errorf("state = %v, want IDLE after timeout", e.RxState(0))
	}
}

// ============================================================
// RDM Scenarios
// ============================================================

func TestScenario_RDMRequestAndDiscoveryResponse(t *testing.T) {
	e, hw := newSimEngine(t, "controller", "responder")
	hw.Connect(0, 1)
	hw.Connect(1, 0)
	e.SetPortDirection(1, dmx.DirectionInput, true)

	controller := rdm.NewUID(0x7FF0, 1)
	responder := rdm.NewUID(0x4C55, 0xCAFE)
	req, err := rdm.Encode(rdm.Header{
		Destination:  rdm.BroadcastUID,
		Source:       controller,
		CommandClass: rdm.DiscoveryCommand,
		ParameterID:  0x0001,
	}, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// RDMSend appends its own checksum
	e.RDMSend(0, req[:len(req)-rdm.ChecksumSize])

	if e.PortDirection(0) != dmx.DirectionInput || !e.PortEnabled(0) {
		t.Error("controller not listening after send")
	}
	got, err := e.RDMReceiveWithTimeout(1, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("responder receive failed: %v", err)
	}
	if !bytes.Equal(got, req) {
		t.Fatalf("responder got % X, want % X", got, req)
	}

	e.RDMSendDiscoveryRespondMessage(1, rdm.EncodeDiscoveryResponse(responder))

	resp, err := e.RDMReceiveWithTimeout(0, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("controller receive failed: %v", err)
	}
	uid, err := rdm.DecodeDiscoveryResponse(resp)
	if err != nil {
		t.Fatalf("DecodeDiscoveryResponse failed: %v", err)
	}
	if uid != responder {
		t.Errorf("UID = %v, want %v", uid, responder)
	}

	cs := e.TotalStatistics(0)
	rs := e.TotalStatistics(1)
	if cs.RDM.Sent.Class != 1 || cs.RDM.Received.Discovery != 1 {
		t.Errorf("controller statistics %+v", cs.RDM)
	}
	if rs.RDM.Received.Good != 1 || rs.RDM.Sent.DiscoveryResponse != 1 {
		t.Errorf("responder statistics %+v", rs.RDM)
	}
}

func TestScenario_DiscoveryResponseSpacing(t *testing.T) {
	e, hw := newSimEngine(t, "controller", "responder")
	hw.Connect(0, 1)
	e.SetPortDirection(1, dmx.DirectionInput, true)
	e.SetPortDirection(0, dmx.DirectionOutput, false)

	msg, err := rdm.Encode(rdm.Header{CommandClass: rdm.DiscoveryCommand}, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	e.RDMSendRaw(0, msg)

	var received time.Duration
	for _, ev := range hw.Port(0).Events {
		if ev.Kind == sim.EventWrite {
			received = ev.At + time.Duration(len(ev.Data))*dmx.SlotTime
		}
	}

	e.RDMSendDiscoveryRespondMessage(1, rdm.EncodeDiscoveryResponse(rdm.NewUID(1, 1)))

	breaks := hw.Port(1).Breaks()
	if len(breaks) != 1 {
		t.Fatalf("responder breaks = %d, want 1", len(breaks))
	}
	if breaks[0]-received < dmx.RDMRespondPacketSpacing {
		t.Errorf("responded after %v, want at least %v", breaks[0]-received, dmx.RDMRespondPacketSpacing)
	}
	if !hw.Port(1).ReceiveEnabled() {
		t.Error("responder not listening after response")
	}
}

func TestScenario_RDMReceiveTimeout(t *testing.T) {
	e, hw := newSimEngine(t, "in")
	e.SetPortDirection(0, dmx.DirectionInput, true)

	start := hw.Now()
	_, err := e.RDMReceiveWithTimeout(0, 5*time.Millisecond)
	if !errors.Is(err, dmx.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := hw.Now() - start; elapsed < 5*time.Millisecond {
		t.Errorf("returned after %v", elapsed)
	}
}
