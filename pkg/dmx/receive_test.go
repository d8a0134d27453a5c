// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"bytes"
	"testing"

	"github.com/Thermoquad/lumen/pkg/rdm"
)

// ============================================================
// Receive Helpers
// ============================================================

func newInputEngine(t *testing.T) (*Engine, *fakeHardware) {
	t.Helper()
	e, hw := newTestEngine(t, 1)
	e.SetPortDirection(0, DirectionInput, true)
	if !hw.lines[0].rx {
		t.Fatal("receive not enabled")
	}
	return e, hw
}

// feed delivers a break and then data one slot apart
func feed(e *Engine, hw *fakeHardware, data []byte) {
	e.HandleFramingError(0)
	for _, b := range data {
		hw.now += SlotTime
		e.HandleByte(0, b)
	}
}

func dmxFrame(slots int) []byte {
	frame := make([]byte, slots+1)
	frame[0] = StartCode
	for i := 1; i <= slots; i++ {
		frame[i] = byte(i)
	}
	return frame
}

func testRDMMessage(t *testing.T, cc rdm.CommandClass) []byte {
	t.Helper()
	msg, err := rdm.Encode(rdm.Header{
		Destination:       rdm.NewUID(0x7FF0, 0x00000001),
		Source:            rdm.NewUID(0x7FF0, 0x00000002),
		TransactionNumber: 1,
		PortID:            1,
		CommandClass:      cc,
		ParameterID:       0x0060,
	}, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return msg
}

// ============================================================
// DMX Receive Tests
// ============================================================

func TestReceive_DMXFrameCompletedByTimeout(t *testing.T) {
	e, hw := newInputEngine(t)
	frame := dmxFrame(24)

	feed(e, hw, frame)
	if e.RxState(0) != RxDMXData {
		t.Fatalf("state = %v, want DMXDATA", e.RxState(0))
	}
	if e.DMXAvailable(0) != nil {
		t.Fatal("frame published before completion")
	}

	hw.fire(t, e.ports[0].cfg.RxChannel)

	if e.RxState(0) != RxIdle {
		t.Errorf("state = %v, want IDLE", e.RxState(0))
	}
	got := e.DMXAvailable(0)
	if got == nil {
		t.Fatal("no frame available")
	}
	if got.Slots != 24 {
		t.Errorf("Slots = %d, want 24", got.Slots)
	}
	if !bytes.Equal(got.SlotData(), frame[1:]) {
		t.Errorf("slot data mismatch: %v", got.SlotData())
	}
	if e.DMXAvailable(0) != nil {
		t.Error("frame returned twice")
	}
	if stats := e.TotalStatistics(0); stats.DMX.Received != 1 {
		t.Errorf("Received = %d, want 1", stats.DMX.Received)
	}
}

func TestReceive_DMXFrameCompletedByBreak(t *testing.T) {
	e, hw := newInputEngine(t)

	feed(e, hw, dmxFrame(10))
	e.HandleFramingError(0)

	if e.RxState(0) != RxBreak {
		t.Errorf("state = %v, want BREAK", e.RxState(0))
	}
	got := e.DMXAvailable(0)
	if got == nil || got.Slots != 10 {
		t.Fatalf("expected a 10-slot frame, got %+v", got)
	}
}

func TestReceive_FullFrame(t *testing.T) {
	e, hw := newInputEngine(t)

	feed(e, hw, dmxFrame(MaxSlots))
	hw.fire(t, e.ports[0].cfg.RxChannel)

	got := e.DMXAvailable(0)
	if got == nil || got.Slots != MaxSlots {
		t.Fatalf("expected a full frame, got %+v", got)
	}
}

func TestReceive_OverlongFrameDiscarded(t *testing.T) {
	e, hw := newInputEngine(t)

	feed(e, hw, dmxFrame(MaxSlots+1))

	if e.RxState(0) != RxIdle {
		t.Errorf("state = %v, want IDLE", e.RxState(0))
	}
	if e.DMXAvailable(0) != nil {
		t.Error("overlong frame was published")
	}
	if stats := e.TotalStatistics(0); stats.DMX.Received != 0 {
		t.Errorf("Received = %d, want 0", stats.DMX.Received)
	}
	if _, ok := hw.armed[e.ports[0].cfg.RxChannel]; ok {
		t.Error("receive timeout still armed")
	}
}

func TestReceive_TimeoutTracksByteSpacing(t *testing.T) {
	e, hw := newInputEngine(t)
	ch := e.ports[0].cfg.RxChannel

	e.HandleFramingError(0)
	e.HandleByte(0, StartCode)
	if got := hw.armed[ch]; got != rxFirstSlotWindow+DefaultRxTimeoutGuard {
		t.Errorf("first slot window = %v", got)
	}

	hw.now += 3 * SlotTime
	e.HandleByte(0, 0x10)
	if got := hw.armed[ch]; got != 3*SlotTime+DefaultRxTimeoutGuard {
		t.Errorf("timeout = %v, want %v", got, 3*SlotTime+DefaultRxTimeoutGuard)
	}
}

func TestReceive_BusyConsumerUsesScratch(t *testing.T) {
	e, hw := newInputEngine(t)

	first := dmxFrame(4)
	feed(e, hw, first)
	e.HandleFramingError(0)

	second := []byte{StartCode, 0xAA, 0xBB}
	for _, b := range second {
		hw.now += SlotTime
		e.HandleByte(0, b)
	}
	e.HandleFramingError(0)

	if stats := e.TotalStatistics(0); stats.DMX.Received != 2 {
		t.Errorf("Received = %d, want 2", stats.DMX.Received)
	}
	got := e.DMXAvailable(0)
	if got == nil || !bytes.Equal(got.SlotData(), first[1:]) {
		t.Fatalf("published frame should be the first one, got %+v", got)
	}
	if e.DMXAvailable(0) != nil {
		t.Error("scratch frame was published")
	}
}

func TestReceive_UnknownStartCodeIgnored(t *testing.T) {
	e, hw := newInputEngine(t)

	feed(e, hw, []byte{0x17, 0x01, 0x02})

	if e.RxState(0) != RxIdle {
		t.Errorf("state = %v, want IDLE", e.RxState(0))
	}
	e.HandleFramingError(0)
	if e.DMXAvailable(0) != nil {
		t.Error("frame with foreign start code was published")
	}
}

func TestReceive_BytesWithoutBreakIgnored(t *testing.T) {
	e, _ := newInputEngine(t)

	for _, b := range dmxFrame(8) {
		e.HandleByte(0, b)
	}
	if e.RxState(0) != RxIdle {
		t.Errorf("state = %v, want IDLE", e.RxState(0))
	}
}

func TestReceive_DisabledPortIgnoresInput(t *testing.T) {
	e, hw := newTestEngine(t, 1)

	feed(e, hw, dmxFrame(8))
	e.HandleFramingError(0)

	if e.RxState(0) != RxIdle {
		t.Errorf("state = %v, want IDLE", e.RxState(0))
	}
	if stats := e.TotalStatistics(0); stats.DMX.Received != 0 {
		t.Errorf("Received = %d, want 0", stats.DMX.Received)
	}
}

// ============================================================
// RDM Receive Tests
// ============================================================

func TestReceive_RDMMessage(t *testing.T) {
	e, hw := newInputEngine(t)
	msg := testRDMMessage(t, rdm.GetCommand)

	feed(e, hw, msg)

	if e.RxState(0) != RxIdle {
		t.Errorf("state = %v, want IDLE", e.RxState(0))
	}
	if e.lastRxEnd.Load() != int64(hw.now) {
		t.Errorf("lastRxEnd = %d, want %d", e.lastRxEnd.Load(), hw.now)
	}
	got := e.RDMReceive(0)
	if !bytes.Equal(got, msg) {
		t.Fatalf("RDMReceive = % X, want % X", got, msg)
	}
	stats := e.TotalStatistics(0)
	if stats.RDM.Received.Good != 1 || stats.RDM.Received.Bad != 0 {
		t.Errorf("unexpected statistics %+v", stats.RDM.Received)
	}
	if e.RDMReceive(0) != nil {
		t.Error("message returned twice")
	}
}

func TestReceive_RDMBadChecksum(t *testing.T) {
	e, hw := newInputEngine(t)
	msg := testRDMMessage(t, rdm.GetCommand)
	msg[len(msg)-1] ^= 0xFF

	feed(e, hw, msg)

	if got := e.RDMReceive(0); got != nil {
		t.Errorf("corrupt message returned: % X", got)
	}
	stats := e.TotalStatistics(0)
	if stats.RDM.Received.Bad != 1 || stats.RDM.Received.Good != 0 {
		t.Errorf("unexpected statistics %+v", stats.RDM.Received)
	}
}

func TestReceive_RDMCorruptByteThenRecovers(t *testing.T) {
	tests := []struct {
		name  string
		index int
	}{
		{"parameter data", 25},
		{"source UID", 12},
		{"command class", 20},
		{"checksum", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, hw := newInputEngine(t)
			msg := testRDMMessage(t, rdm.GetCommand)
			bad := append([]byte(nil), msg...)
			i := tt.index
			if i < 0 {
				i = len(bad) - 1
			}
			bad[i] ^= 0x5A

			feed(e, hw, bad)
			if e.RxState(0) != RxIdle {
				t.Errorf("state after corrupt message = %v, want IDLE", e.RxState(0))
			}
			if got := e.RDMReceive(0); got != nil {
				t.Errorf("corrupt message returned: % X", got)
			}
			if s := e.TotalStatistics(0).RDM.Received; s.Bad != 1 || s.Good != 0 {
				t.Errorf("after corrupt message: %+v", s)
			}

			feed(e, hw, msg)
			if got := e.RDMReceive(0); !bytes.Equal(got, msg) {
				t.Errorf("next message = % X, want % X", got, msg)
			}
			if s := e.TotalStatistics(0).RDM.Received; s.Bad != 1 || s.Good != 1 {
				t.Errorf("after good message: %+v", s)
			}
		})
	}
}

func TestReceive_RDMStateSequence(t *testing.T) {
	e, hw := newInputEngine(t)
	msg := testRDMMessage(t, rdm.GetCommand)
	length := int(msg[2])

	e.HandleFramingError(0)
	for i, b := range msg {
		hw.now += SlotTime
		e.HandleByte(0, b)
		var want RxState
		switch {
		case i+1 < length:
			want = RxRDMData
		case i+1 == length:
			want = RxChecksumH
		case i+1 == length+1:
			want = RxChecksumL
		default:
			want = RxIdle
		}
		if e.RxState(0) != want {
			t.Fatalf("after byte %d: state = %v, want %v", i, e.RxState(0), want)
		}
	}
}

func TestReceive_RDMHeaderRejected(t *testing.T) {
	tests := []struct {
		name  string
		patch func(msg []byte)
	}{
		{name: "bad sub start code", patch: func(msg []byte) { msg[1] = 0x02 }},
		{name: "length below header", patch: func(msg []byte) { msg[2] = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, hw := newInputEngine(t)
			msg := testRDMMessage(t, rdm.GetCommand)
			tt.patch(msg)

			feed(e, hw, msg[:3])
			if e.RxState(0) != RxIdle {
				t.Errorf("state = %v, want IDLE", e.RxState(0))
			}
			feed(e, hw, nil)
			if e.RDMReceive(0) != nil {
				t.Error("rejected message was published")
			}
		})
	}
}

func TestReceive_DiscoveryResponse(t *testing.T) {
	e, hw := newInputEngine(t)
	uid := rdm.NewUID(0x4C55, 0x12345678)
	resp := rdm.EncodeDiscoveryResponse(uid)

	feed(e, hw, resp)

	if e.RxState(0) != RxIdle {
		t.Errorf("state = %v, want IDLE", e.RxState(0))
	}
	got := e.RDMReceive(0)
	if !bytes.Equal(got, resp) {
		t.Fatalf("RDMReceive = % X, want % X", got, resp)
	}
	decoded, err := rdm.DecodeDiscoveryResponse(got)
	if err != nil {
		t.Fatalf("DecodeDiscoveryResponse failed: %v", err)
	}
	if decoded != uid {
		t.Errorf("UID = %v, want %v", decoded, uid)
	}
	if stats := e.TotalStatistics(0); stats.RDM.Received.Discovery != 1 {
		t.Errorf("Discovery = %d, want 1", stats.RDM.Received.Discovery)
	}
}

func TestReceive_ShortDiscoveryCompletedByTimeout(t *testing.T) {
	e, hw := newInputEngine(t)
	resp := rdm.EncodeDiscoveryResponse(rdm.NewUID(1, 2))[2:]

	feed(e, hw, resp)
	if e.RxState(0) != RxRDMDisc {
		t.Fatalf("state = %v, want RDMDISC", e.RxState(0))
	}
	hw.fire(t, e.ports[0].cfg.RxChannel)

	got := e.RDMReceive(0)
	if !bytes.Equal(got, resp) {
		t.Errorf("RDMReceive = % X, want % X", got, resp)
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestHandleTick_UpdatesPerSecond(t *testing.T) {
	e, hw := newInputEngine(t)

	for range 5 {
		feed(e, hw, dmxFrame(4))
		e.HandleFramingError(0)
		e.DMXAvailable(0)
	}
	e.HandleTick()
	if got := e.DMXUpdatesPerSecond(0); got != 5 {
		t.Errorf("updates/s = %d, want 5", got)
	}

	feed(e, hw, dmxFrame(4))
	e.HandleFramingError(0)
	e.HandleTick()
	if got := e.DMXUpdatesPerSecond(0); got != 1 {
		t.Errorf("updates/s = %d, want 1", got)
	}
	if e.Uptime() != 2 {
		t.Errorf("Uptime = %d, want 2", e.Uptime())
	}
}
