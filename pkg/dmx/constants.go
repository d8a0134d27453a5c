// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dmx implements the real-time DMX512/RDM transceiver engine.
//
// The engine owns every port of a node. Each port is bound to one serial
// peripheral and drives either the transmit framer (break, mark-after-break,
// DMA burst, inter-frame gap) or the receive state machine (per-byte
// classification of DMX and RDM frames). Progress is made exclusively by the
// Handle* methods, which a hardware binding calls from interrupt context; the
// remaining methods form the main-loop API.
package dmx

import "time"

// Frame layout
const (
	StartCode    = 0x00 // DMX512 null start code
	MaxSlots     = 512
	MinSlots     = 2
	MaxFrameSize = MaxSlots + 1 // start code + slots
)

// Transmit timing limits
const (
	BreakTimeMin        = 92 * time.Microsecond
	BreakTimeTypical    = 176 * time.Microsecond
	MabTimeMin          = 12 * time.Microsecond
	DefaultMabTime      = 16 * time.Microsecond
	DefaultRefreshRate  = 40 // Hz
	DefaultPeriodTime   = time.Second / DefaultRefreshRate
	BreakToBreakTimeMin = 1204 * time.Microsecond

	// SlotTime is the on-wire duration of one 8N2 byte at 250 kbit/s.
	SlotTime = 44 * time.Microsecond
)

// RDM timing
const (
	RDMBreakTime = 88 * time.Microsecond
	RDMMabTime   = 12 * time.Microsecond

	// RDMRespondPacketSpacing is the minimum delay between the end of a
	// received request and the start of a responder's reply.
	RDMRespondPacketSpacing = 176 * time.Microsecond

	// RDMTurnaroundTime is held after a response before the port listens again.
	RDMTurnaroundTime = 44 * time.Microsecond
)

// Receive timing
const (
	// DefaultRxTimeoutGuard is added to the previous inter-byte delta when
	// arming the receive timeout.
	DefaultRxTimeoutGuard = 12 * time.Microsecond

	// rxFirstSlotWindow bounds the wait for the first byte after a start code.
	rxFirstSlotWindow = 2 * SlotTime

	// rxPollInterval is the busy-wait step of blocking receive calls.
	rxPollInterval = 10 * time.Microsecond
)
