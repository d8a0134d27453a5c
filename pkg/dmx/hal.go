// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import "time"

// Clock is the engine's microsecond time base.
type Clock interface {
	// Now returns the time elapsed since the binding started.
	Now() time.Duration
	// Delay busy-waits for d. Interrupt handlers keep running meanwhile.
	Delay(d time.Duration)
}

// Line is one serial peripheral together with its line driver.
type Line interface {
	// SetDirection drives the direction pin of the transceiver.
	SetDirection(dir Direction)
	// EnableReceive masks or unmasks the receive interrupt.
	EnableReceive(on bool)
	// DriveLow forces the transmit pin low. hold is the intended break
	// length, for peripherals that can only generate a timed break.
	DriveLow(hold time.Duration)
	// Release hands the transmit pin back to the UART (idle high).
	Release()
	// StartDMA starts shifting out data. Completion is reported through
	// Interrupts.HandleDMAComplete.
	StartDMA(data []byte)
	// Write shifts out data by polling the peripheral.
	Write(data []byte)
	// TransmitComplete reports the peripheral's transmit-complete flag.
	TransmitComplete() bool
}

// Hardware is a binding of the engine to timers, DMA and serial lines.
type Hardware interface {
	Clock

	// Bind registers the handlers the binding delivers events to.
	Bind(h Interrupts)
	// Line returns the line of a port.
	Line(port int) Line
	// Arm schedules a one-shot compare on channel ch after d. Re-arming
	// replaces a pending compare.
	Arm(ch int, after time.Duration)
	// Disarm cancels a pending compare on channel ch.
	Disarm(ch int)
}

// Interrupts are the engine's event entry points. A binding must deliver them
// one at a time; none of them blocks.
type Interrupts interface {
	HandleByte(port int, b byte)
	HandleFramingError(port int)
	HandleTimer(ch int)
	HandleDMAComplete(port int)
	HandleTick()
}
