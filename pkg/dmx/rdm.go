// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"time"

	"github.com/Thermoquad/lumen/pkg/rdm"
)

func (e *Engine) waitTransmitComplete(p *port) {
	for !p.line.TransmitComplete() {
		e.hw.Delay(rxPollInterval)
	}
}

// RDMSendRaw sends data behind an RDM break and mark-after-break by polling
// the peripheral. It blocks until the last byte has left the line. The caller
// owns the port direction.
func (e *Engine) RDMSendRaw(i int, data []byte) {
	p := e.port(i)
	if len(data) == 0 {
		panic("dmx: empty RDM frame")
	}
	e.waitTransmitComplete(p)

	p.line.DriveLow(RDMBreakTime)
	e.hw.Delay(RDMBreakTime)
	p.line.Release()
	e.hw.Delay(RDMMabTime)

	p.line.Write(data)
	e.waitTransmitComplete(p)
}

// RDMSend appends the checksum to msg, sends it and returns the port to
// listening
func (e *Engine) RDMSend(i int, msg []byte) {
	p := e.port(i)
	frame := rdm.AppendChecksum(append(make([]byte, 0, len(msg)+rdm.ChecksumSize), msg...))

	e.SetPortDirection(i, DirectionOutput, false)
	e.RDMSendRaw(i, frame)
	e.SetPortDirection(i, DirectionInput, true)
	p.stats.rdmSentClass.Add(1)
}

// RDMSendDiscoveryRespondMessage answers a discovery request. It waits for the
// respond spacing after the last received RDM frame, sends data and holds the
// turnaround time before listening again.
func (e *Engine) RDMSendDiscoveryRespondMessage(i int, data []byte) {
	p := e.port(i)
	for {
		since := e.hw.Now() - time.Duration(e.lastRxEnd.Load())
		if since >= RDMRespondPacketSpacing {
			break
		}
		e.hw.Delay(RDMRespondPacketSpacing - since)
	}

	e.SetPortDirection(i, DirectionOutput, false)
	e.RDMSendRaw(i, data)
	e.hw.Delay(RDMTurnaroundTime)
	e.SetPortDirection(i, DirectionInput, true)
	p.stats.rdmSentDiscovery.Add(1)
}

// RDMReceive returns the latest RDM frame of a port, checksum included, or
// nil if none arrived. Messages with a bad checksum are counted and dropped.
// Discovery responses are returned unchecked. The frame stays valid until the
// next call for the same port.
func (e *Engine) RDMReceive(i int) []byte {
	p := e.port(i)
	f := p.rx.rdmSlot.Peek()
	if f == nil {
		return nil
	}
	n := f.length
	discovery := f.discovery
	copy(p.rx.rdmFront[:n], f.data[:n])
	p.rx.rdmSlot.Clear()

	frame := p.rx.rdmFront[:n]
	if discovery {
		p.stats.rdmReceivedDiscovery.Add(1)
		return frame
	}
	if !rdm.VerifyChecksum(frame) {
		p.stats.rdmReceivedBad.Add(1)
		e.log.Debug("rdm checksum mismatch", "port", i, "length", n)
		return nil
	}
	p.stats.rdmReceivedGood.Add(1)
	return frame
}

// RDMReceiveWithTimeout polls RDMReceive until a frame arrives or timeout
// elapses
func (e *Engine) RDMReceiveWithTimeout(i int, timeout time.Duration) ([]byte, error) {
	start := e.hw.Now()
	for {
		if frame := e.RDMReceive(i); frame != nil {
			return frame, nil
		}
		if e.hw.Now()-start >= timeout {
			return nil, ErrTimeout
		}
		e.hw.Delay(rxPollInterval)
	}
}
