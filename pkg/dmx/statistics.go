// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import "sync/atomic"

// DMXStatistics counts DMX frames
type DMXStatistics struct {
	Sent     uint32 `json:"sent"`
	Received uint32 `json:"received"`
}

// RDMSentStatistics counts transmitted RDM messages
type RDMSentStatistics struct {
	Class             uint32 `json:"class"`
	DiscoveryResponse uint32 `json:"discovery_response"`
}

// RDMReceivedStatistics counts consumed RDM messages
type RDMReceivedStatistics struct {
	Good      uint32 `json:"good"`
	Bad       uint32 `json:"bad"`
	Discovery uint32 `json:"discovery"`
}

// RDMStatistics groups the RDM counters
type RDMStatistics struct {
	Sent     RDMSentStatistics     `json:"sent"`
	Received RDMReceivedStatistics `json:"received"`
}

// TotalStatistics is a snapshot of a port's counters since start
type TotalStatistics struct {
	DMX DMXStatistics `json:"dmx"`
	RDM RDMStatistics `json:"rdm"`
}

type counters struct {
	dmxSent              atomic.Uint32
	dmxReceived          atomic.Uint32
	rdmSentClass         atomic.Uint32
	rdmSentDiscovery     atomic.Uint32
	rdmReceivedGood      atomic.Uint32
	rdmReceivedBad       atomic.Uint32
	rdmReceivedDiscovery atomic.Uint32

	updatesPerSecond atomic.Uint32
	lastReceived     uint32 // tick handler only
}

// TotalStatistics returns the counters of a port
func (e *Engine) TotalStatistics(i int) TotalStatistics {
	c := &e.port(i).stats
	return TotalStatistics{
		DMX: DMXStatistics{
			Sent:     c.dmxSent.Load(),
			Received: c.dmxReceived.Load(),
		},
		RDM: RDMStatistics{
			Sent: RDMSentStatistics{
				Class:             c.rdmSentClass.Load(),
				DiscoveryResponse: c.rdmSentDiscovery.Load(),
			},
			Received: RDMReceivedStatistics{
				Good:      c.rdmReceivedGood.Load(),
				Bad:       c.rdmReceivedBad.Load(),
				Discovery: c.rdmReceivedDiscovery.Load(),
			},
		},
	}
}

// DMXUpdatesPerSecond returns the number of DMX frames a port received during
// the last full second
func (e *Engine) DMXUpdatesPerSecond(i int) uint32 {
	return e.port(i).stats.updatesPerSecond.Load()
}

// Uptime returns the number of ticks handled, in seconds
func (e *Engine) Uptime() uint32 {
	return e.uptime.Load()
}

// HandleTick is the one-second statistics interrupt
func (e *Engine) HandleTick() {
	for i := range e.ports {
		c := &e.ports[i].stats
		received := c.dmxReceived.Load()
		c.updatesPerSecond.Store(received - c.lastReceived)
		c.lastReceived = received
	}
	e.uptime.Add(1)
}
