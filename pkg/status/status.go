// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package status snapshots the state of an engine for remote monitoring. A
// Report is sent as one CBOR message per websocket frame.
package status

import (
	"fmt"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/fxamacker/cbor/v2"
)

// PortReport is the state of one port
type PortReport struct {
	Index            int                 `cbor:"index"`
	Name             string              `cbor:"name"`
	Direction        string              `cbor:"direction"`
	Style            string              `cbor:"style"`
	Enabled          bool                `cbor:"enabled"`
	TxState          string              `cbor:"tx_state"`
	RxState          string              `cbor:"rx_state"`
	UpdatesPerSecond uint32              `cbor:"updates_per_second"`
	Statistics       dmx.TotalStatistics `cbor:"statistics"`
}

// Report is the state of a node
type Report struct {
	Node        string        `cbor:"node"`
	Uptime      uint32        `cbor:"uptime"` // seconds
	BreakTime   time.Duration `cbor:"break_time"`
	MabTime     time.Duration `cbor:"mab_time"`
	RefreshRate uint32        `cbor:"refresh_rate"`
	Slots       int           `cbor:"slots"`
	Ports       []PortReport  `cbor:"ports"`
}

// New takes a snapshot of e
func New(e *dmx.Engine, node string) Report {
	board := e.Board()
	t := e.Timing()
	r := Report{
		Node:        node,
		Uptime:      e.Uptime(),
		BreakTime:   t.BreakTime,
		MabTime:     t.MabTime,
		RefreshRate: t.RefreshRate(),
		Slots:       e.Slots(),
		Ports:       make([]PortReport, e.Ports()),
	}
	for i := range r.Ports {
		r.Ports[i] = PortReport{
			Index:            i,
			Name:             board.Ports[i].Name,
			Direction:        e.PortDirection(i).String(),
			Style:            e.OutputStyle(i).String(),
			Enabled:          e.PortEnabled(i),
			TxState:          e.TxState(i).String(),
			RxState:          e.RxState(i).String(),
			UpdatesPerSecond: e.DMXUpdatesPerSecond(i),
			Statistics:       e.TotalStatistics(i),
		}
	}
	return r
}

// Marshal encodes r as CBOR
func (r Report) Marshal() ([]byte, error) {
	data, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a CBOR report
func Unmarshal(data []byte) (Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return r, nil
}

// String returns a formatted summary
func (r Report) String() string {
	result := fmt.Sprintf("=== %s (up %d seconds) ===\n", r.Node, r.Uptime)
	result += fmt.Sprintf("Break / MAB:     %8v / %v\n", r.BreakTime, r.MabTime)
	result += fmt.Sprintf("Refresh Rate:    %8d Hz\n", r.RefreshRate)
	result += fmt.Sprintf("Slots:           %8d\n", r.Slots)

	for _, p := range r.Ports {
		state := "disabled"
		if p.Enabled {
			state = "enabled"
		}
		result += fmt.Sprintf("--- Port %d %s (%s, %s, %s) ---\n", p.Index, p.Name, p.Direction, p.Style, state)

		s := p.Statistics
		result += fmt.Sprintf("DMX Sent:        %8d\n", s.DMX.Sent)
		result += fmt.Sprintf("DMX Received:    %8d (%d/sec)\n", s.DMX.Received, p.UpdatesPerSecond)
		if s.RDM.Sent.Class > 0 || s.RDM.Sent.DiscoveryResponse > 0 {
			result += fmt.Sprintf("RDM Sent:        %8d\n", s.RDM.Sent.Class)
			result += fmt.Sprintf("  Disc Response:    %5d\n", s.RDM.Sent.DiscoveryResponse)
		}
		received := s.RDM.Received
		if received.Good > 0 || received.Bad > 0 || received.Discovery > 0 {
			var badPercent float64
			if total := received.Good + received.Bad; total > 0 {
				badPercent = float64(received.Bad) * 100.0 / float64(total)
			}
			result += fmt.Sprintf("RDM Received:    %8d\n", received.Good)
			if received.Bad > 0 {
				result += fmt.Sprintf("  Bad Checksum:     %5d (%.1f%%)\n", received.Bad, badPercent)
			}
			if received.Discovery > 0 {
				result += fmt.Sprintf("  Discovery:        %5d\n", received.Discovery)
			}
		}
	}
	result += "================================\n"

	return result
}
