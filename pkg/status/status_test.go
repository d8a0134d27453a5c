// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package status

import (
	"testing"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/driver/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopback(t *testing.T) *dmx.Engine {
	t.Helper()
	board := dmx.GenericBoard("out", "in")
	hw := sim.New(board)
	e, err := dmx.New(board, hw)
	require.NoError(t, err)
	hw.Connect(0, 1)

	e.SetSendDataWithoutStartCode(0, make([]byte, 32))
	e.Sync()
	e.SetPortDirection(1, dmx.DirectionInput, true)
	e.SetOutputStyle(0, dmx.StyleContinuous)
	e.SetPortDirection(0, dmx.DirectionOutput, true)
	hw.Run(time.Second + time.Millisecond)
	return e
}

func TestNew(t *testing.T) {
	e := loopback(t)

	r := New(e, "bench")
	assert.Equal(t, "bench", r.Node)
	assert.Equal(t, uint32(1), r.Uptime)
	assert.Equal(t, uint32(40), r.RefreshRate)
	assert.Equal(t, dmx.MaxSlots, r.Slots)
	require.Len(t, r.Ports, 2)

	out, in := r.Ports[0], r.Ports[1]
	assert.Equal(t, "out", out.Name)
	assert.Equal(t, "OUTPUT", out.Direction)
	assert.Equal(t, "CONTINUOUS", out.Style)
	assert.True(t, out.Enabled)
	assert.NotZero(t, out.Statistics.DMX.Sent)

	assert.Equal(t, 1, in.Index)
	assert.Equal(t, "INPUT", in.Direction)
	assert.NotZero(t, in.Statistics.DMX.Received)
	assert.InDelta(t, 40, in.UpdatesPerSecond, 1)
}

func TestMarshalRoundTrip(t *testing.T) {
	r := New(loopback(t), "bench")

	data, err := r.Marshal()
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestUnmarshal_Garbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xFF})
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	r := Report{
		Node:        "bench",
		Uptime:      12,
		BreakTime:   176 * time.Microsecond,
		MabTime:     16 * time.Microsecond,
		RefreshRate: 40,
		Slots:       512,
		Ports: []PortReport{{
			Index:     0,
			Name:      "/dev/ttyUSB0",
			Direction: "INPUT",
			Style:     "DELTA",
			Enabled:   true,
			Statistics: dmx.TotalStatistics{
				DMX: dmx.DMXStatistics{Received: 480},
				RDM: dmx.RDMStatistics{Received: dmx.RDMReceivedStatistics{Good: 3, Bad: 1}},
			},
		}},
	}

	s := r.String()
	assert.Contains(t, s, "=== bench (up 12 seconds) ===")
	assert.Contains(t, s, "--- Port 0 /dev/ttyUSB0 (INPUT, DELTA, enabled) ---")
	assert.Contains(t, s, "DMX Received:         480")
	assert.Contains(t, s, "Bad Checksum:         1 (25.0%)")
	assert.NotContains(t, s, "RDM Sent")
	assert.NotContains(t, s, "Discovery")
}
