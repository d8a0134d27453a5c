// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/driver/sim"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, 176*time.Microsecond, p.BreakTime)
	assert.Equal(t, 16*time.Microsecond, p.MabTime)
	assert.Equal(t, uint32(40), p.RefreshRate)
	assert.Equal(t, 512, p.Slots)
}

func TestMarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{
			name: "defaults",
			in:   Default(),
			want: Default(),
		},
		{
			name: "even slots",
			in:   Params{BreakTime: 200 * time.Microsecond, MabTime: 20 * time.Microsecond, RefreshRate: 30, Slots: 24},
			want: Params{BreakTime: 200 * time.Microsecond, MabTime: 20 * time.Microsecond, RefreshRate: 30, Slots: 24},
		},
		{
			name: "odd slots round down",
			in:   Params{BreakTime: 100 * time.Microsecond, MabTime: 12 * time.Microsecond, RefreshRate: 44, Slots: 101},
			want: Params{BreakTime: 100 * time.Microsecond, MabTime: 12 * time.Microsecond, RefreshRate: 44, Slots: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.in.Marshal()
			require.NoError(t, err)
			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshal_PartialKeepsDefaults(t *testing.T) {
	data, err := cbor.Marshal(map[int]uint32{2: 25})
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	want := Default()
	want.RefreshRate = 25
	assert.Equal(t, want, got)
}

func TestUnmarshal_Garbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xFF, 0x00, 0x13})
	assert.Error(t, err)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "missing.cbor"))
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.cbor")
	in := Params{BreakTime: 120 * time.Microsecond, MabTime: 14 * time.Microsecond, RefreshRate: 25, Slots: 64}

	require.NoError(t, in.Save(path))
	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.cbor")
	require.NoError(t, os.WriteFile(path, []byte("not cbor"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestApply(t *testing.T) {
	board := dmx.GenericBoard("a")
	e, err := dmx.New(board, sim.New(board))
	require.NoError(t, err)

	p := Params{BreakTime: 200 * time.Microsecond, MabTime: 20 * time.Microsecond, RefreshRate: 30, Slots: 128}
	p.Apply(e)

	assert.Equal(t, 200*time.Microsecond, e.BreakTime())
	assert.Equal(t, 20*time.Microsecond, e.MabTime())
	assert.Equal(t, 128, e.Slots())
	assert.Equal(t, uint32(30), e.RefreshRate())
	assert.Equal(t, p, FromEngine(e))
}

func TestApply_ClampsBelowMinimum(t *testing.T) {
	board := dmx.GenericBoard("a")
	e, err := dmx.New(board, sim.New(board))
	require.NoError(t, err)

	Params{BreakTime: time.Microsecond, MabTime: time.Microsecond, RefreshRate: 40, Slots: 1}.Apply(e)

	assert.Equal(t, dmx.BreakTimeMin, e.BreakTime())
	assert.Equal(t, dmx.MabTimeMin, e.MabTime())
	assert.Equal(t, dmx.MinSlots, e.Slots())
}
