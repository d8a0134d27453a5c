// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package params persists the transmit parameters of a node: break, MAB,
// refresh rate and slot count. The file is a CBOR map with integer keys; the
// slot count is stored in one byte with RoundDownSlots.
package params

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/fxamacker/cbor/v2"
)

// Params are the stored transmit parameters
type Params struct {
	BreakTime   time.Duration
	MabTime     time.Duration
	RefreshRate uint32 // Hz, 0 for the fastest rate
	Slots       int
}

// record is the on-disk form
type record struct {
	BreakTime   uint32 `cbor:"0,keyasint"` // µs
	MabTime     uint32 `cbor:"1,keyasint"` // µs
	RefreshRate uint32 `cbor:"2,keyasint"`
	Slots       uint8  `cbor:"3,keyasint"`
}

// Default returns the engine defaults
func Default() Params {
	return Params{
		BreakTime:   dmx.BreakTimeTypical,
		MabTime:     dmx.DefaultMabTime,
		RefreshRate: dmx.DefaultRefreshRate,
		Slots:       dmx.MaxSlots,
	}
}

// FromEngine captures the current parameters of e
func FromEngine(e *dmx.Engine) Params {
	return Params{
		BreakTime:   e.BreakTime(),
		MabTime:     e.MabTime(),
		RefreshRate: e.RefreshRate(),
		Slots:       e.Slots(),
	}
}

// Apply configures e. The engine clamps values outside its limits.
func (p Params) Apply(e *dmx.Engine) {
	e.SetBreakTime(p.BreakTime)
	e.SetMabTime(p.MabTime)
	e.SetSlots(p.Slots)
	e.SetRefreshRate(p.RefreshRate)
}

// Marshal encodes p. Odd slot counts lose their last slot.
func (p Params) Marshal() ([]byte, error) {
	data, err := cbor.Marshal(record{
		BreakTime:   uint32(p.BreakTime / time.Microsecond),
		MabTime:     uint32(p.MabTime / time.Microsecond),
		RefreshRate: p.RefreshRate,
		Slots:       dmx.RoundDownSlots(p.Slots),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a parameter file. Fields missing from the file keep
// their defaults.
func Unmarshal(data []byte) (Params, error) {
	def := Default()
	r := record{
		BreakTime:   uint32(def.BreakTime / time.Microsecond),
		MabTime:     uint32(def.MabTime / time.Microsecond),
		RefreshRate: def.RefreshRate,
		Slots:       dmx.RoundDownSlots(def.Slots),
	}
	if err := cbor.Unmarshal(data, &r); err != nil {
		return Params{}, fmt.Errorf("failed to decode params: %w", err)
	}
	return Params{
		BreakTime:   time.Duration(r.BreakTime) * time.Microsecond,
		MabTime:     time.Duration(r.MabTime) * time.Microsecond,
		RefreshRate: r.RefreshRate,
		Slots:       dmx.RoundUpSlots(r.Slots),
	}, nil
}

// Load reads a parameter file. A missing file yields the defaults.
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Params{}, fmt.Errorf("failed to read params %s: %w", path, err)
	}
	p, err := Unmarshal(data)
	if err != nil {
		return Params{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Save writes p to path
func (p Params) Save(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write params %s: %w", path, err)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("break=%v mab=%v refresh=%dHz slots=%d", p.BreakTime, p.MabTime, p.RefreshRate, p.Slots)
}
