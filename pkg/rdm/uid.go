// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"fmt"
	"strconv"
	"strings"
)

// UID is a 48-bit RDM unique ID: 16-bit manufacturer, 32-bit device
type UID [UIDSize]byte

// Special UIDs
var (
	BroadcastUID = UID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
)

// NewUID builds a UID from its manufacturer and device parts
func NewUID(manufacturer uint16, device uint32) UID {
	return UID{
		byte(manufacturer >> 8), byte(manufacturer),
		byte(device >> 24), byte(device >> 16), byte(device >> 8), byte(device),
	}
}

// ParseUID parses the "MMMM:DDDDDDDD" form
func ParseUID(s string) (UID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return UID{}, fmt.Errorf("invalid UID %q: expected MMMM:DDDDDDDD", s)
	}
	m, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return UID{}, fmt.Errorf("invalid UID manufacturer %q: %w", parts[0], err)
	}
	d, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return UID{}, fmt.Errorf("invalid UID device %q: %w", parts[1], err)
	}
	return NewUID(uint16(m), uint32(d)), nil
}

// Manufacturer returns the ESTA manufacturer ID
func (u UID) Manufacturer() uint16 {
	return uint16(u[0])<<8 | uint16(u[1])
}

// Device returns the device part of the UID
func (u UID) Device() uint32 {
	return uint32(u[2])<<24 | uint32(u[3])<<16 | uint32(u[4])<<8 | uint32(u[5])
}

// IsBroadcast returns true for the all-devices UID
func (u UID) IsBroadcast() bool {
	return u == BroadcastUID
}

func (u UID) String() string {
	return fmt.Sprintf("%04X:%08X", u.Manufacturer(), u.Device())
}
