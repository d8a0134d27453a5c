// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"errors"
	"fmt"
)

var ErrNoSeparator = errors.New("discovery response has no preamble separator")

// EncodeDiscoveryResponse builds the reply to a discovery-unique-branch
// request: preamble, separator, then the UID and its checksum with every
// byte sent twice, once OR'ed with 0xAA and once with 0x55.
func EncodeDiscoveryResponse(uid UID) []byte {
	out := make([]byte, 0, DiscoveryResponseMaxSize)
	for i := 0; i < discoveryPreambleCount; i++ {
		out = append(out, DiscoveryPreamble)
	}
	out = append(out, DiscoveryPreambleSeparator)

	for _, b := range uid {
		out = append(out, b|0xAA, b|0x55)
	}

	sum := Checksum(out[discoveryPreambleCount+1:])
	hi, lo := byte(sum>>8), byte(sum)
	out = append(out, hi|0xAA, hi|0x55, lo|0xAA, lo|0x55)

	return out
}

// DecodeDiscoveryResponse extracts the UID from a discovery response. Up to
// seven preamble bytes may precede the separator.
func DecodeDiscoveryResponse(data []byte) (UID, error) {
	start := -1
	for i, b := range data {
		if b == DiscoveryPreambleSeparator {
			start = i + 1
			break
		}
		if b != DiscoveryPreamble || i >= discoveryPreambleCount {
			break
		}
	}
	if start < 0 {
		return UID{}, ErrNoSeparator
	}

	body := data[start:]
	if len(body) < encodedUIDSize+encodedChecksumSize {
		return UID{}, fmt.Errorf("discovery response too short: %d bytes after separator", len(body))
	}

	var uid UID
	for i := range uid {
		uid[i] = body[2*i] & body[2*i+1]
	}

	c := body[encodedUIDSize:]
	received := uint16(c[0]&c[1])<<8 | uint16(c[2]&c[3])
	if calculated := Checksum(body[:encodedUIDSize]); calculated != received {
		return UID{}, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrBadChecksum, calculated, received)
	}
	return uid, nil
}
