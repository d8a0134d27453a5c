// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"fmt"
	"strings"
)

// FormatFrame formats a received frame into a human-readable string. Frames
// starting with the discovery preamble are decoded as discovery responses.
func FormatFrame(frame []byte) string {
	if len(frame) == 0 {
		return "(empty)\n"
	}

	if frame[0] == DiscoveryPreamble || frame[0] == DiscoveryPreambleSeparator {
		uid, err := DecodeDiscoveryResponse(frame)
		if err != nil {
			return fmt.Sprintf("DISCOVERY_RESPONSE invalid: %v\n%s", err, FormatHex(frame))
		}
		return fmt.Sprintf("DISCOVERY_RESPONSE uid=%s\n", uid)
	}

	h, err := ParseHeader(frame)
	if err != nil {
		return fmt.Sprintf("INVALID: %v\n%s", err, FormatHex(frame))
	}

	result := fmt.Sprintf("%s %s -> %s tn=%d port=%d count=%d sub=%d pid=0x%04X pdl=%d\n",
		FormatCommandClass(h.CommandClass), h.Source, h.Destination,
		h.TransactionNumber, h.PortID, h.MessageCount, h.SubDevice,
		h.ParameterID, h.ParameterDataLength)

	if !VerifyChecksum(frame) {
		result += "  Checksum: BAD\n"
	}
	if h.ParameterDataLength > 0 {
		result += "  Data: " + FormatHex(ParameterData(frame))
	}
	return result
}

// FormatCommandClass returns the human-readable name for a command class
func FormatCommandClass(cc CommandClass) string {
	switch cc {
	case DiscoveryCommand:
		return "DISCOVERY_COMMAND"
	case DiscoveryCommandResponse:
		return "DISCOVERY_COMMAND_RESPONSE"
	case GetCommand:
		return "GET_COMMAND"
	case GetCommandResponse:
		return "GET_COMMAND_RESPONSE"
	case SetCommand:
		return "SET_COMMAND"
	case SetCommandResponse:
		return "SET_COMMAND_RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(cc))
	}
}

// FormatHex renders bytes as a hex dump, 16 per line
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			sb.WriteString("\n        ")
		}
		fmt.Fprintf(&sb, "%02X ", b)
	}
	sb.WriteString("\n")
	return sb.String()
}
