// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rdm provides RDM (ANSI E1.20) framing helpers: checksums, the fixed
// message header, unique IDs and discovery-unique-branch response encoding.
//
// Parameter semantics are deliberately absent; this package only knows how a
// message is laid out on the wire.
package rdm

// Start codes and framing bytes
const (
	StartCode                  = 0xCC
	SubStartCode               = 0x01
	DiscoveryPreamble          = 0xFE
	DiscoveryPreambleSeparator = 0xAA
)

// Message size limits
const (
	MessageMinLength = 24 // header only, no parameter data
	MessageMaxLength = 255
	ChecksumSize     = 2
	FrameMaxSize     = MessageMaxLength + ChecksumSize

	// DiscoveryResponseMaxSize is 7 preamble bytes, the separator, the
	// encoded UID and the encoded checksum.
	DiscoveryResponseMaxSize = 24
	discoveryPreambleCount   = 7
	encodedUIDSize           = 12
	encodedChecksumSize      = 4

	UIDSize = 6
)

// Header field offsets
const (
	offsetStartCode         = 0
	offsetSubStartCode      = 1
	offsetMessageLength     = 2
	offsetDestination       = 3
	offsetSource            = 9
	offsetTransactionNumber = 15
	offsetPortID            = 16
	offsetMessageCount      = 17
	offsetSubDevice         = 18
	offsetCommandClass      = 20
	offsetParameterID       = 21
	offsetParameterDataLen  = 23
	offsetParameterData     = 24
)

// CommandClass identifies the kind of an RDM message
type CommandClass uint8

// Command class values
const (
	DiscoveryCommand         CommandClass = 0x10
	DiscoveryCommandResponse CommandClass = 0x11
	GetCommand               CommandClass = 0x20
	GetCommandResponse       CommandClass = 0x21
	SetCommand               CommandClass = 0x30
	SetCommandResponse       CommandClass = 0x31
)

// IsResponse returns true for the response half of a command class
func (c CommandClass) IsResponse() bool {
	return c&0x01 != 0
}
