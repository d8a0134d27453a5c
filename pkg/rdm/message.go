// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

import (
	"errors"
	"fmt"
)

var (
	ErrShortMessage   = errors.New("rdm message shorter than header")
	ErrBadStartCode   = errors.New("rdm message has wrong start code")
	ErrLengthMismatch = errors.New("rdm message length does not match its fields")
	ErrBadChecksum    = errors.New("rdm checksum mismatch")
)

// Header is the fixed 24-byte part of an RDM message
type Header struct {
	MessageLength       uint8
	Destination         UID
	Source              UID
	TransactionNumber   uint8
	PortID              uint8 // response type in responses
	MessageCount        uint8
	SubDevice           uint16
	CommandClass        CommandClass
	ParameterID         uint16
	ParameterDataLength uint8
}

// ParseHeader decodes the header of a message frame. The frame may carry the
// trailing checksum; it is not verified here.
func ParseHeader(frame []byte) (Header, error) {
	if len(frame) < MessageMinLength {
		return Header{}, ErrShortMessage
	}
	if frame[offsetStartCode] != StartCode || frame[offsetSubStartCode] != SubStartCode {
		return Header{}, ErrBadStartCode
	}

	var h Header
	h.MessageLength = frame[offsetMessageLength]
	copy(h.Destination[:], frame[offsetDestination:offsetSource])
	copy(h.Source[:], frame[offsetSource:offsetTransactionNumber])
	h.TransactionNumber = frame[offsetTransactionNumber]
	h.PortID = frame[offsetPortID]
	h.MessageCount = frame[offsetMessageCount]
	h.SubDevice = uint16(frame[offsetSubDevice])<<8 | uint16(frame[offsetSubDevice+1])
	h.CommandClass = CommandClass(frame[offsetCommandClass])
	h.ParameterID = uint16(frame[offsetParameterID])<<8 | uint16(frame[offsetParameterID+1])
	h.ParameterDataLength = frame[offsetParameterDataLen]

	if int(h.MessageLength) != MessageMinLength+int(h.ParameterDataLength) {
		return Header{}, fmt.Errorf("%w: length %d, parameter data %d", ErrLengthMismatch, h.MessageLength, h.ParameterDataLength)
	}
	if len(frame) < int(h.MessageLength) {
		return Header{}, fmt.Errorf("%w: length %d, have %d bytes", ErrLengthMismatch, h.MessageLength, len(frame))
	}
	return h, nil
}

// ParameterData returns the parameter data of a frame whose header parsed
func ParameterData(frame []byte) []byte {
	length := int(frame[offsetMessageLength])
	return frame[offsetParameterData:length]
}

// Encode builds a complete wire message: header, parameter data and checksum.
// MessageLength and ParameterDataLength are derived from data.
func Encode(h Header, data []byte) ([]byte, error) {
	if MessageMinLength+len(data) > MessageMaxLength {
		return nil, fmt.Errorf("rdm parameter data too large: %d bytes (max %d)", len(data), MessageMaxLength-MessageMinLength)
	}

	length := MessageMinLength + len(data)
	msg := make([]byte, length, length+ChecksumSize)
	msg[offsetStartCode] = StartCode
	msg[offsetSubStartCode] = SubStartCode
	msg[offsetMessageLength] = byte(length)
	copy(msg[offsetDestination:], h.Destination[:])
	copy(msg[offsetSource:], h.Source[:])
	msg[offsetTransactionNumber] = h.TransactionNumber
	msg[offsetPortID] = h.PortID
	msg[offsetMessageCount] = h.MessageCount
	msg[offsetSubDevice] = byte(h.SubDevice >> 8)
	msg[offsetSubDevice+1] = byte(h.SubDevice)
	msg[offsetCommandClass] = byte(h.CommandClass)
	msg[offsetParameterID] = byte(h.ParameterID >> 8)
	msg[offsetParameterID+1] = byte(h.ParameterID)
	msg[offsetParameterDataLen] = byte(len(data))
	copy(msg[offsetParameterData:], data)

	return AppendChecksum(msg), nil
}

// Decode parses and checksum-verifies a complete frame
func Decode(frame []byte) (Header, []byte, error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return Header{}, nil, err
	}
	if !VerifyChecksum(frame) {
		return Header{}, nil, ErrBadChecksum
	}
	return h, ParameterData(frame), nil
}
