// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rdm

// Checksum computes the RDM additive checksum: the 16-bit sum of all bytes
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// AppendChecksum appends the big-endian checksum of msg to msg
func AppendChecksum(msg []byte) []byte {
	sum := Checksum(msg)
	return append(msg, byte(sum>>8), byte(sum))
}

// VerifyChecksum checks a received frame whose message length is declared in
// byte 2 and whose checksum follows the message
func VerifyChecksum(frame []byte) bool {
	if len(frame) <= offsetMessageLength {
		return false
	}
	length := int(frame[offsetMessageLength])
	if length < MessageMinLength || len(frame) < length+ChecksumSize {
		return false
	}
	received := uint16(frame[length])<<8 | uint16(frame[length+1])
	return Checksum(frame[:length]) == received
}
