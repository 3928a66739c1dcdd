// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package udaq

import (
	"encoding/binary"
	"fmt"
)

// Fletcher16 computes the Fletcher-16 checksum for the given data.
// The running sum of sums is returned in the high byte.
func Fletcher16(data []byte) uint16 {
	var sum1, sum2 uint16
	for _, b := range data {
		sum1 = (sum1 + uint16(b)) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return sum2<<8 | sum1
}

// PutChecksum writes sum into dst (at least ChecksumSize bytes) in the given order.
func PutChecksum(dst []byte, sum uint16, order ChecksumOrder) {
	if order == ChecksumBigEndian {
		binary.BigEndian.PutUint16(dst, sum)
		return
	}
	binary.LittleEndian.PutUint16(dst, sum)
}

// readChecksum reads the checksum field from src in the given order.
func readChecksum(src []byte, order ChecksumOrder) uint16 {
	if order == ChecksumBigEndian {
		return binary.BigEndian.Uint16(src)
	}
	return binary.LittleEndian.Uint16(src)
}

// ValidateChecksum verifies the trailing checksum of a de-stuffed frame and
// returns the bytes it covers.
func ValidateChecksum(frame []byte, order ChecksumOrder) ([]byte, error) {
	if len(frame) < MinFrameSize {
		return nil, Errorf(KindFrameTooShort, "frame too short: %d bytes (min %d)", len(frame), MinFrameSize)
	}
	body := frame[:len(frame)-ChecksumSize]
	calculated := Fletcher16(body)
	received := readChecksum(frame[len(frame)-ChecksumSize:], order)
	if calculated != received {
		return nil, &DecodeError{
			Kind:     KindChecksumMismatch,
			Message:  fmt.Sprintf("invalid checksum: expected 0x%04X, got 0x%04X", calculated, received),
			Expected: int(calculated),
			Actual:   int(received),
		}
	}
	return body, nil
}
