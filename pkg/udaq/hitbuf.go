// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package udaq

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// headerSize is the length of the block-count packet that opens a hit-buffer file
const headerSize = 2

// Reassemble checks the header and terminator packets of a hit-buffer file
// and concatenates the data blocks between them.
func Reassemble(packets [][]byte) ([]byte, error) {
	if len(packets) == 0 {
		return nil, Errorf(KindInvalidHeader, "invalid header: no packets")
	}

	header := packets[0]
	if len(header) != headerSize {
		return nil, Errorf(KindInvalidHeader, "invalid header: len(header) = %d != %d", len(header), headerSize)
	}
	numBlocks := int(binary.LittleEndian.Uint16(header))

	last := packets[len(packets)-1]
	if !bytes.Equal(last, TerminatorPacket) {
		return nil, Errorf(KindMissingTerminator, "missing terminator: last block %q is not OK", last)
	}

	if len(packets) != numBlocks+2 {
		return nil, &DecodeError{
			Kind:     KindBlockCountMismatch,
			Message:  fmt.Sprintf("wrong number of blocks received: %d, expected %d", len(packets)-2, numBlocks),
			Expected: numBlocks,
			Actual:   len(packets) - 2,
		}
	}

	size := 0
	for _, block := range packets[1 : len(packets)-1] {
		size += len(block)
	}
	data := make([]byte, 0, size)
	for _, block := range packets[1 : len(packets)-1] {
		data = append(data, block...)
	}
	return data, nil
}
