// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package udaq

import "bytes"

// maxBlock is the largest COBS code byte; a block of this length is not
// followed by an implicit zero.
const maxBlock = 0xFF

// Stuff applies COBS byte stuffing so the result contains no Sentinel byte.
func Stuff(data []byte) []byte {
	result := make([]byte, 1, len(data)+len(data)/254+2)
	codeIndex := 0
	code := byte(1)

	for i, b := range data {
		if b == Sentinel {
			result[codeIndex] = code
			codeIndex = len(result)
			result = append(result, 0)
			code = 1
			continue
		}
		result = append(result, b)
		code++
		// a full block only opens another when input remains
		if code == maxBlock && i+1 < len(data) {
			result[codeIndex] = code
			codeIndex = len(result)
			result = append(result, 0)
			code = 1
		}
	}
	result[codeIndex] = code

	return result
}

// Unstuff removes COBS byte stuffing.
// This is the inverse of Stuff.
func Unstuff(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))

	for i := 0; i < len(data); {
		code := int(data[i])
		if code == 0 {
			return nil, Errorf(KindStuffing, "stuffing error: zero code byte at offset %d", i)
		}
		i++

		end := i + code - 1
		if end > len(data) {
			return nil, Errorf(KindStuffing, "stuffing error: block length %d at offset %d runs past end (%d bytes)", code, i-1, len(data))
		}
		block := data[i:end]
		if bytes.IndexByte(block, Sentinel) >= 0 {
			return nil, Errorf(KindStuffing, "stuffing error: zero byte inside block at offset %d", i)
		}
		result = append(result, block...)
		i = end

		if code < maxBlock && i < len(data) {
			result = append(result, Sentinel)
		}
	}

	return result, nil
}

// SplitFrames splits a member file on the Sentinel byte, dropping empty
// sub-buffers and single FillerByte padding.
func SplitFrames(data []byte) [][]byte {
	parts := bytes.Split(data, []byte{Sentinel})
	frames := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 || (len(p) == 1 && p[0] == FillerByte) {
			continue
		}
		frames = append(frames, p)
	}
	return frames
}
