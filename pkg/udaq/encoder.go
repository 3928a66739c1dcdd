// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package udaq

import (
	"encoding/binary"
	"fmt"
	"time"
)

// EncodeFrame builds one stuffed frame: marker, payload and checksum.
// The result contains no Sentinel byte.
func EncodeFrame(marker byte, payload []byte, order ChecksumOrder) []byte {
	data := make([]byte, 0, 1+len(payload)+ChecksumSize)
	data = append(data, marker)
	data = append(data, payload...)

	var sum [ChecksumSize]byte
	PutChecksum(sum[:], Fletcher16(data), order)
	data = append(data, sum[:]...)

	return Stuff(data)
}

// EncodeMember stuffs each payload into a frame and joins the frames with
// Sentinel bytes. Frame markers count up from zero.
func EncodeMember(payloads [][]byte, order ChecksumOrder) []byte {
	var out []byte
	for i, p := range payloads {
		out = append(out, EncodeFrame(byte(i), p, order)...)
		out = append(out, Sentinel)
	}
	return out
}

// EncodeHitFile builds a hit-buffer member from data blocks
func EncodeHitFile(blocks [][]byte, order ChecksumOrder) []byte {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(header, uint16(len(blocks)))

	payloads := make([][]byte, 0, len(blocks)+2)
	payloads = append(payloads, header)
	payloads = append(payloads, blocks...)
	payloads = append(payloads, TerminatorPacket)
	return EncodeMember(payloads, order)
}

// SplitBlocks cuts a hit buffer into blocks of at most size bytes
func SplitBlocks(buf []byte, size int) [][]byte {
	var blocks [][]byte
	for len(buf) > size {
		blocks = append(blocks, buf[:size])
		buf = buf[size:]
	}
	if len(buf) > 0 {
		blocks = append(blocks, buf)
	}
	return blocks
}

// EncodeMonitorFile builds a monitor member with a status line, the
// temperature packet and the TAI packet.
func EncodeMonitorFile(deviceTime time.Time, temperature float64, order ChecksumOrder) []byte {
	t := deviceTime.UTC()
	sod := t.Hour()*3600 + t.Minute()*60 + t.Second()
	payloads := [][]byte{
		[]byte("MONITOR\n\x00"),
		[]byte(fmt.Sprintf("%s %.4f\n\x00", TemperatureTag, temperature)),
		[]byte(fmt.Sprintf("%s %02d %03d %02d %02d %02d %d%s %d\n\x00",
			TimeTag, t.Year()-2000, t.YearDay(), t.Hour(), t.Minute(), t.Second(), sod, ClockTag, sod*1000)),
	}
	return EncodeMember(payloads, order)
}

// Word builders for hit buffers

// FrameWord returns a frame-type word with the given low 24 bits
func FrameWord(code byte, low uint32) uint32 {
	return uint32(code)<<24 | low&hitTickMask
}

// PPSWord returns a one-second pulse marker
func PPSWord() uint32 {
	return FrameWord(FramePPSSecond, 0)
}

// PackSample packs a sub-channel and ADC code into a sample slot
func PackSample(subChannel uint8, code uint16) uint16 {
	return uint16(subChannel&sampleSubChannelMask)<<sampleSubChannelShift | code&sampleCodeMask
}

// EncodeHit returns the words of one hit record
func EncodeHit(forced bool, ticks uint32, samples []Sample) []uint32 {
	header := ticks & hitTickMask
	if forced {
		header |= hitForcedBit
	} else {
		header |= hitDiscriminatorBit
	}

	n := len(samples)
	if n > MaxADCSamples {
		n = MaxADCSamples
	}
	slots := make([]uint16, 1+2*(n/2))
	for i := 0; i < n; i++ {
		slots[i] = PackSample(samples[i].SubChannel, samples[i].Code)
	}

	words := []uint32{header, uint32(n)<<adcCountShift | uint32(slots[0])}
	for i := 1; i+1 < len(slots); i += 2 {
		words = append(words, uint32(slots[i])|uint32(slots[i+1])<<16)
	}
	return words
}

// WordBytes serialises words little-endian
func WordBytes(words []uint32) []byte {
	out := make([]byte, len(words)*WordSize)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*WordSize:], w)
	}
	return out
}
