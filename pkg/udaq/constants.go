// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package udaq decodes the file format written by the MicroDAQ scintillator
// panel readout.
//
// A member file is a sequence of COBS-stuffed frames separated by zero bytes.
// Each frame carries a framing marker, a payload and a trailing Fletcher-16
// checksum. Hit-buffer files concatenate many frames into one word-oriented
// blob that is walked by a small state machine; monitor files carry ASCII
// temperature and TAI time lines.
package udaq

import "fmt"

// Framing bytes
const (
	Sentinel   = 0x00 // frame delimiter, never present in stuffed data
	FillerByte = 0xFF // padding sub-buffer, silently dropped
)

// Frame size limits
const (
	ChecksumSize = 2
	MinPayload   = 2
	MinFrameSize = MinPayload + ChecksumSize // smallest de-stuffed frame
	WordSize     = 4
)

// ChecksumOrder selects the byte order of the trailing checksum field.
// The recorded archives use little-endian (format v1); later firmware
// revisions wrote the field big-endian (format v2).
type ChecksumOrder int

const (
	ChecksumLittleEndian ChecksumOrder = iota
	ChecksumBigEndian
)

// String returns the flag spelling of the order.
func (o ChecksumOrder) String() string {
	switch o {
	case ChecksumLittleEndian:
		return "le"
	case ChecksumBigEndian:
		return "be"
	default:
		return "unknown"
	}
}

// ParseChecksumOrder parses "le"/"v1" or "be"/"v2".
func ParseChecksumOrder(s string) (ChecksumOrder, error) {
	switch s {
	case "le", "v1":
		return ChecksumLittleEndian, nil
	case "be", "v2":
		return ChecksumBigEndian, nil
	}
	return 0, fmt.Errorf("unknown checksum order %q (want le or be)", s)
}

// Hit-buffer file markers
var (
	// TerminatorPacket ends every hit-buffer file.
	TerminatorPacket = []byte("OK\n\x00")
)

// Monitor file tags
const (
	TemperatureTag = "0.0000"
	TimeTag        = "TAI:"
	ClockTag       = "\tCLK:"
)

// Frame type codes, stored in the high byte of a hit-buffer word
const (
	FramePPSSecond  = 0xE0
	FramePPSYear    = 0xE4
	FrameTrigConfig = 0xE5
	FrameDataFormat = 0xE6
)

// Hit record bit layout
const (
	hitForcedBit        = 1 << 24 // CPU-triggered baseline readout
	hitDiscriminatorBit = 1 << 25
	hitTickMask         = 0x00FFFFFF

	adcCountShift = 28
	adcCountMask  = 0xF

	sampleSubChannelShift = 12
	sampleSubChannelMask  = 0xF
	sampleCodeMask        = 0x0FFF
)

// Sub-channels of a panel readout
const (
	SubChannelHighGain = 0
	SubChannelLowGain  = 1
	NumSubChannels     = 2
)

// MaxADCSamples is the largest sample count a hit can declare.
const MaxADCSamples = adcCountMask
