// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package udaq

import "fmt"

// Decoder turns the raw bytes of a member file into validated packets
type Decoder struct {
	order ChecksumOrder
}

// NewDecoder creates a decoder for the given checksum format version
func NewDecoder(order ChecksumOrder) *Decoder {
	return &Decoder{order: order}
}

// Order returns the checksum byte order the decoder expects
func (d *Decoder) Order() ChecksumOrder {
	return d.order
}

// DecodeFrame de-stuffs one delimited sub-buffer, verifies its checksum and
// returns the payload without the framing marker and the checksum.
func (d *Decoder) DecodeFrame(raw []byte) ([]byte, error) {
	frame, err := Unstuff(raw)
	if err != nil {
		return nil, err
	}
	body, err := ValidateChecksum(frame, d.order)
	if err != nil {
		return nil, err
	}
	return body[1:], nil
}

// DecodePackets splits a member file into frames and decodes each one.
// The first failing frame aborts the member.
func (d *Decoder) DecodePackets(data []byte) ([][]byte, error) {
	frames := SplitFrames(data)
	packets := make([][]byte, 0, len(frames))
	for i, raw := range frames {
		p, err := d.DecodeFrame(raw)
		if err != nil {
			if de, ok := err.(*DecodeError); ok {
				de.Message = fmt.Sprintf("frame %d: %s", i, de.Message)
			}
			return nil, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

// DecodeHitFile decodes and reassembles a hit-buffer member
func (d *Decoder) DecodeHitFile(data []byte) ([]byte, error) {
	packets, err := d.DecodePackets(data)
	if err != nil {
		return nil, err
	}
	return Reassemble(packets)
}

// DecodeMonitorFile decodes a monitor member
func (d *Decoder) DecodeMonitorFile(data []byte) (MonitorPacket, error) {
	packets, err := d.DecodePackets(data)
	if err != nil {
		return MonitorPacket{}, err
	}
	return DecodeMonitor(packets)
}
