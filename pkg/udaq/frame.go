// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package udaq

import "encoding/binary"

// Sample is one ADC conversion attached to a hit
type Sample struct {
	SubChannel uint8
	Code       uint16
}

// Hit is one trigger record of a hit buffer.
// Samples is reused between callbacks of Scan; copy it to keep it.
type Hit struct {
	Header  uint32
	Samples []Sample
}

// Forced reports whether the hit is a CPU-triggered baseline readout
func (h *Hit) Forced() bool {
	return h.Header&hitForcedBit != 0
}

// Discriminator reports whether the hit fired the discriminator
func (h *Hit) Discriminator() bool {
	return h.Header&hitDiscriminatorBit != 0
}

// Ticks returns the sub-second tick counter of the hit
func (h *Hit) Ticks() uint32 {
	return h.Header & hitTickMask
}

// Sample returns the first sample of the given sub-channel
func (h *Hit) Sample(subChannel uint8) (uint16, bool) {
	for _, s := range h.Samples {
		if s.SubChannel == subChannel {
			return s.Code, true
		}
	}
	return 0, false
}

// Counts is the result of one pass over a hit buffer
type Counts struct {
	Seconds int // whole seconds between the boundary PPS pulses
	Hits    int // admitted hits inside those seconds
}

// wordCursor reads little-endian words from a hit buffer
type wordCursor struct {
	buf []byte
	pos int
}

func (c *wordCursor) done() bool {
	return c.pos >= len(c.buf)
}

func (c *wordCursor) remaining() int {
	return (len(c.buf) - c.pos) / WordSize
}

func (c *wordCursor) next() (uint32, error) {
	if c.pos+WordSize > len(c.buf) {
		return 0, Errorf(KindIncompleteFrame, "incomplete frame: word %d past end of %d-word buffer",
			c.pos/WordSize, len(c.buf)/WordSize)
	}
	w := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += WordSize
	return w, nil
}

// readHit consumes the sample words following a hit header word.
func (c *wordCursor) readHit(header uint32, h *Hit) error {
	h.Header = header
	h.Samples = h.Samples[:0]

	first, err := c.next()
	if err != nil {
		return err
	}
	n := int(first>>adcCountShift) & adcCountMask
	extra := n / 2
	if c.remaining() < extra {
		return Errorf(KindIncompleteFrame, "incomplete frame: hit declares %d samples (%d extra words), %d words left",
			n, extra, c.remaining())
	}

	h.appendSlot(uint16(first), n)
	for i := 0; i < extra; i++ {
		w, _ := c.next()
		h.appendSlot(uint16(w), n)
		h.appendSlot(uint16(w>>16), n)
	}
	return nil
}

func (h *Hit) appendSlot(slot uint16, n int) {
	if len(h.Samples) >= n {
		return
	}
	h.Samples = append(h.Samples, Sample{
		SubChannel: uint8(slot>>sampleSubChannelShift) & sampleSubChannelMask,
		Code:       slot & sampleCodeMask,
	})
}

// Scan walks a hit buffer and counts the hits admit accepts inside the
// whole seconds of the buffer. A nil admit accepts every hit.
//
// Hits are only confirmed once a second PPS pulse has been seen, and the
// first and last PPS intervals are excluded from the seconds count.
func Scan(buf []byte, admit func(*Hit) bool) (Counts, error) {
	if len(buf)%WordSize != 0 {
		return Counts{}, Errorf(KindIncompleteFrame, "incomplete frame: hit buffer length %d is not word aligned", len(buf))
	}

	c := wordCursor{buf: buf}
	hit := Hit{Samples: make([]Sample, 0, MaxADCSamples)}
	var seconds, pending, confirmed int

	for !c.done() {
		w, err := c.next()
		if err != nil {
			return Counts{}, err
		}

		switch w >> 24 {
		case FramePPSSecond:
			seconds++
			if seconds >= 2 {
				confirmed += pending
			}
			pending = 0

		case FrameTrigConfig:
			if _, err := c.next(); err != nil {
				return Counts{}, err
			}

		case FramePPSYear, FrameDataFormat:
			// nothing to do

		default:
			if err := c.readHit(w, &hit); err != nil {
				return Counts{}, err
			}
			if admit == nil || admit(&hit) {
				pending++
			}
		}
	}

	seconds -= 2
	if seconds < 1 {
		return Counts{Seconds: seconds, Hits: confirmed},
			Errorf(KindInsufficientData, "insufficient data: %d whole seconds in hit buffer", seconds)
	}
	return Counts{Seconds: seconds, Hits: confirmed}, nil
}

// ParseHitBuffer counts every hit of a hit buffer
func ParseHitBuffer(buf []byte) (Counts, error) {
	return Scan(buf, nil)
}
