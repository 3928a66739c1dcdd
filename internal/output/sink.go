// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Sink receives records in processing order
type Sink interface {
	WriteMonitor(MonitorReading) error
	WriteHitRate(HitRateRecord) error
}

// Format selects the encoding of a stream sink
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat parses a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatCBOR:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json or cbor)", s)
}

// encoder is satisfied by json.Encoder and cbor.Encoder
type encoder interface {
	Encode(v interface{}) error
}

// StreamSink encodes each record as one item of a stream
type StreamSink struct {
	enc encoder
}

// NewStreamSink returns a sink writing records to w in the given format
func NewStreamSink(w io.Writer, format Format) (*StreamSink, error) {
	switch format {
	case FormatJSON:
		return NewJSONSink(w), nil
	case FormatCBOR:
		return NewCBORSink(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// NewJSONSink writes one JSON object per line
func NewJSONSink(w io.Writer) *StreamSink {
	return &StreamSink{enc: json.NewEncoder(w)}
}

// NewCBORSink writes a CBOR sequence, one data item per record
func NewCBORSink(w io.Writer) *StreamSink {
	return &StreamSink{enc: cbor.NewEncoder(w)}
}

// WriteMonitor implements Sink
func (s *StreamSink) WriteMonitor(r MonitorReading) error {
	if err := s.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write monitor record: %w", err)
	}
	return nil
}

// WriteHitRate implements Sink
func (s *StreamSink) WriteHitRate(r HitRateRecord) error {
	if err := s.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write hit rate record: %w", err)
	}
	return nil
}

// MultiSink fans records out to several sinks, stopping at the first error
type MultiSink []Sink

// WriteMonitor implements Sink
func (m MultiSink) WriteMonitor(r MonitorReading) error {
	for _, s := range m {
		if err := s.WriteMonitor(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteHitRate implements Sink
func (m MultiSink) WriteHitRate(r HitRateRecord) error {
	for _, s := range m {
		if err := s.WriteHitRate(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink that is an io.Closer and joins the errors
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Collector keeps records in memory
type Collector struct {
	Monitors []MonitorReading
	HitRates []HitRateRecord
}

// WriteMonitor implements Sink
func (c *Collector) WriteMonitor(r MonitorReading) error {
	c.Monitors = append(c.Monitors, r)
	return nil
}

// WriteHitRate implements Sink
func (c *Collector) WriteHitRate(r HitRateRecord) error {
	c.HitRates = append(c.HitRates, r)
	return nil
}
