// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package output writes decoded records to JSON lines, CBOR sequences
// and other sinks.
package output

import "time"

// MonitorReading is emitted for every decoded monitor member
type MonitorReading struct {
	Channel int     `json:"channel" cbor:"channel"`
	Time    float64 `json:"time" cbor:"time"`
	Temp    float64 `json:"temp" cbor:"temp"`
}

// HitRateRecord is emitted for every calibrated hit buffer.
// Results holds hits per second, one value per threshold.
type HitRateRecord struct {
	Channel int       `json:"channel" cbor:"channel"`
	Time    float64   `json:"time" cbor:"time"`
	Results []float64 `json:"results" cbor:"results"`
}

// EpochSeconds converts a timestamp to fractional Unix seconds
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
