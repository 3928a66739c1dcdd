// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package calib

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/icescint/udaqtool/pkg/udaq"
)

const (
	// AuxDAC is the SiPM bias setting used for all recorded hit buffers
	AuxDAC = 2650

	// MaxADC is the first saturated ADC code
	MaxADC = 3600
)

// DefaultThresholds are the energy thresholds in MIP, 0 to 7 in steps of 0.5
var DefaultThresholds = []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5, 5.5, 6, 6.5, 7}

// Model holds the run-wide calibration parameters
type Model struct {
	AuxDAC     float64
	MaxADC     uint16
	Thresholds []float64
}

// DefaultModel returns the model used for the historical data set
func DefaultModel() Model {
	return Model{
		AuxDAC:     AuxDAC,
		MaxADC:     MaxADC,
		Thresholds: append([]float64(nil), DefaultThresholds...),
	}
}

// Validate checks that the thresholds are non-empty and ascending
func (m Model) Validate() error {
	if len(m.Thresholds) == 0 {
		return fmt.Errorf("no thresholds configured")
	}
	if m.MaxADC == 0 || m.MaxADC > 0x1000 {
		return fmt.Errorf("max ADC code %d out of range 1-4096", m.MaxADC)
	}
	for i := 1; i < len(m.Thresholds); i++ {
		if m.Thresholds[i] <= m.Thresholds[i-1] {
			return fmt.Errorf("thresholds must be strictly ascending: %v after %v",
				m.Thresholds[i], m.Thresholds[i-1])
		}
	}
	return nil
}

// Baseline is the pedestal ADC level per sub-channel
type Baseline [udaq.NumSubChannels]float64

// EstimateBaseline histograms the unsaturated samples of forced-trigger
// hits per sub-channel and returns the count-weighted mean code of each.
func EstimateBaseline(buf []byte, maxADC uint16) (Baseline, error) {
	var hist [udaq.NumSubChannels][]float64
	for sub := range hist {
		hist[sub] = make([]float64, maxADC)
	}

	_, err := udaq.Scan(buf, func(h *udaq.Hit) bool {
		if !h.Forced() {
			return false
		}
		for _, s := range h.Samples {
			if int(s.SubChannel) < len(hist) && s.Code < maxADC {
				hist[s.SubChannel][s.Code]++
			}
		}
		return false
	})
	// the seconds accounting is irrelevant here
	if err != nil && !errors.Is(err, udaq.ErrInsufficientData) {
		return Baseline{}, err
	}

	codes := make([]float64, maxADC)
	for i := range codes {
		codes[i] = float64(i)
	}

	var b Baseline
	for sub, counts := range hist {
		if floats.Sum(counts) == 0 {
			return Baseline{}, udaq.Errorf(udaq.KindInsufficientData,
				"insufficient data: no baseline samples for sub-channel %d", sub)
		}
		b[sub] = stat.Mean(codes, counts)
	}
	return b, nil
}

// Converter turns hits into energies for one panel at one temperature
type Converter struct {
	Amp       ADCAmp
	Baseline  Baseline
	MIPPerADC float64
	MaxADC    uint16
}

// Amplitude returns the baseline-subtracted amplitude of a hit in
// high-gain ADC counts. A saturated high-gain sample falls back to the
// low-gain channel when one was recorded.
func (c *Converter) Amplitude(h *udaq.Hit) (float64, bool) {
	hg, hasHG := h.Sample(udaq.SubChannelHighGain)
	if hasHG && hg < c.MaxADC {
		return float64(hg) - c.Baseline[udaq.SubChannelHighGain], true
	}
	if lg, ok := h.Sample(udaq.SubChannelLowGain); ok {
		return c.Amp.Scale*(float64(lg)-c.Baseline[udaq.SubChannelLowGain]) + c.Amp.Offset, true
	}
	if hasHG {
		return float64(hg) - c.Baseline[udaq.SubChannelHighGain], true
	}
	return 0, false
}

// MIP returns the energy of a hit in MIP
func (c *Converter) MIP(h *udaq.Hit) (float64, bool) {
	amp, ok := c.Amplitude(h)
	if !ok {
		return 0, false
	}
	return amp * c.MIPPerADC, true
}

// Result is the per-threshold hit count of one hit buffer
type Result struct {
	Seconds    int
	Thresholds []float64
	Hits       []int
}

// Rates returns hits per second for each threshold
func (r Result) Rates() []float64 {
	rates := make([]float64, len(r.Hits))
	for i, h := range r.Hits {
		rates[i] = float64(h) / float64(r.Seconds)
	}
	return rates
}

// Engine calibrates hit buffers against a panel table
type Engine struct {
	table *Table
	model Model
}

// NewEngine validates the table and model and returns an engine
func NewEngine(table *Table, model Model) (*Engine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &Engine{table: table, model: model}, nil
}

// Model returns the engine's model
func (e *Engine) Model() Model {
	return e.model
}

// Converter builds the hit converter of a channel for a hit buffer
func (e *Engine) Converter(channel int, temperature float64, buf []byte) (*Converter, error) {
	panel, err := e.table.Panel(channel)
	if err != nil {
		return nil, udaq.Errorf(udaq.KindCalibrationUnavailable, "calibration unavailable: %v", err)
	}
	mipPerADC, err := panel.MIPPerADC(temperature, e.model.AuxDAC)
	if err != nil {
		return nil, err
	}
	baseline, err := EstimateBaseline(buf, e.model.MaxADC)
	if err != nil {
		return nil, err
	}
	return &Converter{
		Amp:       panel.ADCAmp,
		Baseline:  baseline,
		MIPPerADC: mipPerADC,
		MaxADC:    e.model.MaxADC,
	}, nil
}

// Calibrate counts the hits of a buffer whose energy exceeds each threshold.
// Every threshold is a separate pass with the same seconds accounting.
func (e *Engine) Calibrate(channel int, temperature float64, buf []byte) (Result, error) {
	conv, err := e.Converter(channel, temperature, buf)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Thresholds: e.model.Thresholds,
		Hits:       make([]int, len(e.model.Thresholds)),
	}
	for i, threshold := range e.model.Thresholds {
		counts, err := udaq.Scan(buf, func(h *udaq.Hit) bool {
			if h.Forced() {
				return false
			}
			mip, ok := conv.MIP(h)
			return ok && mip > threshold
		})
		if err != nil {
			return Result{}, err
		}
		res.Seconds = counts.Seconds
		res.Hits[i] = counts.Hits
	}
	return res, nil
}
