// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package calib converts decoded hit buffers into calibrated hit rates.
//
// Each of the eight scintillator panels has a fixed gain model: ADC counts
// per photoelectron and photoelectrons per MIP, both linear in the panel
// temperature and the SiPM bias setting (AUXDAC). The low-gain ADC channel
// is mapped onto the high-gain scale with a per-panel amplitude pair.
package calib

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/icescint/udaqtool/pkg/udaq"
)

// NumChannels is the number of panels read out by one MicroDAQ
const NumChannels = 8

// Linear is a gain term: Offset + Temp*temperature + AuxDAC*auxdac
type Linear struct {
	Offset float64 `json:"offset"`
	Temp   float64 `json:"temp"`
	AuxDAC float64 `json:"auxdac"`
}

// At evaluates the term
func (l Linear) At(temperature, auxDAC float64) float64 {
	return l.Offset + l.Temp*temperature + l.AuxDAC*auxDAC
}

// ADCAmp maps low-gain ADC counts onto the high-gain scale
type ADCAmp struct {
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
}

// Panel is the immutable calibration record of one channel
type Panel struct {
	ADCAmp   ADCAmp `json:"adc_amp"`
	ADCPerPE Linear `json:"adc_per_pe"`
	PEPerMIP Linear `json:"pe_per_mip"`
}

// MIPPerADC returns the MIP equivalent of one high-gain ADC count
func (p Panel) MIPPerADC(temperature, auxDAC float64) (float64, error) {
	adcPerPE := p.ADCPerPE.At(temperature, auxDAC)
	pePerMIP := p.PEPerMIP.At(temperature, auxDAC)
	gain := adcPerPE * pePerMIP
	if !(gain > 0) || math.IsInf(gain, 0) {
		return 0, udaq.Errorf(udaq.KindCalibrationUnavailable,
			"calibration unavailable: non-physical gain at temperature %.2f (adc_per_pe=%.3f, pe_per_mip=%.3f)",
			temperature, adcPerPE, pePerMIP)
	}
	return 1 / gain, nil
}

func (p Panel) coefficients() []float64 {
	return []float64{
		p.ADCAmp.Scale, p.ADCAmp.Offset,
		p.ADCPerPE.Offset, p.ADCPerPE.Temp, p.ADCPerPE.AuxDAC,
		p.PEPerMIP.Offset, p.PEPerMIP.Temp, p.PEPerMIP.AuxDAC,
	}
}

// Table holds one Panel per channel, indexed by channel number
type Table [NumChannels]Panel

// DefaultTable is the panel calibration from the lab measurement campaign
var DefaultTable = Table{
	{
		ADCAmp:   ADCAmp{Scale: 6.571565312524594, Offset: 80.94875187527528},
		ADCPerPE: Linear{Offset: -144.43994279968206, Temp: -0.2930746360308953, AuxDAC: 0.09199106677441772},
		PEPerMIP: Linear{Offset: -88.89603311937648, Temp: -0.27898287333168087, AuxDAC: 0.07747924576759614},
	},
	{
		ADCAmp:   ADCAmp{Scale: 6.52838039640283, Offset: 77.90388096204346},
		ADCPerPE: Linear{Offset: -132.7279728299177, Temp: -0.29702092978353634, AuxDAC: 0.0871905626973858},
		PEPerMIP: Linear{Offset: -105.5519664621495, Temp: -0.30153733231838364, AuxDAC: 0.08649458802379155},
	},
	{
		ADCAmp:   ADCAmp{Scale: 6.55388838887122, Offset: 81.16310634565774},
		ADCPerPE: Linear{Offset: -151.18829546041786, Temp: -0.29198903200246823, AuxDAC: 0.0936481090852252},
		PEPerMIP: Linear{Offset: -95.19458419964486, Temp: -0.2805599108606021, AuxDAC: 0.0809718006821564},
	},
	{
		ADCAmp:   ADCAmp{Scale: 6.508768026385524, Offset: 83.9229430665138},
		ADCPerPE: Linear{Offset: -144.4245027147568, Temp: -0.3019536751969425, AuxDAC: 0.09299748957023715},
		PEPerMIP: Linear{Offset: -88.59115319715606, Temp: -0.2715295748573229, AuxDAC: 0.07730171382823496},
	},
	{
		ADCAmp:   ADCAmp{Scale: 6.547014385306461, Offset: 80.76710390437852},
		ADCPerPE: Linear{Offset: -146.92292609892547, Temp: -0.3055965917716603, AuxDAC: 0.09326285661594973},
		PEPerMIP: Linear{Offset: -107.12238152982248, Temp: -0.284873042643401, AuxDAC: 0.08624608685437932},
	},
	{
		ADCAmp:   ADCAmp{Scale: 6.561398144439558, Offset: 79.28945968739885},
		ADCPerPE: Linear{Offset: -135.38163753948064, Temp: -0.3070578230228417, AuxDAC: 0.08865548382612648},
		PEPerMIP: Linear{Offset: -95.87071993209084, Temp: -0.2697346672494465, AuxDAC: 0.0793254438536431},
	},
	{
		ADCAmp:   ADCAmp{Scale: 6.578555150399217, Offset: 81.5053331143242},
		ADCPerPE: Linear{Offset: -147.70532417481886, Temp: -0.31458579686797994, AuxDAC: 0.09466026981290745},
		PEPerMIP: Linear{Offset: -76.27908674971293, Temp: -0.2493064698108615, AuxDAC: 0.0679316819269532},
	},
	{
		ADCAmp:   ADCAmp{Scale: 6.510941373817512, Offset: 81.12896068467317},
		ADCPerPE: Linear{Offset: -143.33292491599002, Temp: -0.3156532141564224, AuxDAC: 0.0938045438530023},
		PEPerMIP: Linear{Offset: -79.25182088382198, Temp: -0.2923868693440639, AuxDAC: 0.07643681240096512},
	},
}

// Validate checks every panel for finite coefficients and a positive
// low-gain scale.
func (t *Table) Validate() error {
	for ch, p := range t {
		for _, c := range p.coefficients() {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return fmt.Errorf("channel %d: non-finite calibration coefficient", ch)
			}
		}
		if p.ADCAmp.Scale <= 0 {
			return fmt.Errorf("channel %d: adc_amp scale must be positive, got %v", ch, p.ADCAmp.Scale)
		}
	}
	return nil
}

// Panel returns the calibration of a channel
func (t *Table) Panel(channel int) (Panel, error) {
	if channel < 0 || channel >= NumChannels {
		return Panel{}, fmt.Errorf("channel %d out of range 0-%d", channel, NumChannels-1)
	}
	return t[channel], nil
}

// tableFile is the on-disk schema of a calibration override
type tableFile struct {
	Panels []Panel `json:"panels"`
}

// LoadTable loads a calibration table from a JSON file of the form
// {"panels": [ ...8 panels... ]} and validates it.
func LoadTable(path string) (*Table, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("calibration file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat calibration file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("calibration file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var f tableFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	if len(f.Panels) != NumChannels {
		return nil, fmt.Errorf("calibration file has %d panels, want %d", len(f.Panels), NumChannels)
	}

	var t Table
	copy(t[:], f.Panels)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}
	return &t, nil
}
