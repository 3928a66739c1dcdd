// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icescint/udaqtool/pkg/calib"
	"github.com/icescint/udaqtool/pkg/udaq"
)

// CalibrationEnv names the environment variable holding a calibration
// file path. The --calibration flag takes precedence.
const CalibrationEnv = "UDAQ_CALIBRATION"

var (
	// Wire format flags
	checksumOrder string

	// Calibration flags
	calibrationPath string
	auxDAC          float64
	maxADC          int
)

var rootCmd = &cobra.Command{
	Use:   "udaqtool",
	Short: "MicroDAQ scintillator panel telemetry decoder",
	Long: `udaqtool - A CLI tool for decoding archived MicroDAQ scintillator panel data.

Reads an archive of monitor and hit-buffer files, tracks the temperature of
each of the eight panels and converts every hit buffer into calibrated hit
rates at energy thresholds from 0 to 7 MIP.

Archive formats:
  name.flat.tar   outer tar wrapping name.tgz
  name.tgz        gzipped tar of member files (also .tar.gz)
  name.tar        plain tar of member files

The checksum byte order of the recorded frames is a format version:
  --checksum-order le   format v1 (default)
  --checksum-order be   format v2

A calibration table override is read from --calibration, or from the
UDAQ_CALIBRATION environment variable if the flag is not set.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&checksumOrder, "checksum-order", udaq.ChecksumLittleEndian.String(),
		"Checksum byte order: le (format v1) or be (format v2)")

	rootCmd.PersistentFlags().StringVarP(&calibrationPath, "calibration", "c", "",
		"Calibration table JSON file (default: built-in table, or $"+CalibrationEnv+")")
	rootCmd.PersistentFlags().Float64Var(&auxDAC, "auxdac", calib.AuxDAC, "SiPM bias (AUXDAC) setting of the recorded data")
	rootCmd.PersistentFlags().IntVar(&maxADC, "max-adc", calib.MaxADC, "First saturated ADC code")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// newDecoder builds the frame decoder from the wire format flags
func newDecoder() (*udaq.Decoder, error) {
	order, err := udaq.ParseChecksumOrder(checksumOrder)
	if err != nil {
		return nil, err
	}
	return udaq.NewDecoder(order), nil
}

// loadTable returns the calibration table from --calibration,
// $UDAQ_CALIBRATION or the built-in defaults.
func loadTable() (*calib.Table, error) {
	path := calibrationPath
	if path == "" {
		path = os.Getenv(CalibrationEnv)
	}
	if path == "" {
		table := calib.DefaultTable
		return &table, nil
	}
	return calib.LoadTable(path)
}

// newEngine validates the calibration configuration up front
func newEngine() (*calib.Engine, error) {
	table, err := loadTable()
	if err != nil {
		return nil, err
	}
	if maxADC < 1 || maxADC > 0x1000 {
		return nil, fmt.Errorf("--max-adc %d out of range 1-4096", maxADC)
	}

	model := calib.DefaultModel()
	model.AuxDAC = auxDAC
	model.MaxADC = uint16(maxADC)

	engine, err := calib.NewEngine(table, model)
	if err != nil {
		return nil, fmt.Errorf("invalid calibration: %w", err)
	}
	return engine, nil
}
