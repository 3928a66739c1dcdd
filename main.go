// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// udaqtool - MicroDAQ scintillator panel telemetry decoder
//
// A CLI tool for decoding archived MicroDAQ monitor and hit-buffer files
// into temperature readings and calibrated hit rates.

package main

import (
	"os"

	"github.com/icescint/udaqtool/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
