// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icescint/udaqtool/internal/archive"
	"github.com/icescint/udaqtool/internal/output"
	"github.com/icescint/udaqtool/internal/synth"
	"github.com/icescint/udaqtool/pkg/calib"
	"github.com/icescint/udaqtool/pkg/udaq"
)

// useFlags resets the package-level flag values to their defaults and
// restores them when the test ends
func useFlags(t *testing.T) {
	t.Helper()

	order, calPath, aux, adc := checksumOrder, calibrationPath, auxDAC, maxADC
	format, out, db, summary := outputFormat, outputPath, dbPath, showSummary
	t.Cleanup(func() {
		checksumOrder, calibrationPath, auxDAC, maxADC = order, calPath, aux, adc
		outputFormat, outputPath, dbPath, showSummary = format, out, db, summary
	})

	checksumOrder = udaq.ChecksumLittleEndian.String()
	calibrationPath = ""
	auxDAC = calib.AuxDAC
	maxADC = calib.MaxADC
	outputFormat = string(output.FormatJSON)
	outputPath = "-"
	dbPath = ""
	showSummary = false
	t.Setenv(CalibrationEnv, "")
}

// writeArchive writes a one-channel synthetic archive with two hit buffers
func writeArchive(t *testing.T, order udaq.ChecksumOrder) string {
	t.Helper()

	cfg := synth.DefaultConfig()
	cfg.Order = order
	cfg.HitBuffers = 2
	members, err := synth.Generate(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.flat.tar")
	require.NoError(t, archive.Create(path, members))
	return path
}

func writeCalibration(t *testing.T, name string, table calib.Table) string {
	t.Helper()

	data, err := json.Marshal(struct {
		Panels []calib.Panel `json:"panels"`
	}{table[:]})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// readCBOR decodes the gzipped CBOR record sequence written by decode
func readCBOR(t *testing.T, path string) (output.MonitorReading, []output.HitRateRecord) {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	dec := cbor.NewDecoder(zr)
	var mon output.MonitorReading
	require.NoError(t, dec.Decode(&mon))

	var rates []output.HitRateRecord
	for {
		var r output.HitRateRecord
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			return mon, rates
		}
		require.NoError(t, err)
		rates = append(rates, r)
	}
}

// ============================================================
// Decode Command Tests
// ============================================================

func TestRunDecode_BigEndianCBORWithStore(t *testing.T) {
	useFlags(t)
	archivePath := writeArchive(t, udaq.ChecksumBigEndian)

	dir := t.TempDir()
	checksumOrder = "be"
	outputFormat = "cbor"
	outputPath = filepath.Join(dir, "records.cbor.gz")
	dbPath = filepath.Join(dir, "records.db")

	require.NoError(t, runDecode(decodeCmd, []string{archivePath}))

	mon, rates := readCBOR(t, outputPath)
	assert.Equal(t, 3, mon.Channel)
	assert.Equal(t, 250.0, mon.Temp)
	require.Len(t, rates, 2)
	for _, r := range rates {
		assert.Equal(t, 3, r.Channel)
		assert.Len(t, r.Results, len(calib.DefaultThresholds))
		assert.Greater(t, r.Results[0], 0.0)
	}

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var members, failures int
	var finished sql.NullString
	require.NoError(t, db.QueryRow(`SELECT members, failures, finished_at FROM runs`).Scan(&members, &failures, &finished))
	assert.Equal(t, 3, members)
	assert.Equal(t, 0, failures)
	assert.True(t, finished.Valid)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM hit_rates`).Scan(&rows))
	assert.Equal(t, 2*len(calib.DefaultThresholds), rows)
}

func TestRunDecode_WrongChecksumOrderSkipsMembers(t *testing.T) {
	useFlags(t)
	archivePath := writeArchive(t, udaq.ChecksumBigEndian)

	outputFormat = "cbor"
	outputPath = filepath.Join(t.TempDir(), "records.cbor.gz")

	// every member fails its checksum, which is not fatal
	require.NoError(t, runDecode(decodeCmd, []string{archivePath}))

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), "gzip stream must still be closed properly")

	f, err := os.Open(outputPath)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRunDecode_CalibrationFromEnvironment(t *testing.T) {
	useFlags(t)
	archivePath := writeArchive(t, udaq.ChecksumLittleEndian)

	// channel 3 has no physical gain in this table
	table := calib.DefaultTable
	table[3].ADCPerPE.Offset = -1000
	t.Setenv(CalibrationEnv, writeCalibration(t, "panels.json", table))

	outputFormat = "cbor"
	outputPath = filepath.Join(t.TempDir(), "records.cbor.gz")
	require.NoError(t, runDecode(decodeCmd, []string{archivePath}))

	mon, rates := readCBOR(t, outputPath)
	assert.Equal(t, 3, mon.Channel)
	assert.Empty(t, rates, "hit buffers must fail calibration with the override table")
}

func TestRunDecode_CalibrationFlagOverridesEnvironment(t *testing.T) {
	useFlags(t)
	archivePath := writeArchive(t, udaq.ChecksumLittleEndian)

	t.Setenv(CalibrationEnv, filepath.Join(t.TempDir(), "missing.json"))
	calibrationPath = writeCalibration(t, "panels.json", calib.DefaultTable)

	outputFormat = "cbor"
	outputPath = filepath.Join(t.TempDir(), "records.cbor.gz")
	require.NoError(t, runDecode(decodeCmd, []string{archivePath}))

	_, rates := readCBOR(t, outputPath)
	assert.Len(t, rates, 2)
}

func TestRunDecode_InvalidConfiguration(t *testing.T) {
	archivePath := writeArchive(t, udaq.ChecksumLittleEndian)

	tests := []struct {
		name  string
		setup func(t *testing.T)
	}{
		{"checksum order", func(t *testing.T) { checksumOrder = "middle" }},
		{"format", func(t *testing.T) { outputFormat = "xml" }},
		{"max adc", func(t *testing.T) { maxADC = 0 }},
		{"calibration file", func(t *testing.T) {
			t.Setenv(CalibrationEnv, filepath.Join(t.TempDir(), "missing.json"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useFlags(t)
			outputPath = filepath.Join(t.TempDir(), "records.json")
			tt.setup(t)

			assert.Error(t, runDecode(decodeCmd, []string{archivePath}))
			_, err := os.Stat(outputPath)
			assert.True(t, os.IsNotExist(err), "no output may be created for a bad configuration")
		})
	}
}
