// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/icescint/udaqtool/internal/archive"
	"github.com/icescint/udaqtool/internal/synth"
	"github.com/icescint/udaqtool/pkg/udaq"
)

var (
	synthChannels    []int
	synthStart       string
	synthHitBuffers  int
	synthInterval    time.Duration
	synthSeconds     int
	synthRate        float64
	synthMuons       float64
	synthTemperature float64
	synthBlockSize   int
	synthSeed        int64
)

var synthCmd = &cobra.Command{
	Use:   "synth <archive>",
	Short: "Write a synthetic archive for testing",
	Long: `Generate an archive of monitor and hit-buffer members with a known energy
spectrum. Hit energies are converted to ADC codes with the same calibration
table and settings the decoder uses, so decoding the result reproduces the
generated hit rates.

The archive format follows the file name suffix (.flat.tar, .tgz, .tar.gz
or .tar). Frames are written in the --checksum-order byte order.

Example:
  udaqtool synth --channels 0,3 --buffers 12 test.flat.tar
  udaqtool decode test.flat.tar`,
	Args: cobra.ExactArgs(1),
	RunE: runSynth,
}

func init() {
	defaults := synth.DefaultConfig()

	synthCmd.Flags().IntSliceVar(&synthChannels, "channels", defaults.Channels, "Panel channels to generate")
	synthCmd.Flags().StringVar(&synthStart, "start", defaults.Start.Format(time.RFC3339), "Timestamp of the first member (RFC 3339)")
	synthCmd.Flags().IntVarP(&synthHitBuffers, "buffers", "n", defaults.HitBuffers, "Hit buffers per channel")
	synthCmd.Flags().DurationVar(&synthInterval, "interval", defaults.Interval, "Time between hit buffers")
	synthCmd.Flags().IntVar(&synthSeconds, "seconds", defaults.Seconds, "Whole seconds per hit buffer")
	synthCmd.Flags().Float64Var(&synthRate, "rate", defaults.HitsPerSecond, "Mean hits per second")
	synthCmd.Flags().Float64Var(&synthMuons, "muons", defaults.MuonFraction, "Fraction of hits from the muon peak")
	synthCmd.Flags().Float64Var(&synthTemperature, "temperature", defaults.Temperature, "Panel temperature in device units")
	synthCmd.Flags().IntVar(&synthBlockSize, "block-size", defaults.BlockSize, "Hit buffer block size in bytes")
	synthCmd.Flags().Int64Var(&synthSeed, "seed", defaults.Seed, "Random seed")

	rootCmd.AddCommand(synthCmd)
}

func runSynth(cmd *cobra.Command, args []string) error {
	order, err := udaq.ParseChecksumOrder(checksumOrder)
	if err != nil {
		return err
	}
	table, err := loadTable()
	if err != nil {
		return err
	}
	start, err := time.Parse(time.RFC3339, synthStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}

	cfg := synth.Config{
		Start:         start.UTC(),
		Channels:      synthChannels,
		HitBuffers:    synthHitBuffers,
		Interval:      synthInterval,
		Seconds:       synthSeconds,
		HitsPerSecond: synthRate,
		MuonFraction:  synthMuons,
		Temperature:   synthTemperature,
		Order:         order,
		BlockSize:     synthBlockSize,
		Seed:          synthSeed,
		Table:         table,
		AuxDAC:        auxDAC,
	}

	members, err := synth.Generate(cfg)
	if err != nil {
		return err
	}
	if err := archive.Create(args[0], members); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Wrote %d members to %s\n", len(members), args[0])
	return nil
}
