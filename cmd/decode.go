// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/icescint/udaqtool/internal/archive"
	"github.com/icescint/udaqtool/internal/output"
	"github.com/icescint/udaqtool/internal/pipeline"
	"github.com/icescint/udaqtool/internal/store"
)

var (
	outputFormat string
	outputPath   string
	dbPath       string
	showSummary  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode <archive>",
	Short: "Decode an archive into temperature and hit rate records",
	Long: `Decode every member of an archive in timestamp order and write one record
per line to standard output:

  {"channel": 3, "time": 1613304000, "temp": 250}
  {"channel": 3, "time": 1613304300, "results": [ ...15 hit rates... ]}

Hit rates are hits per second at thresholds 0, 0.5, ... 7 MIP. A hit buffer
is only calibrated once a monitor reading for its channel has been seen.

Members that fail to decode are reported on standard error as
"<member-name> <message>" and skipped. A malformed archive or member name
aborts the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().StringVarP(&outputFormat, "format", "f", string(output.FormatJSON), "Record format: json or cbor")
	decodeCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "Output file (- for stdout, .gz suffix compresses)")
	decodeCmd.Flags().StringVar(&dbPath, "db", "", "Also store records in this sqlite database")
	decodeCmd.Flags().BoolVarP(&showSummary, "summary", "s", false, "Print a run summary to stderr")

	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) (err error) {
	// Validate configuration before touching the archive
	decoder, err := newDecoder()
	if err != nil {
		return err
	}
	engine, err := newEngine()
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	members, err := archive.Open(args[0])
	if err != nil {
		return err
	}

	out, err := output.Create(outputPath, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()

	stream, err := output.NewStreamSink(out, format)
	if err != nil {
		return err
	}
	sinks := output.MultiSink{stream}

	var run *store.Run
	if dbPath != "" {
		db, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		run, err = db.BeginRun(filepath.Base(args[0]), decoder.Order().String(), engine.Model().Thresholds)
		if err != nil {
			return err
		}
		sinks = append(sinks, run)
	}

	// Member errors are bare "<member-name> <message>" lines
	errLog := log.New(os.Stderr, "", 0)

	p := pipeline.New(decoder, engine, errLog)
	if err := p.Run(members, sinks); err != nil {
		return err
	}

	stats := p.Statistics()
	if run != nil {
		if err := run.Finish(int(stats.TotalMembers), int(stats.Failures)); err != nil {
			return err
		}
	}
	if showSummary {
		fmt.Fprint(os.Stderr, renderSummary(args[0], stats, term.IsTerminal(int(os.Stderr.Fd()))))
	}
	return nil
}
