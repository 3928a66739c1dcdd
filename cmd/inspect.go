// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/icescint/udaqtool/internal/archive"
	"github.com/icescint/udaqtool/internal/output"
	"github.com/icescint/udaqtool/internal/pipeline"
)

var inspectText bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Show the decode status of every archive member",
	Long: `Decode an archive without writing records and show what happened to each
member: its temperature, the whole seconds and hits per threshold of hit
buffers, or the reason it was skipped.

Opens an interactive browser when standard output is a terminal. Use
--text (or a pipe) for a plain report. Press 'q' to quit the browser.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVarP(&inspectText, "text", "t", false, "Print a plain text report")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	decoder, err := newDecoder()
	if err != nil {
		return err
	}
	engine, err := newEngine()
	if err != nil {
		return err
	}

	members, err := archive.Open(args[0])
	if err != nil {
		return err
	}

	var reports []pipeline.Report
	p := pipeline.New(decoder, engine, nil)
	p.OnMember = func(r pipeline.Report) { reports = append(reports, r) }
	if err := p.Run(members, &output.Collector{}); err != nil {
		return err
	}

	if inspectText || !term.IsTerminal(int(os.Stdout.Fd())) {
		writeReport(os.Stdout, reports)
		fmt.Fprint(os.Stdout, p.Statistics().String())
		return nil
	}

	prog := tea.NewProgram(newInspectModel(args[0], reports, p.Statistics()), tea.WithAltScreen())
	_, err = prog.Run()
	return err
}

// writeReport prints one line per member followed by its detail lines
func writeReport(w io.Writer, reports []pipeline.Report) {
	for _, r := range reports {
		fmt.Fprintf(w, "%-8s %s\n", "["+r.Status.String()+"]", r.Name)
		for _, line := range reportDetail(r) {
			fmt.Fprintf(w, "         %s\n", line)
		}
	}
}

// reportDetail describes the outcome of one member
func reportDetail(r pipeline.Report) []string {
	var lines []string
	switch r.Status {
	case pipeline.StatusFailed, pipeline.StatusSkipped:
		lines = append(lines, r.Err.Error())
	case pipeline.StatusIgnored:
		lines = append(lines, fmt.Sprintf("%s member, not decoded", r.Type))
	case pipeline.StatusRecord:
		switch r.Type {
		case archive.TypeMonitor:
			lines = append(lines, fmt.Sprintf("temperature %.2f, device time %s",
				r.Temperature, r.DeviceTime.Format("2006-01-02 15:04:05")))
		case archive.TypeHitBuf:
			lines = append(lines, fmt.Sprintf("temperature %.2f, %d whole seconds", r.Temperature, r.Result.Seconds))
			lines = append(lines, formatThresholds(r))
		}
	}
	return lines
}

// formatThresholds lists hits per threshold as "t:hits" pairs
func formatThresholds(r pipeline.Report) string {
	parts := make([]string, len(r.Result.Hits))
	for i, h := range r.Result.Hits {
		parts[i] = fmt.Sprintf("%g:%d", r.Result.Thresholds[i], h)
	}
	return "hits " + strings.Join(parts, " ")
}
