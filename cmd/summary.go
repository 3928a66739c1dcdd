// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/icescint/udaqtool/internal/pipeline"
	"github.com/icescint/udaqtool/pkg/udaq"
)

// Styles shared by the summary and the inspect view
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// renderSummary formats the statistics of a run. Without styling it falls
// back to the plain statistics text.
func renderSummary(archivePath string, stats *pipeline.Statistics, styled bool) string {
	if !styled {
		return stats.String()
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Members:"), valueStyle.Render(fmt.Sprintf("%d", stats.TotalMembers)),
		labelStyle.Render("Monitor:"), valueStyle.Render(fmt.Sprintf("%d", stats.MonitorMembers)),
		labelStyle.Render("Hit buffer:"), valueStyle.Render(fmt.Sprintf("%d", stats.HitBufMembers)),
		labelStyle.Render("Config:"), valueStyle.Render(fmt.Sprintf("%d", stats.ConfigMembers)),
	))
	content.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Temperatures:"), valueStyle.Render(fmt.Sprintf("%d", stats.MonitorRecords)),
		labelStyle.Render("Hit rates:"), valueStyle.Render(fmt.Sprintf("%d", stats.HitRateRecords)),
	))

	if stats.SkippedNoTemperature > 0 {
		content.WriteString(fmt.Sprintf("\n%s %s",
			labelStyle.Render("No temperature:"),
			warningStyle.Render(fmt.Sprintf("%d", stats.SkippedNoTemperature)),
		))
	}
	if stats.Failures > 0 {
		content.WriteString(fmt.Sprintf("\n%s %s",
			labelStyle.Render("Failures:"), errorStyle.Render(fmt.Sprintf("%d", stats.Failures))))
		for _, kind := range udaq.Kinds() {
			if n := stats.FailuresByKind[kind]; n > 0 {
				content.WriteString(fmt.Sprintf("\n  %s %d", headerStyle.Render(kind.String()+":"), n))
			}
		}
		if n := stats.FailuresByKind[0]; n > 0 {
			content.WriteString(fmt.Sprintf("\n  %s %d", headerStyle.Render("Other:"), n))
		}
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("UDAQTOOL - " + filepath.Base(archivePath)))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Processed in %.1f seconds", stats.Duration().Seconds())))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(content.String()))
	s.WriteString("\n")
	return s.String()
}
