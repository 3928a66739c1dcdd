// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/icescint/udaqtool/internal/archive"
	"github.com/icescint/udaqtool/internal/pipeline"
)

// memberItem is one archive member in the browser
type memberItem struct {
	report pipeline.Report
}

// Implement list.Item interface
func (i memberItem) Title() string {
	return fmt.Sprintf("%s ch%d %s", i.report.Type, i.report.Channel, i.report.Time.Format("2006-01-02 15:04:05"))
}
func (i memberItem) Description() string { return i.report.Status.String() }
func (i memberItem) FilterValue() string { return i.report.Name }

// inspectModel is the Bubble Tea model of the inspect browser
type inspectModel struct {
	archiveName string
	stats       *pipeline.Statistics
	memberList  list.Model
	width       int
	height      int
	quitting    bool
}

func newInspectModel(archivePath string, reports []pipeline.Report, stats *pipeline.Statistics) inspectModel {
	items := make([]list.Item, len(reports))
	for i, r := range reports {
		items[i] = memberItem{report: r}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	memberList := list.New(items, delegate, 44, 10)
	memberList.Title = "Members"
	memberList.SetShowStatusBar(false)
	memberList.SetShowHelp(false)
	memberList.SetFilteringEnabled(false)

	return inspectModel{
		archiveName: filepath.Base(archivePath),
		stats:       stats,
		memberList:  memberList,
		width:       80,
		height:      24,
	}
}

func (m inspectModel) Init() tea.Cmd {
	return nil
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := m.height - 6
		if listHeight < 4 {
			listHeight = 4
		}
		m.memberList.SetSize(44, listHeight)
	}

	var cmd tea.Cmd
	m.memberList, cmd = m.memberList.Update(msg)
	return m, cmd
}

func (m inspectModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("UDAQTOOL - INSPECT " + m.archiveName))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%d members | %d records | %d failures | %d without temperature | Press 'q' to quit",
		m.stats.TotalMembers, m.stats.Records(), m.stats.Failures, m.stats.SkippedNoTemperature)))
	s.WriteString("\n\n")

	detailWidth := m.width - 50
	if detailWidth < 30 {
		detailWidth = 30
	}

	detail := headerStyle.Render("(no members)")
	if item, ok := m.memberList.SelectedItem().(memberItem); ok {
		detail = m.renderDetail(item.report)
	}

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.memberList.View(),
		boxStyle.Width(detailWidth).Render(detail),
	))
	return s.String()
}

// renderDetail shows one member's outcome with a per-threshold table for
// calibrated hit buffers
func (m inspectModel) renderDetail(r pipeline.Report) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(r.Name))
	b.WriteString("\n\n")

	switch r.Status {
	case pipeline.StatusFailed:
		b.WriteString(errorStyle.Render("✗ " + r.Err.Error()))
		return b.String()
	case pipeline.StatusSkipped:
		b.WriteString(warningStyle.Render("ℹ " + r.Err.Error()))
		return b.String()
	case pipeline.StatusIgnored:
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s member, not decoded", r.Type)))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Temperature:"), valueStyle.Render(fmt.Sprintf("%.2f", r.Temperature))))
	if r.Type == archive.TypeMonitor {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Device time:"),
			valueStyle.Render(r.DeviceTime.Format("2006-01-02 15:04:05"))))
		return b.String()
	}

	res := r.Result
	b.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Seconds:"), valueStyle.Render(fmt.Sprintf("%d", res.Seconds))))
	b.WriteString(headerStyle.Render(fmt.Sprintf("%8s %8s %10s", "MIP", "hits", "rate/s")))
	b.WriteString("\n")
	rates := res.Rates()
	for i, t := range res.Thresholds {
		b.WriteString(fmt.Sprintf("%8.1f %8d %10.3f\n", t, res.Hits[i], rates[i]))
	}
	return b.String()
}
