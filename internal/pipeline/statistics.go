// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pipeline

import (
	"fmt"
	"time"

	"github.com/icescint/udaqtool/internal/archive"
	"github.com/icescint/udaqtool/pkg/udaq"
)

// Statistics tracks member and failure counts of a run
type Statistics struct {
	StartTime time.Time
	EndTime   time.Time

	// Counters
	TotalMembers         uint64
	MonitorMembers       uint64
	HitBufMembers        uint64
	ConfigMembers        uint64
	MonitorRecords       uint64
	HitRateRecords       uint64
	SkippedNoTemperature uint64
	Failures             uint64

	// Failures by error kind; unclassified errors use kind 0
	FailuresByKind map[udaq.ErrorKind]uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:      time.Now(),
		FailuresByKind: make(map[udaq.ErrorKind]uint64),
	}
}

// countMember counts a member by type
func (s *Statistics) countMember(t archive.MemberType) {
	s.TotalMembers++
	switch t {
	case archive.TypeMonitor:
		s.MonitorMembers++
	case archive.TypeHitBuf:
		s.HitBufMembers++
	case archive.TypeConfig:
		s.ConfigMembers++
	}
}

// countFailure counts a skipped member by error kind
func (s *Statistics) countFailure(err error) {
	s.Failures++
	s.FailuresByKind[udaq.KindOf(err)]++
}

// Records returns the number of records emitted
func (s *Statistics) Records() uint64 {
	return s.MonitorRecords + s.HitRateRecords
}

// Duration returns the wall time of the run
func (s *Statistics) Duration() time.Duration {
	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartTime)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	var failurePercent float64
	if s.TotalMembers > 0 {
		failurePercent = float64(s.Failures) * 100.0 / float64(s.TotalMembers)
	}

	result := fmt.Sprintf("=== Statistics (%.1f seconds) ===\n", s.Duration().Seconds())
	result += fmt.Sprintf("Total Members:   %8d\n", s.TotalMembers)
	result += fmt.Sprintf("  Monitor:       %8d\n", s.MonitorMembers)
	result += fmt.Sprintf("  Hit Buffer:    %8d\n", s.HitBufMembers)
	result += fmt.Sprintf("  Config:        %8d\n", s.ConfigMembers)
	result += fmt.Sprintf("Monitor Records: %8d\n", s.MonitorRecords)
	result += fmt.Sprintf("Hit Rates:       %8d\n", s.HitRateRecords)

	if s.SkippedNoTemperature > 0 {
		result += fmt.Sprintf("No Temperature:  %8d\n", s.SkippedNoTemperature)
	}
	if s.Failures > 0 {
		result += fmt.Sprintf("Failures:        %8d (%.1f%%)\n", s.Failures, failurePercent)
		for _, kind := range append([]udaq.ErrorKind{0}, udaq.Kinds()...) {
			if n := s.FailuresByKind[kind]; n > 0 {
				result += fmt.Sprintf("  %-22s %5d\n", kindLabel(kind)+":", n)
			}
		}
	}

	return result
}

func kindLabel(k udaq.ErrorKind) string {
	if k == 0 {
		return "Other"
	}
	return k.String()
}
