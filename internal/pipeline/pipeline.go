// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package pipeline drives the decoding of an archive: it orders the
// members, tracks the last temperature of each channel and turns every
// member into an output record.
package pipeline

import (
	"io"
	"log"
	"time"

	"github.com/icescint/udaqtool/internal/archive"
	"github.com/icescint/udaqtool/internal/output"
	"github.com/icescint/udaqtool/pkg/calib"
	"github.com/icescint/udaqtool/pkg/udaq"
)

// ChannelState holds the most recent temperature of each channel
type ChannelState struct {
	temps [calib.NumChannels]float64
	known [calib.NumChannels]bool
}

// Set records the temperature of a channel
func (s *ChannelState) Set(channel int, temperature float64) {
	s.temps[channel] = temperature
	s.known[channel] = true
}

// Temperature returns the last temperature of a channel
func (s *ChannelState) Temperature(channel int) (float64, bool) {
	return s.temps[channel], s.known[channel]
}

// Status is the outcome of one member
type Status int

const (
	StatusRecord Status = iota
	StatusSkipped
	StatusFailed
	StatusIgnored
)

func (s Status) String() string {
	switch s {
	case StatusRecord:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Report describes the processing of one member
type Report struct {
	Name        string
	Type        archive.MemberType
	Channel     int
	Time        time.Time
	Status      Status
	Err         error
	Temperature float64
	DeviceTime  time.Time
	Result      calib.Result
}

// Pipeline converts archive members into records
type Pipeline struct {
	decoder *udaq.Decoder
	engine  *calib.Engine
	errLog  *log.Logger

	// OnMember, when set, is called after every member
	OnMember func(Report)

	state ChannelState
	stats *Statistics
}

// New creates a pipeline. Member failures are written to errLog as
// "<member-name> <message>"; a nil errLog discards them.
func New(decoder *udaq.Decoder, engine *calib.Engine, errLog *log.Logger) *Pipeline {
	if errLog == nil {
		errLog = log.New(io.Discard, "", 0)
	}
	return &Pipeline{
		decoder: decoder,
		engine:  engine,
		errLog:  errLog,
		stats:   NewStatistics(),
	}
}

// Statistics returns the counters of the pipeline
func (p *Pipeline) Statistics() *Statistics {
	return p.stats
}

// Run processes members in timestamp order and writes one record per
// monitor and calibrated hit buffer to sink. members is sorted in place
// and each member's data is released once processed.
//
// Member failures are logged and counted; only sink errors abort the run.
func (p *Pipeline) Run(members []archive.Member, sink output.Sink) error {
	archive.SortByTime(members)

	for i := range members {
		m := &members[i]
		p.stats.countMember(m.Type)

		report := Report{Name: m.Name, Type: m.Type, Channel: m.Channel, Time: m.Time}
		var err error
		switch m.Type {
		case archive.TypeMonitor:
			err = p.processMonitor(m, sink, &report)
		case archive.TypeHitBuf:
			err = p.processHitBuf(m, sink, &report)
		default:
			report.Status = StatusIgnored
		}
		m.Data = nil

		if p.OnMember != nil {
			p.OnMember(report)
		}
		if err != nil {
			p.stats.EndTime = time.Now()
			return err
		}
	}

	p.stats.EndTime = time.Now()
	return nil
}

func (p *Pipeline) fail(m *archive.Member, report *Report, err error) {
	p.errLog.Printf("%s %v", m.Name, err)
	p.stats.countFailure(err)
	report.Status = StatusFailed
	report.Err = err
}

func (p *Pipeline) processMonitor(m *archive.Member, sink output.Sink, report *Report) error {
	mon, err := p.decoder.DecodeMonitorFile(m.Data)
	if err != nil {
		p.fail(m, report, err)
		return nil
	}

	p.state.Set(m.Channel, mon.Temperature)
	report.Temperature = mon.Temperature
	report.DeviceTime = mon.DeviceTime

	if err := sink.WriteMonitor(output.MonitorReading{
		Channel: m.Channel,
		Time:    output.EpochSeconds(m.Time),
		Temp:    mon.Temperature,
	}); err != nil {
		return err
	}
	p.stats.MonitorRecords++
	return nil
}

func (p *Pipeline) processHitBuf(m *archive.Member, sink output.Sink, report *Report) error {
	temperature, ok := p.state.Temperature(m.Channel)
	if !ok {
		// no soft threshold without a temperature
		p.stats.SkippedNoTemperature++
		report.Status = StatusSkipped
		report.Err = udaq.Errorf(udaq.KindCalibrationUnavailable,
			"calibration unavailable: no temperature for channel %d", m.Channel)
		return nil
	}
	report.Temperature = temperature

	buf, err := p.decoder.DecodeHitFile(m.Data)
	if err != nil {
		p.fail(m, report, err)
		return nil
	}
	res, err := p.engine.Calibrate(m.Channel, temperature, buf)
	if err != nil {
		p.fail(m, report, err)
		return nil
	}
	report.Result = res

	if err := sink.WriteHitRate(output.HitRateRecord{
		Channel: m.Channel,
		Time:    output.EpochSeconds(m.Time),
		Results: res.Rates(),
	}); err != nil {
		return err
	}
	p.stats.HitRateRecords++
	return nil
}
