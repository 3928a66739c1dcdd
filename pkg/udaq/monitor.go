// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package udaq

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MonitorPacket holds the fields extracted from a monitor member
type MonitorPacket struct {
	DeviceTime  time.Time // TAI clock of the readout, device local, UTC location
	Temperature float64   // device units
}

// DecodeMonitor finds the temperature and TAI packets of a monitor member
// and decodes them.
func DecodeMonitor(packets [][]byte) (MonitorPacket, error) {
	var ptemp, ptime []byte
	for _, p := range packets {
		if ptemp == nil && bytes.HasPrefix(p, []byte(TemperatureTag)) {
			ptemp = p
		}
		if ptime == nil && bytes.HasPrefix(p, []byte(TimeTag)) {
			ptime = p
		}
	}
	if ptemp == nil || ptime == nil {
		return MonitorPacket{}, Errorf(KindMonitorFieldMissing, "either temperature or TAI packet not found")
	}

	temp, err := parseTemperature(ptemp)
	if err != nil {
		return MonitorPacket{}, err
	}
	t, err := parseTAI(ptime)
	if err != nil {
		return MonitorPacket{}, err
	}
	return MonitorPacket{DeviceTime: t, Temperature: temp}, nil
}

// parseTemperature reads the second whitespace-separated token.
func parseTemperature(p []byte) (float64, error) {
	fields := strings.Fields(strings.TrimRight(string(p), "\n\x00"))
	if len(fields) < 2 {
		return 0, Errorf(KindMonitorMalformed, "temperature packet %q has no value", p)
	}
	temp, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, Errorf(KindMonitorMalformed, "temperature packet: %v", err)
	}
	if math.IsNaN(temp) || math.IsInf(temp, 0) {
		return 0, Errorf(KindMonitorMalformed, "temperature packet: non-finite value %q", fields[1])
	}
	return temp, nil
}

// parseTAI decodes "TAI: yy ddd hh mm ss sod\tCLK: ...".
// The seconds-of-day token is ignored.
func parseTAI(p []byte) (time.Time, error) {
	s := string(p)
	if i := strings.Index(s, ClockTag); i >= 0 {
		s = s[:i]
	}
	fields := strings.Fields(s)
	if len(fields) != 7 {
		return time.Time{}, Errorf(KindMonitorMalformed, "TAI packet %q: expected 5 time fields, got %d", s, len(fields)-2)
	}

	var v [5]int
	for i, f := range fields[1:6] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return time.Time{}, Errorf(KindMonitorMalformed, "TAI packet: %v", err)
		}
		v[i] = n
	}
	year, day, h, m, sec := v[0], v[1], v[2], v[3], v[4]
	if day < 1 || day > 366 || h > 23 || m > 59 || sec > 60 || h < 0 || m < 0 || sec < 0 {
		return time.Time{}, Errorf(KindMonitorMalformed, "TAI packet: out of range %s", formatTAI(year, day, h, m, sec))
	}

	t := time.Date(2000+year, time.January, 1, h, m, sec, 0, time.UTC).AddDate(0, 0, day-1)
	return t, nil
}

func formatTAI(year, day, h, m, s int) string {
	return fmt.Sprintf("%02d %03d %02d:%02d:%02d", year, day, h, m, s)
}
