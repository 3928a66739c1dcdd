// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package archive reads MicroDAQ data archives and resolves their members.
package archive

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/icescint/udaqtool/pkg/udaq"
)

// Producer is the fixed producer tag of every member name
const Producer = "MicroDAQ"

const (
	timestampLayout = "20060102_150405"
	readoutMarker   = "readout"
	maxChannel      = 7
)

// MemberType is the binary type of an archive member
type MemberType int

const (
	TypeMonitor MemberType = iota
	TypeHitBuf
	TypeConfig
)

// String returns the type tag used in member names
func (t MemberType) String() string {
	switch t {
	case TypeMonitor:
		return "monitor"
	case TypeHitBuf:
		return "hitbuf"
	case TypeConfig:
		return "config"
	default:
		return fmt.Sprintf("MemberType(%d)", int(t))
	}
}

func parseMemberType(tag string) (MemberType, bool) {
	switch tag {
	case "monitor":
		return TypeMonitor, true
	case "hitbuf":
		return TypeHitBuf, true
	case "config":
		return TypeConfig, true
	}
	return 0, false
}

// Member is one resolved file of an archive
type Member struct {
	Name    string
	Type    MemberType
	Channel int
	Time    time.Time
	Data    []byte
}

// ParseName resolves a member name of the form
// MicroDAQ_<type>_<channel>_<YYYYMMDD_HHMMSS><suffix>, where the suffix
// is either a _readout... segment or a file extension.
func ParseName(name string) (Member, error) {
	parts := strings.SplitN(name, "_", 4)
	if len(parts) != 4 {
		return Member{}, invalidName(name, "expected %s_<type>_<channel>_<timestamp>", Producer)
	}
	if parts[0] != Producer {
		return Member{}, invalidName(name, "does not start with %s", Producer)
	}

	typ, ok := parseMemberType(parts[1])
	if !ok {
		return Member{}, invalidName(name, "unknown binary type %q", parts[1])
	}

	channel, err := strconv.Atoi(parts[2])
	if err != nil || channel < 0 || channel > maxChannel {
		return Member{}, invalidName(name, "channel %q not in 0-%d", parts[2], maxChannel)
	}

	stamp := parts[3]
	sep := "."
	if strings.Contains(stamp, readoutMarker) {
		sep = "_"
	}
	if i := strings.LastIndex(stamp, sep); i >= 0 {
		stamp = stamp[:i]
	} else {
		stamp = ""
	}

	t, err := time.ParseInLocation(timestampLayout, stamp, time.UTC)
	if err != nil {
		return Member{}, invalidName(name, "bad timestamp %q", stamp)
	}

	return Member{Name: name, Type: typ, Channel: channel, Time: t}, nil
}

func invalidName(name, format string, args ...interface{}) error {
	return udaq.Errorf(udaq.KindInvalidMemberName, "invalid member name %q: %s", name, fmt.Sprintf(format, args...))
}

// SortByTime orders members by timestamp, keeping archive order for ties
func SortByTime(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Time.Before(members[j].Time)
	})
}

// Name builds a member name with a file extension suffix
func Name(typ MemberType, channel int, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%d_%s.%s", Producer, typ, channel, t.UTC().Format(timestampLayout), ext)
}
