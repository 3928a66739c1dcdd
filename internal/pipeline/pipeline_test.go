// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pipeline

import (
	"bytes"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icescint/udaqtool/internal/archive"
	"github.com/icescint/udaqtool/internal/output"
	"github.com/icescint/udaqtool/pkg/calib"
	"github.com/icescint/udaqtool/pkg/udaq"
)

var (
	t0 = time.Date(2021, 2, 14, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(5 * time.Minute)
	t2 = t0.Add(10 * time.Minute)
)

// channel3Rates are the hit rates of channel3HitBuffer at 250 device units
var channel3Rates = []float64{2, 1.5, 1.5, 1, 1, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0, 0, 0, 0}

func sample(sub uint8, code uint16) udaq.Sample { return udaq.Sample{SubChannel: sub, Code: code} }

func channel3HitBuffer() []byte {
	hg, lg := uint8(udaq.SubChannelHighGain), uint8(udaq.SubChannelLowGain)
	var words []uint32
	add := func(w []uint32) { words = append(words, w...) }

	add([]uint32{udaq.PPSWord()})
	add(udaq.EncodeHit(true, 0, []udaq.Sample{sample(hg, 98), sample(lg, 49)}))
	add(udaq.EncodeHit(true, 0, []udaq.Sample{sample(hg, 102), sample(lg, 51)}))
	add([]uint32{udaq.PPSWord()})
	add(udaq.EncodeHit(false, 1, []udaq.Sample{sample(hg, 421)}))
	add(udaq.EncodeHit(false, 2, []udaq.Sample{sample(hg, 1640)}))
	add(udaq.EncodeHit(false, 3, []udaq.Sample{sample(hg, 2924)}))
	add(udaq.EncodeHit(false, 4, []udaq.Sample{sample(hg, 4095), sample(lg, 1062)}))
	add(udaq.EncodeHit(false, 5, []udaq.Sample{sample(hg, 90)}))
	add(udaq.EncodeHit(false, 6, nil))
	add([]uint32{udaq.PPSWord(), udaq.PPSWord()})
	return udaq.WordBytes(words)
}

func monitorMember(channel int, when time.Time, temp float64) archive.Member {
	return archive.Member{
		Name:    archive.Name(archive.TypeMonitor, channel, when, "bin"),
		Type:    archive.TypeMonitor,
		Channel: channel,
		Time:    when,
		Data:    udaq.EncodeMonitorFile(when, temp, udaq.ChecksumLittleEndian),
	}
}

func hitbufMember(channel int, when time.Time, data []byte) archive.Member {
	return archive.Member{
		Name:    archive.Name(archive.TypeHitBuf, channel, when, "bin"),
		Type:    archive.TypeHitBuf,
		Channel: channel,
		Time:    when,
		Data:    data,
	}
}

func hitFile(buf []byte) []byte {
	return udaq.EncodeHitFile(udaq.SplitBlocks(buf, 64), udaq.ChecksumLittleEndian)
}

func newTestPipeline(t *testing.T, errLog *log.Logger) *Pipeline {
	t.Helper()
	table := calib.DefaultTable
	engine, err := calib.NewEngine(&table, calib.DefaultModel())
	require.NoError(t, err)
	return New(udaq.NewDecoder(udaq.ChecksumLittleEndian), engine, errLog)
}

// ============================================================
// Ordering Tests
// ============================================================

func TestRun_OrdersMembersBeforeApplyingState(t *testing.T) {
	members := []archive.Member{
		monitorMember(3, t2, 300),
		hitbufMember(3, t1, hitFile(channel3HitBuffer())),
		monitorMember(3, t0, 250),
	}

	var sink output.Collector
	p := newTestPipeline(t, nil)
	require.NoError(t, p.Run(members, &sink))

	wantMonitors := []output.MonitorReading{
		{Channel: 3, Time: output.EpochSeconds(t0), Temp: 250},
		{Channel: 3, Time: output.EpochSeconds(t2), Temp: 300},
	}
	if diff := cmp.Diff(wantMonitors, sink.Monitors); diff != "" {
		t.Errorf("monitor records mismatch (-want +got):\n%s", diff)
	}

	// the hit buffer uses the earlier temperature, not the later one
	require.Len(t, sink.HitRates, 1)
	assert.Equal(t, channel3Rates, sink.HitRates[0].Results)
}

func TestRun_SkipsHitBufferWithoutTemperature(t *testing.T) {
	var errBuf bytes.Buffer
	members := []archive.Member{
		hitbufMember(5, t1, hitFile(channel3HitBuffer())),
		monitorMember(3, t0, 250),
	}

	var sink output.Collector
	var reports []Report
	p := newTestPipeline(t, log.New(&errBuf, "", 0))
	p.OnMember = func(r Report) { reports = append(reports, r) }
	require.NoError(t, p.Run(members, &sink))

	assert.Len(t, sink.Monitors, 1)
	assert.Empty(t, sink.HitRates)
	assert.Empty(t, errBuf.String())

	stats := p.Statistics()
	assert.Equal(t, uint64(1), stats.SkippedNoTemperature)
	assert.Equal(t, uint64(0), stats.Failures)

	require.Len(t, reports, 2)
	assert.Equal(t, StatusRecord, reports[0].Status)
	assert.Equal(t, StatusSkipped, reports[1].Status)
	assert.True(t, errors.Is(reports[1].Err, udaq.ErrCalibrationUnavailable))
}

func TestRun_IgnoresConfigMembers(t *testing.T) {
	members := []archive.Member{{
		Name: archive.Name(archive.TypeConfig, 0, t0, "bin"),
		Type: archive.TypeConfig,
		Time: t0,
		Data: []byte("not decoded"),
	}}

	var sink output.Collector
	p := newTestPipeline(t, nil)
	require.NoError(t, p.Run(members, &sink))
	assert.Empty(t, sink.Monitors)
	assert.Equal(t, uint64(1), p.Statistics().ConfigMembers)
}

// ============================================================
// Failure Tests
// ============================================================

func TestRun_MemberFailuresAreLoggedAndSkipped(t *testing.T) {
	wrongCount := udaq.EncodeMember([][]byte{
		{5, 0}, {0x01, 0x02, 0x03, 0x04}, udaq.TerminatorPacket,
	}, udaq.ChecksumLittleEndian)
	noTemperature := udaq.EncodeMember([][]byte{[]byte("MONITOR\n\x00")}, udaq.ChecksumLittleEndian)

	members := []archive.Member{
		monitorMember(3, t0, 250),
		hitbufMember(3, t1, wrongCount),
		{
			Name:    archive.Name(archive.TypeMonitor, 2, t1, "bin"),
			Type:    archive.TypeMonitor,
			Channel: 2,
			Time:    t1,
			Data:    noTemperature,
		},
		hitbufMember(3, t2, hitFile(channel3HitBuffer())),
	}

	var errBuf bytes.Buffer
	var sink output.Collector
	p := newTestPipeline(t, log.New(&errBuf, "", 0))
	require.NoError(t, p.Run(members, &sink))

	lines := strings.Split(strings.TrimSpace(errBuf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], members[1].Name+" "), lines[0])
	assert.Contains(t, lines[0], "wrong number of blocks")
	assert.True(t, strings.HasPrefix(lines[1], members[2].Name+" "), lines[1])

	stats := p.Statistics()
	assert.Equal(t, uint64(2), stats.Failures)
	assert.Equal(t, uint64(1), stats.FailuresByKind[udaq.KindBlockCountMismatch])
	assert.Equal(t, uint64(1), stats.FailuresByKind[udaq.KindMonitorFieldMissing])

	// processing continued past the failures
	assert.Len(t, sink.Monitors, 1)
	require.Len(t, sink.HitRates, 1)
	assert.Equal(t, channel3Rates, sink.HitRates[0].Results)

	summary := stats.String()
	assert.Contains(t, summary, "BlockCountMismatch")
	assert.Contains(t, summary, "MonitorFieldMissing")
}

type failingSink struct{ output.Collector }

func (f *failingSink) WriteMonitor(output.MonitorReading) error { return errors.New("broken pipe") }

func TestRun_SinkErrorAborts(t *testing.T) {
	members := []archive.Member{
		monitorMember(3, t0, 250),
		monitorMember(4, t1, 250),
	}

	var reports int
	p := newTestPipeline(t, nil)
	p.OnMember = func(Report) { reports++ }
	err := p.Run(members, &failingSink{})
	require.Error(t, err)
	assert.Equal(t, 1, reports)
}

func TestRun_ReleasesMemberData(t *testing.T) {
	members := []archive.Member{monitorMember(3, t0, 250)}
	p := newTestPipeline(t, nil)
	require.NoError(t, p.Run(members, &output.Collector{}))
	assert.Nil(t, members[0].Data)
}

// ============================================================
// End-to-End Tests
// ============================================================

func TestEndToEnd_Channel3Archive(t *testing.T) {
	members := []archive.Member{
		hitbufMember(3, t1, hitFile(channel3HitBuffer())),
		monitorMember(3, t0, 250.0),
	}
	path := filepath.Join(t.TempDir(), "udaq_run.flat.tar")
	require.NoError(t, archive.Create(path, members))

	loaded, err := archive.Open(path)
	require.NoError(t, err)

	var out bytes.Buffer
	p := newTestPipeline(t, nil)
	require.NoError(t, p.Run(loaded, output.NewJSONSink(&out)))

	want := `{"channel":3,"time":1613304000,"temp":250}` + "\n" +
		`{"channel":3,"time":1613304300,"results":[2,1.5,1.5,1,1,0.5,0.5,0.5,0.5,0.5,0.5,0,0,0,0]}` + "\n"
	assert.Equal(t, want, out.String())
}
