// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icescint/udaqtool/pkg/udaq"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		want Member
	}{
		{
			"MicroDAQ_monitor_3_20210214_123456.bin",
			Member{Type: TypeMonitor, Channel: 3, Time: time.Date(2021, 2, 14, 12, 34, 56, 0, time.UTC)},
		},
		{
			"MicroDAQ_hitbuf_7_20191231_235959_readout12",
			Member{Type: TypeHitBuf, Channel: 7, Time: time.Date(2019, 12, 31, 23, 59, 59, 0, time.UTC)},
		},
		{
			"MicroDAQ_config_0_20200101_000000.cfg",
			Member{Type: TypeConfig, Channel: 0, Time: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseName(tt.name)
			require.NoError(t, err)
			tt.want.Name = tt.name
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseName mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseName_Invalid(t *testing.T) {
	names := []string{
		"README.txt",
		"OtherDAQ_monitor_3_20210214_123456.bin",
		"MicroDAQ_spectrum_3_20210214_123456.bin",
		"MicroDAQ_monitor_8_20210214_123456.bin",
		"MicroDAQ_monitor_x_20210214_123456.bin",
		"MicroDAQ_monitor_3_20210214.bin",
		"MicroDAQ_monitor_3_20210214_123456",
		"MicroDAQ_hitbuf_3_2021-02-14_readout1",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			_, err := ParseName(name)
			assert.True(t, errors.Is(err, udaq.ErrInvalidMemberName), "got %v", err)
		})
	}
}

func TestName_RoundTrip(t *testing.T) {
	when := time.Date(2021, 6, 1, 8, 9, 10, 0, time.UTC)
	name := Name(TypeHitBuf, 5, when, "bin")
	assert.Equal(t, "MicroDAQ_hitbuf_5_20210601_080910.bin", name)

	m, err := ParseName(name)
	require.NoError(t, err)
	assert.Equal(t, TypeHitBuf, m.Type)
	assert.Equal(t, 5, m.Channel)
	assert.True(t, m.Time.Equal(when))
}

func TestSortByTime_Stable(t *testing.T) {
	t0 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	members := []Member{
		{Name: "c", Time: t0.Add(2 * time.Second)},
		{Name: "a1", Time: t0},
		{Name: "b", Time: t0.Add(time.Second)},
		{Name: "a2", Time: t0},
	}
	SortByTime(members)

	var names []string
	for _, m := range members {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"a1", "a2", "b", "c"}, names)
}

// ============================================================
// Container Tests
// ============================================================

func testMembers() []Member {
	t0 := time.Date(2021, 2, 14, 12, 0, 0, 0, time.UTC)
	var members []Member
	for i, typ := range []MemberType{TypeMonitor, TypeHitBuf, TypeConfig} {
		when := t0.Add(time.Duration(i) * time.Minute)
		members = append(members, Member{
			Name:    Name(typ, i, when, "bin"),
			Type:    typ,
			Channel: i,
			Time:    when,
			Data:    []byte{byte(i), 0x00, 0xFF},
		})
	}
	return members
}

func TestCreateOpen_RoundTrip(t *testing.T) {
	want := testMembers()
	for _, name := range []string{"run.flat.tar", "run.tgz", "run.tar.gz", "run.tar"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Create(path, want))

			got, err := Open(path)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("members mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadMembers_SkipsDirectories(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "data/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.Close())

	var plain bytes.Buffer
	require.NoError(t, WriteMembers(&plain, testMembers()))

	// concatenate the directory entry in front of the real members
	dir := buf.Bytes()[:512]
	got, err := ReadMembers(bytes.NewReader(append(append([]byte{}, dir...), plain.Bytes()...)))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestReadMembers_InvalidNameIsFatal(t *testing.T) {
	members := testMembers()
	members = append(members, Member{Name: "notes.txt", Data: []byte("x")})

	var buf bytes.Buffer
	require.NoError(t, WriteMembers(&buf, members))

	_, err := ReadMembers(&buf)
	assert.True(t, errors.Is(err, udaq.ErrInvalidMemberName), "got %v", err)
}

func TestReadFlat_FallbackInnerName(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFlat(&buf, "other.tgz", testMembers()))

	got, err := ReadFlat(&buf, "run.tgz")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestReadFlat_NoInner(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMembers(&buf, testMembers()))

	_, err := ReadFlat(&buf, "run.tgz")
	assert.True(t, errors.Is(err, ErrNoInnerArchive), "got %v", err)
}

func TestOpen_UnsupportedSuffix(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "run.zip"))
	assert.Error(t, err)
}
