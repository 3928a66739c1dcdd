// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Container suffixes
const (
	FlatSuffix  = ".flat.tar"
	TgzSuffix   = ".tgz"
	TarGzSuffix = ".tar.gz"
	TarSuffix   = ".tar"
)

// ErrNoInnerArchive is returned when a flat container holds no compressed archive
var ErrNoInnerArchive = errors.New("no inner compressed archive in flat container")

// Open reads every member of an archive file. The container is chosen by
// suffix: a .flat.tar wraps <name>.tgz, .tgz and .tar.gz are gzipped tar
// files, and .tar holds the members directly.
func Open(filename string) ([]Member, error) {
	f, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	base := filepath.Base(filename)
	switch {
	case strings.HasSuffix(base, FlatSuffix):
		return ReadFlat(f, strings.TrimSuffix(base, FlatSuffix)+TgzSuffix)
	case strings.HasSuffix(base, TgzSuffix), strings.HasSuffix(base, TarGzSuffix):
		return ReadCompressed(f)
	case strings.HasSuffix(base, TarSuffix):
		return ReadMembers(f)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", base)
	}
}

// ReadFlat extracts the inner compressed archive from an outer tar and
// reads its members. The entry named inner is preferred; otherwise the
// first .tgz or .tar.gz entry is used.
func ReadFlat(r io.Reader, inner string) ([]Member, error) {
	tr := tar.NewReader(r)
	var fallback []byte

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read flat container: %w", err)
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}

		name := path.Base(hdr.Name)
		isInner := name == inner
		if !isInner && (fallback != nil || !isCompressedName(name)) {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		if isInner {
			return ReadCompressed(bytes.NewReader(data))
		}
		fallback = data
	}

	if fallback == nil {
		return nil, fmt.Errorf("%w: expected %s", ErrNoInnerArchive, inner)
	}
	return ReadCompressed(bytes.NewReader(fallback))
}

func isCompressedName(name string) bool {
	return strings.HasSuffix(name, TgzSuffix) || strings.HasSuffix(name, TarGzSuffix)
}

// ReadCompressed reads members from a gzipped tar stream
func ReadCompressed(r io.Reader) ([]Member, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer zr.Close()
	return ReadMembers(zr)
}

// ReadMembers reads every regular file of a tar stream as a member.
// Directory entries are skipped; a member with a malformed name fails
// the whole read.
func ReadMembers(r io.Reader) ([]Member, error) {
	tr := tar.NewReader(r)
	var members []Member

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}

		m, err := ParseName(path.Base(hdr.Name))
		if err != nil {
			return nil, err
		}
		m.Data, err = io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		members = append(members, m)
	}

	return members, nil
}
