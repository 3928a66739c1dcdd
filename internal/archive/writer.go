// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// WriteMembers writes members as a plain tar stream
func WriteMembers(w io.Writer, members []Member) error {
	tw := tar.NewWriter(w)
	for _, m := range members {
		if err := writeEntry(tw, m.Name, m.Time, m.Data); err != nil {
			return err
		}
	}
	return tw.Close()
}

// WriteCompressed writes members as a gzipped tar stream
func WriteCompressed(w io.Writer, members []Member) error {
	zw := gzip.NewWriter(w)
	if err := WriteMembers(zw, members); err != nil {
		return err
	}
	return zw.Close()
}

// WriteFlat writes an outer tar holding a single gzipped archive named inner
func WriteFlat(w io.Writer, inner string, members []Member) error {
	var buf bytes.Buffer
	if err := WriteCompressed(&buf, members); err != nil {
		return err
	}

	var mtime time.Time
	for _, m := range members {
		if m.Time.After(mtime) {
			mtime = m.Time
		}
	}

	tw := tar.NewWriter(w)
	if err := writeEntry(tw, inner, mtime, buf.Bytes()); err != nil {
		return err
	}
	return tw.Close()
}

// Create writes an archive file, choosing the container by suffix like Open
func Create(filename string, members []Member) (err error) {
	f, err := os.Create(filepath.Clean(filename))
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	base := filepath.Base(filename)
	switch {
	case strings.HasSuffix(base, FlatSuffix):
		return WriteFlat(f, strings.TrimSuffix(base, FlatSuffix)+TgzSuffix, members)
	case strings.HasSuffix(base, TgzSuffix), strings.HasSuffix(base, TarGzSuffix):
		return WriteCompressed(f, members)
	case strings.HasSuffix(base, TarSuffix):
		return WriteMembers(f, members)
	default:
		return fmt.Errorf("unsupported archive type: %s", base)
	}
}

func writeEntry(tw *tar.Writer, name string, mtime time.Time, data []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  mtime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
