// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Writer is a buffered record destination. Close flushes every layer.
type Writer struct {
	*bufio.Writer
	closers []io.Closer
}

// Close flushes the buffer and closes the underlying layers in order
func (w *Writer) Close() error {
	errs := []error{w.Flush()}
	for _, c := range w.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Create opens a record destination. An empty path or "-" is stdout;
// a path ending in .gz is gzip compressed.
func Create(path string, stdout io.Writer) (*Writer, error) {
	if path == "" || path == "-" {
		return &Writer{Writer: bufio.NewWriter(stdout), closers: []io.Closer{nopCloser{}}}, nil
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return &Writer{Writer: bufio.NewWriter(f), closers: []io.Closer{f}}, nil
	}

	zw := gzip.NewWriter(f)
	return &Writer{Writer: bufio.NewWriter(zw), closers: []io.Closer{zw, f}}, nil
}
