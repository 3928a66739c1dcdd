// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package udaq

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a decode failure
type ErrorKind int

const (
	KindFrameTooShort ErrorKind = iota + 1
	KindStuffing
	KindChecksumMismatch
	KindInvalidHeader
	KindMissingTerminator
	KindBlockCountMismatch
	KindMonitorFieldMissing
	KindMonitorMalformed
	KindIncompleteFrame
	KindInsufficientData
	KindCalibrationUnavailable
	KindInvalidMemberName
)

var kindNames = map[ErrorKind]string{
	KindFrameTooShort:          "FrameTooShort",
	KindStuffing:               "StuffingError",
	KindChecksumMismatch:       "ChecksumMismatch",
	KindInvalidHeader:          "InvalidHeader",
	KindMissingTerminator:      "MissingTerminator",
	KindBlockCountMismatch:     "BlockCountMismatch",
	KindMonitorFieldMissing:    "MonitorFieldMissing",
	KindMonitorMalformed:       "MonitorMalformed",
	KindIncompleteFrame:        "IncompleteFrame",
	KindInsufficientData:       "InsufficientData",
	KindCalibrationUnavailable: "CalibrationUnavailable",
	KindInvalidMemberName:      "InvalidMemberName",
}

// String returns the kind name
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Kinds returns every error kind in declaration order
func Kinds() []ErrorKind {
	kinds := make([]ErrorKind, 0, len(kindNames))
	for k := KindFrameTooShort; k <= KindInvalidMemberName; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// DecodeError is returned by every decode stage.
// Expected and Actual are only meaningful for ChecksumMismatch and
// BlockCountMismatch.
type DecodeError struct {
	Kind     ErrorKind
	Message  string
	Expected int
	Actual   int
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return e.Message
}

// Is matches any DecodeError of the same kind, so the sentinels below
// work with errors.Is.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrFrameTooShort          = &DecodeError{Kind: KindFrameTooShort, Message: "frame too short"}
	ErrStuffing               = &DecodeError{Kind: KindStuffing, Message: "stuffing error"}
	ErrChecksumMismatch       = &DecodeError{Kind: KindChecksumMismatch, Message: "checksum mismatch"}
	ErrInvalidHeader          = &DecodeError{Kind: KindInvalidHeader, Message: "invalid header"}
	ErrMissingTerminator      = &DecodeError{Kind: KindMissingTerminator, Message: "missing terminator"}
	ErrBlockCountMismatch     = &DecodeError{Kind: KindBlockCountMismatch, Message: "block count mismatch"}
	ErrMonitorFieldMissing    = &DecodeError{Kind: KindMonitorFieldMissing, Message: "monitor field missing"}
	ErrMonitorMalformed       = &DecodeError{Kind: KindMonitorMalformed, Message: "monitor field malformed"}
	ErrIncompleteFrame        = &DecodeError{Kind: KindIncompleteFrame, Message: "incomplete frame"}
	ErrInsufficientData       = &DecodeError{Kind: KindInsufficientData, Message: "insufficient data"}
	ErrCalibrationUnavailable = &DecodeError{Kind: KindCalibrationUnavailable, Message: "calibration unavailable"}
	ErrInvalidMemberName      = &DecodeError{Kind: KindInvalidMemberName, Message: "invalid member name"}
)

// Errorf builds a DecodeError of the given kind
func Errorf(kind ErrorKind, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a DecodeError anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
