// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import "errors"

// Framing errors, returned by ParseNotification
var (
	ErrTooShort       = errors.New("dji: too short")
	ErrBadSOF         = errors.New("dji: bad start of frame")
	ErrLengthMismatch = errors.New("dji: frame length mismatch")
	ErrCRC16Mismatch  = errors.New("dji: header CRC-16 mismatch")
	ErrCRC32Mismatch  = errors.New("dji: frame CRC-32 mismatch")
)

// Descriptor and structure codec errors
var (
	ErrUnsupportedCommand = errors.New("dji: unsupported command")
	ErrUnknownDescriptor  = errors.New("dji: structure does not match descriptor")
	ErrFieldTooLarge      = errors.New("dji: field value too large")
	ErrFieldValue         = errors.New("dji: invalid field value")
	ErrMalformedPayload   = errors.New("dji: malformed payload")
)

// ErrorClass groups protocol errors into the categories callers act on.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassFraming
	ClassDescriptor
	ClassOther
)

// String returns the class name
func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassFraming:
		return "framing"
	case ClassDescriptor:
		return "descriptor"
	default:
		return "other"
	}
}

// Classify maps an error returned by this package onto its ErrorClass.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrUnsupportedCommand), errors.Is(err, ErrUnknownDescriptor),
		errors.Is(err, ErrFieldTooLarge), errors.Is(err, ErrFieldValue),
		errors.Is(err, ErrMalformedPayload):
		return ClassDescriptor
	case errors.Is(err, ErrTooShort), errors.Is(err, ErrBadSOF), errors.Is(err, ErrLengthMismatch),
		errors.Is(err, ErrCRC16Mismatch), errors.Is(err, ErrCRC32Mismatch):
		return ClassFraming
	default:
		return ClassOther
	}
}
