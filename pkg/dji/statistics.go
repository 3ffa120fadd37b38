// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	ShortFrames      uint64
	SOFErrors        uint64
	LengthMismatches uint64
	CRC16Errors      uint64
	CRC32Errors      uint64
	Unsupported      uint64
	DecodeErrors     uint64
	AnomalousValues  uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on one inbound frame.
// err is the ParseNotification or ParseData error, if any.
func (s *Statistics) Update(err error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if err != nil {
		switch {
		case errors.Is(err, ErrBadSOF):
			s.SOFErrors++
		case errors.Is(err, ErrLengthMismatch):
			s.LengthMismatches++
		case errors.Is(err, ErrCRC16Mismatch):
			s.CRC16Errors++
		case errors.Is(err, ErrCRC32Mismatch):
			s.CRC32Errors++
		case errors.Is(err, ErrUnsupportedCommand):
			s.Unsupported++
		case errors.Is(err, ErrMalformedPayload):
			s.DecodeErrors++
		case errors.Is(err, ErrTooShort):
			s.ShortFrames++
		default:
			s.DecodeErrors++
		}
		return
	}

	if len(validationErrors) > 0 {
		s.AnomalousValues++
		return
	}
	s.ValidFrames++
}

// Errors returns the total number of rejected or anomalous frames
func (s *Statistics) Errors() uint64 {
	return s.ShortFrames + s.SOFErrors + s.LengthMismatches + s.CRC16Errors +
		s.CRC32Errors + s.Unsupported + s.DecodeErrors + s.AnomalousValues
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))

	rows := []struct {
		label string
		n     uint64
	}{
		{"Short Frames:    ", s.ShortFrames},
		{"Bad SOF:         ", s.SOFErrors},
		{"Length Mismatch: ", s.LengthMismatches},
		{"CRC-16 Errors:   ", s.CRC16Errors},
		{"CRC-32 Errors:   ", s.CRC32Errors},
		{"Unsupported:     ", s.Unsupported},
		{"Decode Errors:   ", s.DecodeErrors},
		{"Anomalous Values:", s.AnomalousValues},
	}
	for _, row := range rows {
		if row.n > 0 {
			result += fmt.Sprintf("%s%8d (%.1f%%)\n", row.label, row.n, percent(row.n))
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
