// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Splitter cuts a byte stream (serial bridge, capture file) into candidate frames.
// It syncs on SOF, checks the header CRC-16 and then waits for frame_length bytes.
// Emitted frames still need ParseNotification for the CRC-32 check.
type Splitter struct {
	buf     []byte
	skipped uint64
}

// NewSplitter creates a stream splitter
func NewSplitter() *Splitter {
	return &Splitter{buf: make([]byte, 0, MaxFrameSize)}
}

// Reset discards any partially received frame
func (s *Splitter) Reset() {
	s.buf = s.buf[:0]
}

// Skipped returns the number of bytes dropped while hunting for SOF
func (s *Splitter) Skipped() uint64 {
	return s.skipped
}

// DecodeByte processes a single byte.
// Returns a complete candidate frame (a fresh copy), or nil if the frame is incomplete.
// Returns an error when a header is rejected; the splitter resyncs on the next SOF.
func (s *Splitter) DecodeByte(b byte) ([]byte, error) {
	if len(s.buf) == 0 && b != SOF {
		s.skipped++
		return nil, nil
	}
	s.buf = append(s.buf, b)

	if len(s.buf) < HeaderSize {
		return nil, nil
	}

	if len(s.buf) == HeaderSize {
		length := int(binary.LittleEndian.Uint16(s.buf[offLength:]))
		if length < MinFrameSize || length > MaxFrameSize {
			s.resync()
			return nil, fmt.Errorf("%w: header declares %d bytes (valid %d-%d)", ErrLengthMismatch, length, MinFrameSize, MaxFrameSize)
		}
		embedded := binary.LittleEndian.Uint16(s.buf[offCRC16:])
		if calc := CRC16(s.buf[:offCRC16]); calc != embedded {
			s.resync()
			return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRC16Mismatch, calc, embedded)
		}
		return nil, nil
	}

	length := int(binary.LittleEndian.Uint16(s.buf[offLength:]))
	if len(s.buf) < length {
		return nil, nil
	}

	frame := append([]byte(nil), s.buf...)
	s.buf = s.buf[:0]
	return frame, nil
}

// Feed processes a chunk of bytes, returning every frame completed within it
// and every header error encountered along the way.
func (s *Splitter) Feed(p []byte) ([][]byte, []error) {
	var frames [][]byte
	var errs []error
	for _, b := range p {
		frame, err := s.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}

// resync drops the rejected SOF and keeps whatever follows the next one.
// The buffer holds less than a header afterwards, so no frame can be complete.
func (s *Splitter) resync() {
	rest := s.buf[1:]
	i := bytes.IndexByte(rest, SOF)
	if i < 0 {
		s.skipped += uint64(len(s.buf))
		s.buf = s.buf[:0]
		return
	}
	s.skipped += uint64(1 + i)
	n := copy(s.buf, rest[i:])
	s.buf = s.buf[:n]
}
