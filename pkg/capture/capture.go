// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture reads and writes frame capture logs.
//
// A capture is a CBOR sequence: one Header followed by any number of Records,
// each holding one raw frame as it crossed the transport.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// FormatVersion is written into every header
const FormatVersion = 1

// Direction of a captured frame
type Direction uint8

const (
	RX Direction = iota // camera to controller
	TX                  // controller to camera
)

func (d Direction) String() string {
	switch d {
	case RX:
		return "rx"
	case TX:
		return "tx"
	default:
		return fmt.Sprintf("dir(%d)", uint8(d))
	}
}

// ErrBadHeader is returned when a capture does not start with a valid header
var ErrBadHeader = errors.New("capture: bad header")

// Header identifies one capture session
type Header struct {
	Session uuid.UUID
	Started time.Time
	Version int
}

// Record is one captured frame
type Record struct {
	Time      time.Time
	Direction Direction
	Bytes     []byte
}

// wire forms keep the file compact and independent of time/uuid encodings
type wireHeader struct {
	Session []byte `cbor:"1,keyasint"`
	Started int64  `cbor:"2,keyasint"`
	Version int    `cbor:"3,keyasint"`
}

type wireRecord struct {
	Time      int64  `cbor:"1,keyasint"`
	Direction uint8  `cbor:"2,keyasint"`
	Bytes     []byte `cbor:"3,keyasint"`
}

// Writer appends records to a capture. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	enc    *cbor.Encoder
	header Header
}

// NewWriter writes a fresh header to w and returns a Writer for it
func NewWriter(w io.Writer) (*Writer, error) {
	h := Header{Session: uuid.New(), Started: time.Now(), Version: FormatVersion}
	enc := cbor.NewEncoder(w)
	if err := enc.Encode(wireHeader{
		Session: h.Session[:],
		Started: h.Started.UnixNano(),
		Version: h.Version,
	}); err != nil {
		return nil, fmt.Errorf("capture: writing header: %w", err)
	}
	return &Writer{enc: enc, header: h}, nil
}

// Header returns the header written for this capture
func (w *Writer) Header() Header {
	return w.header
}

// Write records b, stamped with the current time. b is not retained.
func (w *Writer) Write(dir Direction, b []byte) error {
	return w.WriteRecord(Record{Time: time.Now(), Direction: dir, Bytes: b})
}

// WriteRecord appends r to the capture
func (w *Writer) WriteRecord(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(wireRecord{
		Time:      r.Time.UnixNano(),
		Direction: uint8(r.Direction),
		Bytes:     r.Bytes,
	}); err != nil {
		return fmt.Errorf("capture: writing record: %w", err)
	}
	return nil
}

// Reader iterates the records of a capture
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and validates the header of a capture
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var wh wireHeader
	if err := dec.Decode(&wh); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	id, err := uuid.FromBytes(wh.Session)
	if err != nil {
		return nil, fmt.Errorf("%w: session: %w", ErrBadHeader, err)
	}
	if wh.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, wh.Version)
	}
	return &Reader{
		dec:    dec,
		header: Header{Session: id, Started: time.Unix(0, wh.Started), Version: wh.Version},
	}, nil
}

// Header returns the capture header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the capture
func (r *Reader) Next() (Record, error) {
	var wr wireRecord
	if err := r.dec.Decode(&wr); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture: reading record: %w", err)
	}
	return Record{
		Time:      time.Unix(0, wr.Time),
		Direction: Direction(wr.Direction),
		Bytes:     wr.Bytes,
	}, nil
}
