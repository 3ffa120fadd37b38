// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Frame is one decoded protocol frame
type Frame struct {
	SOF       uint8
	Version   uint16
	Length    uint16 // total frame length, header and trailer included
	CmdType   CmdType
	Enc       uint8 // encryption flag, carried but not implemented
	Reserved  [3]byte
	Seq       uint16
	CRC16     uint16
	Data      []byte // family, id and encoded structure; aliases the parsed buffer
	CRC32     uint32
	Timestamp time.Time
}

// Family returns the command family (first payload byte)
func (f *Frame) Family() uint8 {
	if len(f.Data) < 1 {
		return 0
	}
	return f.Data[0]
}

// ID returns the command id (second payload byte)
func (f *Frame) ID() uint8 {
	if len(f.Data) < 2 {
		return 0
	}
	return f.Data[1]
}

// Is reports whether the frame carries the given command
func (f *Frame) Is(c *Command) bool {
	return len(f.Data) >= 2 && f.Data[0] == c.Family && f.Data[1] == c.ID
}

// ParseNotification validates and decodes a complete frame.
// Checks run in order: fixed header size, SOF, minimum frame size, declared
// length, header CRC-16, frame CRC-32. No checksum is computed for a buffer
// that fails the SOF check.
func ParseNotification(b []byte) (*Frame, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes (min %d)", ErrTooShort, len(b), HeaderSize)
	}
	if b[offSOF] != SOF {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadSOF, b[offSOF])
	}
	if len(b) < MinFrameSize {
		return nil, fmt.Errorf("%w: %d bytes (min %d)", ErrTooShort, len(b), MinFrameSize)
	}

	length := binary.LittleEndian.Uint16(b[offLength:])
	if int(length) != len(b) {
		return nil, fmt.Errorf("%w: header says %d, got %d bytes", ErrLengthMismatch, length, len(b))
	}

	embedded16 := binary.LittleEndian.Uint16(b[offCRC16:])
	if calc := CRC16(b[:offCRC16]); calc != embedded16 {
		return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRC16Mismatch, calc, embedded16)
	}

	end := len(b) - TrailerSize
	embedded32 := binary.LittleEndian.Uint32(b[end:])
	if calc := CRC32(b[:end]); calc != embedded32 {
		return nil, fmt.Errorf("%w: expected 0x%08X, got 0x%08X", ErrCRC32Mismatch, calc, embedded32)
	}

	f := &Frame{
		SOF:       b[offSOF],
		Version:   binary.LittleEndian.Uint16(b[offVersion:]),
		Length:    length,
		CmdType:   CmdType(b[offCmdType]),
		Enc:       b[offEnc],
		Seq:       binary.LittleEndian.Uint16(b[offSeq:]),
		CRC16:     embedded16,
		Data:      b[HeaderSize:end],
		CRC32:     embedded32,
		Timestamp: time.Now(),
	}
	copy(f.Reserved[:], b[offRes:offRes+3])
	return f, nil
}

// ParseData splits a frame payload into family, id and decoded structure.
// The descriptor direction is chosen by cmdType.
func ParseData(data []byte, cmdType CmdType) (uint8, uint8, Structure, error) {
	return DefaultRegistry.ParseData(data, cmdType)
}

// ParseData is ParseData against a specific registry
func (r *Registry) ParseData(data []byte, cmdType CmdType) (uint8, uint8, Structure, error) {
	if len(data) < 2 {
		return 0, 0, nil, fmt.Errorf("%w: %w: payload has %d bytes, need family and id", ErrMalformedPayload, ErrTooShort, len(data))
	}
	family, id := data[0], data[1]
	d, err := r.FindDescriptor(family, id, cmdType)
	if err != nil {
		return family, id, nil, err
	}
	s, err := Decode(d, data[2:])
	if err != nil {
		return family, id, nil, fmt.Errorf("%w: %s: %w", ErrMalformedPayload, r.Name(family, id), err)
	}
	return family, id, s, nil
}

// CreateFrame encodes s and wraps it into a complete frame ready for transmission.
// This is the only place frame headers are written.
func CreateFrame(family, id uint8, cmdType CmdType, s Structure, seq uint16) ([]byte, error) {
	return DefaultRegistry.CreateFrame(family, id, cmdType, s, seq)
}

// CreateFrame is CreateFrame against a specific registry
func (r *Registry) CreateFrame(family, id uint8, cmdType CmdType, s Structure, seq uint16) ([]byte, error) {
	d, err := r.FindDescriptor(family, id, cmdType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownDescriptor, err)
	}
	payload, err := Encode(d, s)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Name(family, id), err)
	}

	total := HeaderSize + 2 + len(payload) + TrailerSize
	if total > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame would be %d bytes (max %d)", ErrFieldTooLarge, total, MaxFrameSize)
	}

	frame := make([]byte, total)
	frame[offSOF] = SOF
	binary.LittleEndian.PutUint16(frame[offVersion:], ProtocolVersion)
	binary.LittleEndian.PutUint16(frame[offLength:], uint16(total))
	frame[offCmdType] = uint8(cmdType)
	frame[offEnc] = 0
	// reserved bytes stay zero
	binary.LittleEndian.PutUint16(frame[offSeq:], seq)

	crc := CRC16Update(CRC16Init(), frame[:offCRC16])
	binary.LittleEndian.PutUint16(frame[offCRC16:], CRC16Finalize(crc))

	frame[HeaderSize] = family
	frame[HeaderSize+1] = id
	copy(frame[HeaderSize+2:], payload)

	end := total - TrailerSize
	binary.LittleEndian.PutUint32(frame[end:], CRC32(frame[:end]))
	return frame, nil
}
