// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Decode reads a payload into a Structure following the descriptor.
// Multi-byte fields are little-endian. A trailing variable field captures the
// remainder of data, which may be empty. The result never aliases data.
func Decode(d *Descriptor, data []byte) (Structure, error) {
	if d == nil {
		return nil, ErrUnknownDescriptor
	}
	if len(data) < d.fixedSize {
		return nil, fmt.Errorf("%w: payload %d bytes, layout needs %d", ErrTooShort, len(data), d.fixedSize)
	}

	s := make(Structure, len(d.fields))
	for _, f := range d.fields {
		b := data[f.Offset:]
		switch f.Kind {
		case KindUint8:
			s[f.Name] = b[0]
		case KindUint16:
			s[f.Name] = binary.LittleEndian.Uint16(b)
		case KindUint32:
			s[f.Name] = binary.LittleEndian.Uint32(b)
		case KindInt8:
			s[f.Name] = int8(b[0])
		case KindInt16:
			s[f.Name] = int16(binary.LittleEndian.Uint16(b))
		case KindInt32:
			s[f.Name] = int32(binary.LittleEndian.Uint32(b))
		case KindFloat32:
			s[f.Name] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		case KindBytes:
			s[f.Name] = append([]byte(nil), b[:f.Width]...)
		case KindTail:
			s[f.Name] = append([]byte{}, b...)
		}
	}
	return s, nil
}

// Encode writes a Structure following the descriptor. Fields absent from s are
// zero-filled; fields in s that the descriptor does not declare are rejected.
// The result is exactly FixedSize() bytes plus the length of the tail value.
func Encode(d *Descriptor, s Structure) ([]byte, error) {
	if d == nil {
		return nil, ErrUnknownDescriptor
	}
	for name := range s {
		if _, ok := d.index[name]; !ok {
			return nil, fmt.Errorf("%w: unexpected field %q", ErrUnknownDescriptor, name)
		}
	}

	var tail []byte
	if d.hasTail {
		last := d.fields[len(d.fields)-1]
		if v, ok := s[last.Name]; ok {
			b, err := bytesValue(last, v)
			if err != nil {
				return nil, err
			}
			tail = b
		}
	}

	buf := make([]byte, d.fixedSize+len(tail))
	for _, f := range d.fields {
		v, ok := s[f.Name]
		if !ok {
			continue
		}
		if err := putField(buf[f.Offset:], f, v); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// putField encodes one value into b (which starts at the field offset)
func putField(b []byte, f Field, v interface{}) error {
	switch f.Kind {
	case KindUint8, KindUint16, KindUint32:
		u, err := uintValue(f, v)
		if err != nil {
			return err
		}
		switch f.Kind {
		case KindUint8:
			b[0] = uint8(u)
		case KindUint16:
			binary.LittleEndian.PutUint16(b, uint16(u))
		default:
			binary.LittleEndian.PutUint32(b, uint32(u))
		}
	case KindInt8, KindInt16, KindInt32:
		i, err := intValue(f, v)
		if err != nil {
			return err
		}
		switch f.Kind {
		case KindInt8:
			b[0] = uint8(int8(i))
		case KindInt16:
			binary.LittleEndian.PutUint16(b, uint16(int16(i)))
		default:
			binary.LittleEndian.PutUint32(b, uint32(int32(i)))
		}
	case KindFloat32:
		fv, err := floatValue(f, v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(b, math.Float32bits(fv))
	case KindBytes:
		data, err := bytesValue(f, v)
		if err != nil {
			return err
		}
		if len(data) > f.Width {
			return fmt.Errorf("%w: %s has %d bytes (max %d)", ErrFieldTooLarge, f.Name, len(data), f.Width)
		}
		copy(b[:f.Width], data)
	case KindTail:
		data, err := bytesValue(f, v)
		if err != nil {
			return err
		}
		copy(b, data)
	}
	return nil
}

func maxUint(k Kind) uint64 {
	switch k {
	case KindUint8:
		return math.MaxUint8
	case KindUint16:
		return math.MaxUint16
	default:
		return math.MaxUint32
	}
}

func intRange(k Kind) (int64, int64) {
	switch k {
	case KindInt8:
		return math.MinInt8, math.MaxInt8
	case KindInt16:
		return math.MinInt16, math.MaxInt16
	default:
		return math.MinInt32, math.MaxInt32
	}
}

func uintValue(f Field, v interface{}) (uint64, error) {
	var u uint64
	switch val := v.(type) {
	case uint8:
		u = uint64(val)
	case uint16:
		u = uint64(val)
	case uint32:
		u = uint64(val)
	case uint64:
		u = val
	case uint:
		u = uint64(val)
	case int8, int16, int32, int64, int:
		i := signed(val)
		if i < 0 {
			return 0, fmt.Errorf("%w: %s = %d is negative", ErrFieldValue, f.Name, i)
		}
		u = uint64(i)
	case bool:
		if val {
			u = 1
		}
	default:
		return 0, fmt.Errorf("%w: %s expects an integer, got %T", ErrFieldValue, f.Name, v)
	}
	if u > maxUint(f.Kind) {
		return 0, fmt.Errorf("%w: %s = %d overflows %s", ErrFieldValue, f.Name, u, f.Kind)
	}
	return u, nil
}

func intValue(f Field, v interface{}) (int64, error) {
	var i int64
	switch val := v.(type) {
	case int8, int16, int32, int64, int:
		i = signed(val)
	case uint8:
		i = int64(val)
	case uint16:
		i = int64(val)
	case uint32:
		i = int64(val)
	case uint64:
		if val > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %s = %d overflows %s", ErrFieldValue, f.Name, val, f.Kind)
		}
		i = int64(val)
	case uint:
		i = int64(val)
	default:
		return 0, fmt.Errorf("%w: %s expects an integer, got %T", ErrFieldValue, f.Name, v)
	}
	lo, hi := intRange(f.Kind)
	if i < lo || i > hi {
		return 0, fmt.Errorf("%w: %s = %d overflows %s", ErrFieldValue, f.Name, i, f.Kind)
	}
	return i, nil
}

func floatValue(f Field, v interface{}) (float32, error) {
	switch val := v.(type) {
	case float32:
		return val, nil
	case float64:
		return float32(val), nil
	case int8, int16, int32, int64, int:
		return float32(signed(val)), nil
	case uint8, uint16, uint32, uint64, uint:
		u, err := uintValue(Field{Name: f.Name, Kind: KindUint32}, val)
		if err != nil {
			return 0, err
		}
		return float32(u), nil
	}
	return 0, fmt.Errorf("%w: %s expects a float, got %T", ErrFieldValue, f.Name, v)
}

func bytesValue(f Field, v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s expects bytes, got %T", ErrFieldValue, f.Name, v)
}

func signed(v interface{}) int64 {
	switch val := v.(type) {
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case int:
		return int64(val)
	}
	return 0
}
