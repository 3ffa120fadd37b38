// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

// Structure is the in-memory form of a command payload, keyed by descriptor
// field name. Decode produces canonical Go types per field kind:
//
//	u8/u16/u32 -> uint8/uint16/uint32
//	i8/i16/i32 -> int8/int16/int32
//	f32        -> float32
//	bytes/tail -> []byte
//
// Encode accepts any Go integer or float type that fits the field.
type Structure map[string]interface{}

// Value extraction helpers

// Uint extracts an unsigned integer field
func (s Structure) Uint(name string) (uint64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s[name]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case uint:
		return uint64(val), true
	case int8, int16, int32, int64, int:
		i, _ := s.Int(name)
		if i >= 0 {
			return uint64(i), true
		}
	}
	return 0, false
}

// Int extracts a signed integer field
func (s Structure) Int(name string) (int64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s[name]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case int:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	}
	return 0, false
}

// Float extracts a float field
func (s Structure) Float(name string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s[name]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

// Bytes extracts a byte array field
func (s Structure) Bytes(name string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s[name]
	if !ok {
		return nil, false
	}
	if val, ok := v.([]byte); ok {
		return val, true
	}
	return nil, false
}

// Uint8 extracts a field as uint8, returning 0 when missing
func (s Structure) Uint8(name string) uint8 {
	v, _ := s.Uint(name)
	return uint8(v)
}

// Uint16 extracts a field as uint16, returning 0 when missing
func (s Structure) Uint16(name string) uint16 {
	v, _ := s.Uint(name)
	return uint16(v)
}

// Uint32 extracts a field as uint32, returning 0 when missing
func (s Structure) Uint32(name string) uint32 {
	v, _ := s.Uint(name)
	return uint32(v)
}
