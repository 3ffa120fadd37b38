// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import "fmt"

// Kind is the primitive type of a descriptor field.
type Kind int

// Field kinds
const (
	KindUint8 Kind = iota
	KindUint16
	KindUint32
	KindInt8
	KindInt16
	KindInt32
	KindFloat32
	KindBytes // fixed-size byte array
	KindTail  // variable-length byte array consuming the rest of the payload
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindUint8:
		return "u8"
	case KindUint16:
		return "u16"
	case KindUint32:
		return "u32"
	case KindInt8:
		return "i8"
	case KindInt16:
		return "i16"
	case KindInt32:
		return "i32"
	case KindFloat32:
		return "f32"
	case KindBytes:
		return "bytes"
	case KindTail:
		return "tail"
	default:
		return "unknown"
	}
}

// width returns the fixed width of scalar kinds, or 0 for arrays
func (k Kind) width() int {
	switch k {
	case KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint32, KindInt32, KindFloat32:
		return 4
	default:
		return 0
	}
}

// Field describes one field of a payload layout.
type Field struct {
	Name   string
	Offset int
	Width  int // 0 for KindTail
	Kind   Kind
}

// Descriptor is an immutable payload layout: an ordered list of fields.
type Descriptor struct {
	fields    []Field
	fixedSize int
	hasTail   bool
	index     map[string]int
}

// FieldSpec declares a field for NewDescriptor. Size is only read for KindBytes.
type FieldSpec struct {
	Name string
	Kind Kind
	Size int
}

// U8, U16, ... are shorthands for building descriptor tables.
func U8(name string) FieldSpec           { return FieldSpec{Name: name, Kind: KindUint8} }
func U16(name string) FieldSpec          { return FieldSpec{Name: name, Kind: KindUint16} }
func U32(name string) FieldSpec          { return FieldSpec{Name: name, Kind: KindUint32} }
func I8(name string) FieldSpec           { return FieldSpec{Name: name, Kind: KindInt8} }
func I16(name string) FieldSpec          { return FieldSpec{Name: name, Kind: KindInt16} }
func I32(name string) FieldSpec          { return FieldSpec{Name: name, Kind: KindInt32} }
func F32(name string) FieldSpec          { return FieldSpec{Name: name, Kind: KindFloat32} }
func Bytes(name string, n int) FieldSpec { return FieldSpec{Name: name, Kind: KindBytes, Size: n} }
func Tail(name string) FieldSpec         { return FieldSpec{Name: name, Kind: KindTail} }

// NewDescriptor builds a layout from field specs, assigning packed offsets in order.
// It panics on an invalid layout: descriptor tables are static and a bad table
// is a programming error caught at startup.
func NewDescriptor(specs ...FieldSpec) *Descriptor {
	d := &Descriptor{
		fields: make([]Field, 0, len(specs)),
		index:  make(map[string]int, len(specs)),
	}
	offset := 0
	for i, spec := range specs {
		if spec.Name == "" {
			panic(fmt.Sprintf("dji: descriptor field %d has no name", i))
		}
		if _, dup := d.index[spec.Name]; dup {
			panic(fmt.Sprintf("dji: duplicate descriptor field %q", spec.Name))
		}
		if d.hasTail {
			panic(fmt.Sprintf("dji: field %q follows the tail field", spec.Name))
		}

		width := spec.Kind.width()
		switch spec.Kind {
		case KindBytes:
			if spec.Size <= 0 {
				panic(fmt.Sprintf("dji: byte array %q needs a positive size", spec.Name))
			}
			width = spec.Size
		case KindTail:
			d.hasTail = true
		default:
			if width == 0 {
				panic(fmt.Sprintf("dji: field %q has unknown kind %d", spec.Name, spec.Kind))
			}
		}

		d.index[spec.Name] = len(d.fields)
		d.fields = append(d.fields, Field{Name: spec.Name, Offset: offset, Width: width, Kind: spec.Kind})
		offset += width
	}
	d.fixedSize = offset
	return d
}

// Fields returns a copy of the layout's fields in wire order
func (d *Descriptor) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Field looks up a field by name
func (d *Descriptor) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.fields[i], true
}

// FixedSize returns the total width of all fixed fields
func (d *Descriptor) FixedSize() int {
	return d.fixedSize
}

// HasTail reports whether the layout ends in a variable-length field
func (d *Descriptor) HasTail() bool {
	return d.hasTail
}

// Command is a registry entry: the layouts used for one (family, id) pair.
// Request is used for command frames, Response for ack frames (cmd_type bit 0x20).
// Either may be nil when the device never sends that direction.
type Command struct {
	Name     string
	Family   uint8
	ID       uint8
	Request  *Descriptor
	Response *Descriptor
}

// Layout returns the descriptor for a frame of the given command type
func (c *Command) Layout(cmdType CmdType) *Descriptor {
	if cmdType.IsAck() {
		return c.Response
	}
	return c.Request
}

type commandKey struct {
	family uint8
	id     uint8
}

// Registry maps (family, id) pairs to command layouts.
type Registry struct {
	commands map[commandKey]*Command
}

// NewRegistry builds a registry from command entries. It panics on duplicates.
func NewRegistry(commands ...*Command) *Registry {
	r := &Registry{commands: make(map[commandKey]*Command, len(commands))}
	for _, c := range commands {
		key := commandKey{c.Family, c.ID}
		if _, dup := r.commands[key]; dup {
			panic(fmt.Sprintf("dji: duplicate command 0x%02X/0x%02X", c.Family, c.ID))
		}
		r.commands[key] = c
	}
	return r
}

// Lookup returns the command registered for (family, id)
func (r *Registry) Lookup(family, id uint8) (*Command, bool) {
	c, ok := r.commands[commandKey{family, id}]
	return c, ok
}

// FindDescriptor returns the layout for (family, id) in the direction
// selected by cmdType.
func (r *Registry) FindDescriptor(family, id uint8, cmdType CmdType) (*Descriptor, error) {
	c, ok := r.Lookup(family, id)
	if !ok {
		return nil, fmt.Errorf("%w: 0x%02X/0x%02X", ErrUnsupportedCommand, family, id)
	}
	d := c.Layout(cmdType)
	if d == nil {
		return nil, fmt.Errorf("%w: %s has no layout for cmd_type 0x%02X", ErrUnsupportedCommand, c.Name, uint8(cmdType))
	}
	return d, nil
}

// FindDescriptor looks up a layout in the default command registry
func FindDescriptor(family, id uint8, cmdType CmdType) (*Descriptor, error) {
	return DefaultRegistry.FindDescriptor(family, id, cmdType)
}

// Name returns the name registered for (family, id), or "UNKNOWN"
func (r *Registry) Name(family, id uint8) string {
	if c, ok := r.Lookup(family, id); ok {
		return c.Name
	}
	return "UNKNOWN"
}

// CommandName returns the name of (family, id) in the default registry
func CommandName(family, id uint8) string {
	return DefaultRegistry.Name(family, id)
}
