// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string.
// s is the decoded payload; when nil the payload is hex-dumped instead.
func FormatFrame(f *Frame, s Structure) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	name := CommandName(f.Family(), f.ID())

	result := fmt.Sprintf("[%s] %s (0x%02X/0x%02X) %s seq=%d len=%d\n",
		timestamp, name, f.Family(), f.ID(), FormatCmdType(f.CmdType), f.Seq, f.Length)

	var d *Descriptor
	if s != nil {
		d, _ = FindDescriptor(f.Family(), f.ID(), f.CmdType)
	}
	if d == nil {
		if len(f.Data) > 2 {
			result += fmt.Sprintf("  Payload: % X\n", f.Data[2:])
		} else {
			result += "  (no payload)\n"
		}
		return result
	}

	result += FormatStructure(d, s)
	return result
}

// FormatStructure formats one line per descriptor field, in wire order
func FormatStructure(d *Descriptor, s Structure) string {
	if len(d.fields) == 0 {
		return "  (no payload)\n"
	}

	width := 0
	for _, f := range d.fields {
		if len(f.Name) > width {
			width = len(f.Name)
		}
	}

	var b strings.Builder
	for _, f := range d.fields {
		fmt.Fprintf(&b, "  %-*s  %s\n", width, f.Name+":", formatValue(f, s[f.Name]))
	}
	return b.String()
}

// FormatCmdType returns the name of an acknowledgement policy
func FormatCmdType(c CmdType) string {
	switch c {
	case CmdNoResponse:
		return "CMD_NO_RESPONSE"
	case CmdResponseOrNot:
		return "CMD_RESPONSE_OR_NOT"
	case CmdWaitResult:
		return "CMD_WAIT_RESULT"
	case AckNoResponse:
		return "ACK_NO_RESPONSE"
	case AckResponseOrNot:
		return "ACK_RESPONSE_OR_NOT"
	case AckWaitResult:
		return "ACK_WAIT_RESULT"
	default:
		return fmt.Sprintf("CMD_TYPE_0x%02X", uint8(c))
	}
}

func formatValue(f Field, v interface{}) string {
	if v == nil {
		return "-"
	}
	switch f.Kind {
	case KindBytes, KindTail:
		b, _ := v.([]byte)
		if len(b) == 0 {
			return "[]"
		}
		return fmt.Sprintf("[% X]", b)
	case KindFloat32:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%d (0x%X)", v, v)
	}
}
