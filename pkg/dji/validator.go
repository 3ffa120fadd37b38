// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyUnknownCommand AnomalyType = iota
	AnomalyInvalidValue
	AnomalyReservedNonZero
	AnomalyEncrypted
	AnomalyVersion
	AnomalyBattery
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyUnknownCommand:
		return "unknown_command"
	case AnomalyInvalidValue:
		return "invalid_value"
	case AnomalyReservedNonZero:
		return "reserved_non_zero"
	case AnomalyEncrypted:
		return "encrypted"
	case AnomalyVersion:
		return "version"
	case AnomalyBattery:
		return "battery"
	default:
		return "unknown"
	}
}

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a decoded frame for values a well-behaved camera never sends.
// s may be nil when the payload could not be decoded.
// Returns a slice of validation errors (empty if frame is valid)
func ValidateFrame(f *Frame, s Structure) []ValidationError {
	errors := []ValidationError{}

	if f.Version != ProtocolVersion {
		errors = append(errors, ValidationError{
			Type:    AnomalyVersion,
			Message: fmt.Sprintf("Unexpected protocol version=%d", f.Version),
			Details: map[string]interface{}{"version": f.Version},
		})
	}
	if f.Enc != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyEncrypted,
			Message: fmt.Sprintf("Encrypted frame (enc=%d) not supported", f.Enc),
			Details: map[string]interface{}{"enc": f.Enc},
		})
	}

	cmd, ok := DefaultRegistry.Lookup(f.Family(), f.ID())
	if !ok {
		return append(errors, ValidationError{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown command 0x%02X/0x%02X", f.Family(), f.ID()),
			Details: map[string]interface{}{"family": f.Family(), "id": f.ID()},
		})
	}
	if s == nil {
		return errors
	}

	errors = append(errors, validateReserved(s)...)

	switch {
	case cmd == Connection && !f.CmdType.IsAck():
		errors = append(errors, validateConnectionRequest(s)...)
	case cmd == CameraStatusPush:
		errors = append(errors, validateCameraStatus(s)...)
	case cmd == RecordControl && !f.CmdType.IsAck():
		if ctrl := s.Uint8("record_ctrl"); ctrl > RecordStop {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Invalid record_ctrl=%d (valid 0-1)", ctrl),
				Details: map[string]interface{}{"record_ctrl": ctrl, "max": RecordStop},
			})
		}
	case cmd == StatusSubscription:
		if mode := s.Uint8("push_mode"); mode > uint8(PushModePeriodicWithStateChange) {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Invalid push_mode=%d (valid 0-3)", mode),
				Details: map[string]interface{}{"push_mode": mode, "max": uint8(PushModePeriodicWithStateChange)},
			})
		}
	}

	return errors
}

// validateReserved flags a reserved array that is not all zeros
func validateReserved(s Structure) []ValidationError {
	b, ok := s.Bytes("reserved")
	if !ok {
		return nil
	}
	for _, v := range b {
		if v != 0 {
			return []ValidationError{{
				Type:    AnomalyReservedNonZero,
				Message: fmt.Sprintf("Reserved bytes not zero (% X)", b),
				Details: map[string]interface{}{"reserved": b},
			}}
		}
	}
	return nil
}

// validateConnectionRequest validates a CONNECTION request
func validateConnectionRequest(s Structure) []ValidationError {
	errors := []ValidationError{}

	if n := s.Uint8("mac_addr_len"); n > MaxMACLength {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid mac_addr_len=%d (max %d)", n, MaxMACLength),
			Details: map[string]interface{}{"mac_addr_len": n, "max": MaxMACLength},
		})
	}

	mode := s.Uint8("verify_mode")
	if mode != VerifyModeRequest && mode != 1 && mode != VerifyModeConfirm {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid verify_mode=%d (valid 0-2)", mode),
			Details: map[string]interface{}{"verify_mode": mode, "max": VerifyModeConfirm},
		})
	}

	return errors
}

// validateCameraStatus validates a CAMERA_STATUS_PUSH
func validateCameraStatus(s Structure) []ValidationError {
	errors := []ValidationError{}

	if bat := s.Uint8("camera_bat_percentage"); bat > 100 {
		errors = append(errors, ValidationError{
			Type:    AnomalyBattery,
			Message: fmt.Sprintf("Invalid battery=%d%% (max 100)", bat),
			Details: map[string]interface{}{"camera_bat_percentage": bat, "max": 100},
		})
	}

	if mode := CameraMode(s.Uint8("camera_mode")); !mode.Known() {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Unknown camera_mode=0x%02X", uint8(mode)),
			Details: map[string]interface{}{"camera_mode": uint8(mode)},
		})
	}

	return errors
}
