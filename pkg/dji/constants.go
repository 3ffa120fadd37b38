// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dji provides a Go implementation of the DJI camera BLE control protocol.
//
// The protocol wraps fixed-layout command structures in a checksummed frame
// (SOF, version, length, command type, sequence number, CRC-16 header check,
// payload, CRC-32 frame check). This package provides frame encoding/decoding,
// the descriptor table that describes every command payload, the generic
// structure codec driven by that table, and formatting/validation helpers.
package dji

// Protocol framing
const (
	SOF = 0xAA

	HeaderSize   = 14 // SOF through CRC-16
	TrailerSize  = 4  // CRC-32
	MinFrameSize = HeaderSize + TrailerSize
	MaxFrameSize = 512

	// ProtocolVersion is written into every outbound header.
	ProtocolVersion = 0x0000
)

// Header field offsets
const (
	offSOF     = 0
	offVersion = 1
	offLength  = 3
	offCmdType = 5
	offEnc     = 6
	offRes     = 7
	offSeq     = 10
	offCRC16   = 12
)

// CRC-16 configuration (reflected 0x8005, non-standard seed)
const (
	crc16Polynomial = 0xA001
	crc16Initial    = 0x3AA3
)

// CmdType selects the acknowledgement policy of a frame.
type CmdType uint8

// Acknowledgement policies. Bit 0x20 marks a response (ack) frame.
const (
	CmdNoResponse     CmdType = 0x00
	CmdResponseOrNot  CmdType = 0x01
	CmdWaitResult     CmdType = 0x02
	AckNoResponse     CmdType = 0x20
	AckResponseOrNot  CmdType = 0x21
	AckWaitResult     CmdType = 0x22
	cmdTypeAckBit     CmdType = 0x20
	cmdTypePolicyMask CmdType = 0x03
)

// IsAck reports whether the frame is a response frame.
func (c CmdType) IsAck() bool {
	return c&cmdTypeAckBit != 0
}

// Valid reports whether c is one of the six defined cmd_type codes.
func (c CmdType) Valid() bool {
	switch c {
	case CmdNoResponse, CmdResponseOrNot, CmdWaitResult,
		AckNoResponse, AckResponseOrNot, AckWaitResult:
		return true
	}
	return false
}

// Policy returns the policy bits (no response, optional, required).
func (c CmdType) Policy() CmdType {
	return c & cmdTypePolicyMask
}

// Command families
const (
	FamilyGeneral uint8 = 0x00
	FamilyCamera  uint8 = 0x1D
)

// Command IDs - general family (0x00)
const (
	CmdIDVersionQuery uint8 = 0x00
	CmdIDKeyReport    uint8 = 0x11
	CmdIDGPSPush      uint8 = 0x17
	CmdIDConnection   uint8 = 0x19
)

// Command IDs - camera family (0x1D)
const (
	CmdIDCameraStatusPush   uint8 = 0x02
	CmdIDRecordControl      uint8 = 0x03
	CmdIDModeSwitch         uint8 = 0x04
	CmdIDStatusSubscription uint8 = 0x05
)

// Device identities used during the connection handshake
const (
	DeviceIDController uint32 = 0xFF33
	DeviceIDCamera     uint32 = 0xFF44
)

// VerifyMode values of the connection request
const (
	VerifyModeRequest uint8 = 0
	VerifyModeConfirm uint8 = 2
)

// RetCodeSuccess is the common "ok" return code.
const RetCodeSuccess uint8 = 0

// MaxMACLength is the capacity of the connection request mac_addr field.
const MaxMACLength = 16

// RecordCtrl values for RECORD_CONTROL
const (
	RecordStart uint8 = 0
	RecordStop  uint8 = 1
)

// CameraMode represents camera modes (MODE_SWITCH, CAMERA_STATUS_PUSH)
type CameraMode uint8

// Camera mode values
const (
	CameraModeSlowMotion      CameraMode = 0x00
	CameraModeNormal          CameraMode = 0x01
	CameraModeTimelapseStatic CameraMode = 0x02
	CameraModePhoto           CameraMode = 0x05
	CameraModeTimelapseMotion CameraMode = 0x0A
	CameraModeLiveStreaming   CameraMode = 0x1A
	CameraModeUVCStreaming    CameraMode = 0x23
	CameraModeLowLightVideo   CameraMode = 0x28
	CameraModeSmartTracking   CameraMode = 0x34
)

// Known reports whether m is one of the documented camera modes
func (m CameraMode) Known() bool {
	switch m {
	case CameraModeSlowMotion, CameraModeNormal, CameraModeTimelapseStatic,
		CameraModePhoto, CameraModeTimelapseMotion, CameraModeLiveStreaming,
		CameraModeUVCStreaming, CameraModeLowLightVideo, CameraModeSmartTracking:
		return true
	}
	return false
}

// PushMode represents STATUS_SUBSCRIPTION push modes
type PushMode uint8

// Push mode values
const (
	PushModeOff PushMode = iota
	PushModeSingle
	PushModePeriodic
	PushModePeriodicWithStateChange
)

// PushFreq10Hz requests status pushes at 10 Hz. push_freq is in units of 0.1 Hz.
const PushFreq10Hz uint8 = 100

// KeyReport modes
const (
	KeyModeState uint8 = 0x00
	KeyModeEvent uint8 = 0x01
)
