// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import "fmt"

// Command layouts. Field names follow the device documentation.
var (
	VersionQuery = &Command{
		Name:    "VERSION_QUERY",
		Family:  FamilyGeneral,
		ID:      CmdIDVersionQuery,
		Request: NewDescriptor(),
		Response: NewDescriptor(
			U16("ack_result"),
			Bytes("product_id", 16),
			Tail("sdk_version"),
		),
	}

	KeyReport = &Command{
		Name:   "KEY_REPORT",
		Family: FamilyGeneral,
		ID:     CmdIDKeyReport,
		Request: NewDescriptor(
			U8("key_code"),
			U8("mode"),
			U16("key_value"),
		),
		Response: NewDescriptor(U8("ret_code")),
	}

	GPSPush = &Command{
		Name:   "GPS_PUSH",
		Family: FamilyGeneral,
		ID:     CmdIDGPSPush,
		Request: NewDescriptor(
			I32("year_month_day"),
			I32("hour_minute_second"),
			I32("gps_longitude"),
			I32("gps_latitude"),
			I32("height"),
			F32("speed_to_north"),
			F32("speed_to_east"),
			F32("speed_to_wnward"),
			U32("vertical_accuracy"),
			U32("horizontal_accuracy"),
			U32("speed_accuracy"),
			U32("satellite_number"),
		),
		Response: NewDescriptor(U8("ret_code")),
	}

	Connection = &Command{
		Name:   "CONNECTION",
		Family: FamilyGeneral,
		ID:     CmdIDConnection,
		Request: NewDescriptor(
			U32("device_id"),
			U8("mac_addr_len"),
			Bytes("mac_addr", MaxMACLength),
			U32("fw_version"),
			U8("conidx"),
			U8("verify_mode"),
			U16("verify_data"),
			Bytes("reserved", 4),
		),
		Response: NewDescriptor(
			U32("device_id"),
			U8("ret_code"),
			Bytes("reserved", 4),
		),
	}

	CameraStatusPush = &Command{
		Name:   "CAMERA_STATUS_PUSH",
		Family: FamilyCamera,
		ID:     CmdIDCameraStatusPush,
		Request: NewDescriptor(
			U8("camera_mode"),
			U8("camera_status"),
			U8("video_resolution"),
			U8("fps_idx"),
			U8("eis_mode"),
			U16("record_time"),
			U8("fov_type"),
			U8("photo_ratio"),
			U16("real_time_countdown"),
			U16("timelapse_interval"),
			U16("timelapse_duration"),
			U32("remain_capacity"),
			U32("remain_photo_num"),
			U32("remain_time"),
			U8("user_mode"),
			U8("power_mode"),
			U8("camera_mode_next_flag"),
			U8("temp_over"),
			U32("photo_countdown_ms"),
			U16("loop_record_sends"),
			U8("camera_bat_percentage"),
		),
	}

	RecordControl = &Command{
		Name:   "RECORD_CONTROL",
		Family: FamilyCamera,
		ID:     CmdIDRecordControl,
		Request: NewDescriptor(
			U32("device_id"),
			U8("record_ctrl"),
			Bytes("reserved", 4),
		),
		Response: NewDescriptor(U8("ret_code")),
	}

	ModeSwitch = &Command{
		Name:   "MODE_SWITCH",
		Family: FamilyCamera,
		ID:     CmdIDModeSwitch,
		Request: NewDescriptor(
			U32("device_id"),
			U8("mode"),
			Bytes("reserved", 4),
		),
		Response: NewDescriptor(
			U8("ret_code"),
			Bytes("reserved", 4),
		),
	}

	StatusSubscription = &Command{
		Name:   "STATUS_SUBSCRIPTION",
		Family: FamilyCamera,
		ID:     CmdIDStatusSubscription,
		Request: NewDescriptor(
			U8("push_mode"),
			U8("push_freq"),
			Bytes("reserved", 4),
		),
	}
)

// DefaultRegistry holds every command this package knows how to encode and decode.
var DefaultRegistry = NewRegistry(
	VersionQuery,
	KeyReport,
	GPSPush,
	Connection,
	CameraStatusPush,
	RecordControl,
	ModeSwitch,
	StatusSubscription,
)

// Structure builders create payloads ready for CreateFrame.
// They only fill the fields the caller controls; everything else encodes as zero.

// NewConnectionRequest creates a CONNECTION request (0x00/0x19).
// mac is the controller's transport address (at most 16 bytes).
func NewConnectionRequest(deviceID uint32, mac []byte, verifyMode uint8, verifyData uint16) (Structure, error) {
	if len(mac) > MaxMACLength {
		return nil, fmt.Errorf("%w: mac address has %d bytes (max %d)", ErrFieldTooLarge, len(mac), MaxMACLength)
	}
	return Structure{
		"device_id":    deviceID,
		"mac_addr_len": uint8(len(mac)),
		"mac_addr":     append([]byte(nil), mac...),
		"fw_version":   uint32(0),
		"verify_mode":  verifyMode,
		"verify_data":  verifyData,
	}, nil
}

// NewConnectionResponse creates a CONNECTION response (ack) payload
func NewConnectionResponse(deviceID uint32, retCode uint8) Structure {
	return Structure{
		"device_id": deviceID,
		"ret_code":  retCode,
	}
}

// NewModeSwitch creates a MODE_SWITCH command (0x1D/0x04)
func NewModeSwitch(deviceID uint32, mode CameraMode) Structure {
	return Structure{
		"device_id": deviceID,
		"mode":      uint8(mode),
	}
}

// NewRecordControl creates a RECORD_CONTROL command (0x1D/0x03).
// ctrl is RecordStart or RecordStop.
func NewRecordControl(deviceID uint32, ctrl uint8) Structure {
	return Structure{
		"device_id":   deviceID,
		"record_ctrl": ctrl,
	}
}

// NewStatusSubscription creates a STATUS_SUBSCRIPTION command (0x1D/0x05)
func NewStatusSubscription(mode PushMode, freq uint8) Structure {
	return Structure{
		"push_mode": uint8(mode),
		"push_freq": freq,
	}
}

// NewKeyReport creates a KEY_REPORT command (0x00/0x11)
func NewKeyReport(keyCode, mode uint8, keyValue uint16) Structure {
	return Structure{
		"key_code":  keyCode,
		"mode":      mode,
		"key_value": keyValue,
	}
}

// NewVersionQuery creates a VERSION_QUERY command (0x00/0x00), which has no payload
func NewVersionQuery() Structure {
	return Structure{}
}

// GPSFix is a position sample for NewGPSPush.
type GPSFix struct {
	Date       int32   // year*10000 + month*100 + day
	Time       int32   // (hour+8)*10000 + minute*100 + second
	Longitude  float64 // degrees
	Latitude   float64 // degrees
	HeightMM   int32
	SpeedNorth float32 // cm/s
	SpeedEast  float32 // cm/s
	SpeedDown  float32 // cm/s
	VAccMM     uint32
	HAccMM     uint32
	SpeedAcc   uint32 // cm/s
	Satellites uint32
}

// NewGPSPush creates a GPS_PUSH command (0x00/0x17). Coordinates are sent as degrees * 10^7.
func NewGPSPush(fix GPSFix) Structure {
	return Structure{
		"year_month_day":      fix.Date,
		"hour_minute_second":  fix.Time,
		"gps_longitude":       int32(fix.Longitude * 1e7),
		"gps_latitude":        int32(fix.Latitude * 1e7),
		"height":              fix.HeightMM,
		"speed_to_north":      fix.SpeedNorth,
		"speed_to_east":       fix.SpeedEast,
		"speed_to_wnward":     fix.SpeedDown,
		"vertical_accuracy":   fix.VAccMM,
		"horizontal_accuracy": fix.HAccMM,
		"speed_accuracy":      fix.SpeedAcc,
		"satellite_number":    fix.Satellites,
	}
}
