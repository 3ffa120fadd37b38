// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dji

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewConnectionRequest(t *testing.T) {
	mac := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	s, err := NewConnectionRequest(DeviceIDController, mac, VerifyModeRequest, 1234)
	if err != nil {
		t.Fatalf("NewConnectionRequest failed: %v", err)
	}

	b := mustFrame(t, FamilyGeneral, CmdIDConnection, CmdWaitResult, s, 7)
	f, err := ParseNotification(b)
	if err != nil {
		t.Fatalf("ParseNotification failed: %v", err)
	}
	_, _, got, err := ParseData(f.Data, f.CmdType)
	if err != nil {
		t.Fatalf("ParseData failed: %v", err)
	}

	if got.Uint32("device_id") != DeviceIDController {
		t.Errorf("device_id = 0x%X", got.Uint32("device_id"))
	}
	if got.Uint8("mac_addr_len") != 6 {
		t.Errorf("mac_addr_len = %d", got.Uint8("mac_addr_len"))
	}
	addr, _ := got.Bytes("mac_addr")
	if !bytes.Equal(addr[:6], mac) || !bytes.Equal(addr[6:], make([]byte, 10)) {
		t.Errorf("mac_addr = % X", addr)
	}
	if got.Uint8("verify_mode") != VerifyModeRequest || got.Uint16("verify_data") != 1234 {
		t.Errorf("verify fields = %d/%d", got.Uint8("verify_mode"), got.Uint16("verify_data"))
	}
	// the caller's mac slice is copied, not retained
	mac[0] = 0x00
	if b, _ := s.Bytes("mac_addr"); b[0] != 0x11 {
		t.Error("builder retained caller's mac slice")
	}
}

func TestNewConnectionRequest_MACTooLong(t *testing.T) {
	_, err := NewConnectionRequest(DeviceIDController, make([]byte, MaxMACLength+1), VerifyModeRequest, 0)
	if !errors.Is(err, ErrFieldTooLarge) {
		t.Errorf("expected ErrFieldTooLarge, got %v", err)
	}
}

func TestBuilders_Encode(t *testing.T) {
	tests := []struct {
		name string
		cmd  *Command
		ct   CmdType
		s    Structure
	}{
		{"connection response", Connection, AckNoResponse, NewConnectionResponse(DeviceIDController, RetCodeSuccess)},
		{"mode switch", ModeSwitch, CmdWaitResult, NewModeSwitch(DeviceIDController, CameraModeTimelapseMotion)},
		{"record control", RecordControl, CmdWaitResult, NewRecordControl(DeviceIDController, RecordStop)},
		{"status subscription", StatusSubscription, CmdNoResponse, NewStatusSubscription(PushModePeriodicWithStateChange, PushFreq10Hz)},
		{"key report", KeyReport, CmdWaitResult, NewKeyReport(0x01, KeyModeEvent, 0x0002)},
		{"version query", VersionQuery, CmdWaitResult, NewVersionQuery()},
		{"gps push", GPSPush, CmdNoResponse, NewGPSPush(GPSFix{Date: 20250101, Latitude: 51.5, Longitude: -0.12})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := CreateFrame(tt.cmd.Family, tt.cmd.ID, tt.ct, tt.s, 1)
			if err != nil {
				t.Fatalf("CreateFrame failed: %v", err)
			}
			f, err := ParseNotification(b)
			if err != nil {
				t.Fatalf("ParseNotification failed: %v", err)
			}
			if !f.Is(tt.cmd) {
				t.Errorf("frame is 0x%02X/0x%02X, want %s", f.Family(), f.ID(), tt.cmd.Name)
			}
		})
	}
}

func TestNewStatusSubscription_Wire(t *testing.T) {
	b := mustFrame(t, FamilyCamera, CmdIDStatusSubscription, CmdNoResponse,
		NewStatusSubscription(PushModePeriodic, PushFreq10Hz), 1)
	f, err := ParseNotification(b)
	if err != nil {
		t.Fatalf("ParseNotification failed: %v", err)
	}
	// family, id, push_mode, push_freq, reserved[4]
	want := []byte{FamilyCamera, CmdIDStatusSubscription, uint8(PushModePeriodic), 100, 0, 0, 0, 0}
	if !bytes.Equal(f.Data, want) {
		t.Errorf("data = % X, want % X", f.Data, want)
	}
}

func TestCmdType_Valid(t *testing.T) {
	for c := 0; c < 256; c++ {
		ct := CmdType(c)
		want := c == 0x00 || c == 0x01 || c == 0x02 || c == 0x20 || c == 0x21 || c == 0x22
		if ct.Valid() != want {
			t.Errorf("CmdType(0x%02X).Valid() = %v, want %v", c, ct.Valid(), want)
		}
	}
}

func TestNewGPSPush_Scaling(t *testing.T) {
	s := NewGPSPush(GPSFix{Latitude: 51.5, Longitude: -0.125})
	if lat, _ := s.Int("gps_latitude"); lat != 515000000 {
		t.Errorf("gps_latitude = %d, want 515000000", lat)
	}
	if lon, _ := s.Int("gps_longitude"); lon != -1250000 {
		t.Errorf("gps_longitude = %d, want -1250000", lon)
	}
}

func TestCommandName(t *testing.T) {
	if name := CommandName(FamilyGeneral, CmdIDConnection); name != "CONNECTION" {
		t.Errorf("CommandName = %q", name)
	}
	if name := CommandName(0x7F, 0x01); name != "UNKNOWN" {
		t.Errorf("CommandName = %q", name)
	}
}
