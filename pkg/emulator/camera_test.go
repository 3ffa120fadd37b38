// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emulator

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/osmolink/pkg/dji"
	"github.com/Thermoquad/osmolink/pkg/link"
)

func testConfig() link.Config {
	cfg := link.DefaultConfig()
	cfg.ResponseTimeout = 200 * time.Millisecond
	cfg.OptionalWait = 20 * time.Millisecond
	cfg.HandshakeTimeout = 200 * time.Millisecond
	cfg.Backoff = link.BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 2 * time.Millisecond}
	cfg.Address = []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}
	return cfg
}

// connected returns a session that has completed the handshake with c
func connected(t *testing.T, c *Camera) *link.Session {
	t.Helper()
	s := Attach(c, testConfig())
	if err := s.RequestConnect(context.Background()); err != nil {
		t.Fatalf("RequestConnect failed: %v", err)
	}
	return s
}

func TestCamera_Handshake(t *testing.T) {
	c := New()
	s := Attach(c, testConfig())

	if c.Connected() {
		t.Fatal("camera connected before handshake")
	}
	if err := s.RequestConnect(context.Background()); err != nil {
		t.Fatalf("RequestConnect failed: %v", err)
	}
	if s.State() != link.StateConnected {
		t.Errorf("session state = %v", s.State())
	}
	if !c.Connected() {
		t.Error("camera did not see the controller ack")
	}
	if s.Pending() != 0 {
		t.Errorf("%d frames left in queue", s.Pending())
	}
}

func TestCamera_RejectsConnection(t *testing.T) {
	c := New(RejectConnections())
	s := Attach(c, testConfig())

	err := s.RequestConnect(context.Background())
	if !errors.Is(err, link.ErrHandshakeRejected) {
		t.Fatalf("expected ErrHandshakeRejected, got %v", err)
	}
	if c.Connected() {
		t.Error("camera should not be connected")
	}
}

func TestCamera_WrongIdentity(t *testing.T) {
	c := New(WithDeviceID(0xFF55))
	s := Attach(c, testConfig())

	if err := s.RequestConnect(context.Background()); !errors.Is(err, link.ErrHandshakeRejected) {
		t.Fatalf("expected ErrHandshakeRejected, got %v", err)
	}
}

func TestCamera_IgnoresCommandsBeforeHandshake(t *testing.T) {
	c := New()
	s := Attach(c, testConfig())

	_, err := s.Send(context.Background(), dji.RecordControl, dji.CmdWaitResult,
		dji.NewRecordControl(dji.DeviceIDController, dji.RecordStart))
	if !errors.Is(err, link.ErrResponseTimeout) {
		t.Fatalf("expected ErrResponseTimeout, got %v", err)
	}
	if c.Recording() {
		t.Error("camera started recording before handshake")
	}
}

func TestCamera_Commands(t *testing.T) {
	c := New()
	s := connected(t, c)
	ctx := context.Background()

	tests := []struct {
		name    string
		cmd     *dji.Command
		payload dji.Structure
		wantRet uint8
		check   func(t *testing.T)
	}{
		{
			name:    "mode switch",
			cmd:     dji.ModeSwitch,
			payload: dji.NewModeSwitch(dji.DeviceIDController, dji.CameraModePhoto),
			wantRet: RetOK,
			check: func(t *testing.T) {
				if c.Mode() != dji.CameraModePhoto {
					t.Errorf("mode = 0x%02X", uint8(c.Mode()))
				}
			},
		},
		{
			name:    "unknown mode",
			cmd:     dji.ModeSwitch,
			payload: dji.NewModeSwitch(dji.DeviceIDController, dji.CameraMode(0x77)),
			wantRet: RetRejected,
			check: func(t *testing.T) {
				if c.Mode() != dji.CameraModePhoto {
					t.Errorf("rejected switch changed mode to 0x%02X", uint8(c.Mode()))
				}
			},
		},
		{
			name:    "record start",
			cmd:     dji.RecordControl,
			payload: dji.NewRecordControl(dji.DeviceIDController, dji.RecordStart),
			wantRet: RetOK,
			check: func(t *testing.T) {
				if !c.Recording() {
					t.Error("camera not recording")
				}
			},
		},
		{
			name:    "record stop",
			cmd:     dji.RecordControl,
			payload: dji.NewRecordControl(dji.DeviceIDController, dji.RecordStop),
			wantRet: RetOK,
			check: func(t *testing.T) {
				if c.Recording() {
					t.Error("camera still recording")
				}
			},
		},
		{
			name:    "key report",
			cmd:     dji.KeyReport,
			payload: dji.NewKeyReport(0x01, dji.KeyModeEvent, 0),
			wantRet: RetOK,
			check: func(t *testing.T) {
				if c.LastKey() != 0x01 {
					t.Errorf("LastKey() = %d", c.LastKey())
				}
			},
		},
		{
			name:    "gps push",
			cmd:     dji.GPSPush,
			payload: dji.NewGPSPush(dji.GPSFix{Latitude: 51.5, Longitude: -0.125, Satellites: 9}),
			wantRet: RetOK,
			check: func(t *testing.T) {
				if c.GPSFixes() != 1 {
					t.Errorf("GPSFixes() = %d", c.GPSFixes())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Send(ctx, tt.cmd, dji.CmdWaitResult, tt.payload)
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if !res.HasData() {
				t.Fatal("expected a response")
			}
			if got := res.Data.Uint8("ret_code"); got != tt.wantRet {
				t.Errorf("ret_code = %d, want %d", got, tt.wantRet)
			}
			tt.check(t)
		})
	}
}

func TestCamera_VersionQuery(t *testing.T) {
	c := New()
	s := connected(t, c)

	res, err := s.Send(context.Background(), dji.VersionQuery, dji.CmdWaitResult, dji.NewVersionQuery())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	product, _ := res.Data.Bytes("product_id")
	if !bytes.HasPrefix(product, []byte("OSMO-EMU")) {
		t.Errorf("product_id = %q", product)
	}
	sdk, _ := res.Data.Bytes("sdk_version")
	if string(sdk) != "emu-1.0.0" {
		t.Errorf("sdk_version = %q", sdk)
	}
}

func TestCamera_NoResponsePolicy(t *testing.T) {
	c := New()
	s := connected(t, c)

	res, err := s.Send(context.Background(), dji.KeyReport, dji.CmdNoResponse, dji.NewKeyReport(0x02, dji.KeyModeEvent, 0))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.HasData() {
		t.Error("no-response command returned data")
	}
	if s.Pending() != 0 {
		t.Errorf("camera answered a no-response command (%d pending)", s.Pending())
	}
	if c.LastKey() != 0x02 {
		t.Errorf("LastKey() = %d", c.LastKey())
	}
}

func TestCamera_StatusSubscription(t *testing.T) {
	c := New(WithBattery(42))
	s := connected(t, c)
	ctx := context.Background()

	if _, err := s.Send(ctx, dji.StatusSubscription, dji.CmdNoResponse,
		dji.NewStatusSubscription(dji.PushModeSingle, dji.PushFreq10Hz)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	in, err := s.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !in.Frame.Is(dji.CameraStatusPush) {
		t.Fatalf("expected status push, got %s", dji.CommandName(in.Family, in.ID))
	}
	if in.Data.Uint8("camera_bat_percentage") != 42 {
		t.Errorf("battery = %d", in.Data.Uint8("camera_bat_percentage"))
	}
	if c.StatusPush() != nil {
		t.Error("single push subscription should not push again")
	}

	if _, err := s.Send(ctx, dji.StatusSubscription, dji.CmdNoResponse,
		dji.NewStatusSubscription(dji.PushModePeriodic, dji.PushFreq10Hz)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if c.StatusPush() == nil {
			t.Fatalf("periodic push %d missing", i)
		}
	}
}

func TestCamera_HandleDropsGarbage(t *testing.T) {
	c := New()
	for _, b := range [][]byte{nil, {0xAA}, bytes.Repeat([]byte{0x55}, 40)} {
		if out := c.Handle(b); out != nil {
			t.Errorf("Handle(%x) = %d frames", b, len(out))
		}
	}
}

// wsConn adapts a gorilla client connection to link.PacketConn
type wsConn struct {
	ws *websocket.Conn
}

func (w wsConn) ReadPacket() ([]byte, error) {
	for {
		mt, data, err := w.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w wsConn) WritePacket(p []byte) error {
	return w.ws.WriteMessage(websocket.BinaryMessage, p)
}

func (w wsConn) Close() error {
	return w.ws.Close()
}

func TestCamera_ServeHTTP(t *testing.T) {
	c := New()
	srv := httptest.NewServer(c)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	conn := wsConn{ws: ws}
	s := link.NewSession(link.ConnTransport{Conn: conn}, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go link.Pump(ctx, conn, s)

	if err := s.RequestConnect(ctx); err != nil {
		t.Fatalf("RequestConnect failed: %v", err)
	}

	if _, err := s.Send(ctx, dji.StatusSubscription, dji.CmdNoResponse,
		dji.NewStatusSubscription(dji.PushModePeriodic, dji.PushFreq10Hz)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	pushes := 0
	for pushes < 3 {
		in, err := s.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive failed after %d pushes: %v", pushes, err)
		}
		if in.Frame.Is(dji.CameraStatusPush) {
			pushes++
		}
	}
}
