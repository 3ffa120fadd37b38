// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/osmolink/pkg/dji"
)

const peerSeq = 0x0777

// cameraPeer scripts the camera side of the handshake
type cameraPeer struct {
	deviceID    uint32
	retCode     uint8
	confirm     bool
	confirmMode uint8
}

func (p cameraPeer) attach(t *testing.T, tr *fakeTransport, s *Session) {
	tr.onSend = func(f *dji.Frame) {
		if !f.Is(dji.Connection) || f.CmdType != dji.CmdWaitResult {
			return
		}
		s.Deliver(mustFrame(t, dji.Connection, dji.AckNoResponse, dji.NewConnectionResponse(p.deviceID, p.retCode), f.Seq))

		// unrelated traffic the handshake must step over
		s.Deliver(mustFrame(t, dji.CameraStatusPush, dji.CmdNoResponse, dji.Structure{"camera_bat_percentage": uint8(80)}, 100))
		s.Deliver(mustFrame(t, dji.Connection, dji.CmdWaitResult,
			dji.Structure{"device_id": p.deviceID, "verify_mode": uint8(1)}, 101))

		if p.confirm {
			confirm := dji.Structure{
				"device_id":   p.deviceID,
				"verify_mode": p.confirmMode,
				"verify_data": uint16(0),
			}
			s.Deliver(mustFrame(t, dji.Connection, dji.CmdWaitResult, confirm, peerSeq))
		}
	}
}

func goodPeer() cameraPeer {
	return cameraPeer{deviceID: dji.DeviceIDCamera, confirm: true, confirmMode: dji.VerifyModeConfirm}
}

func TestRequestConnect_EndToEnd(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr, testConfig())
	goodPeer().attach(t, tr, s)

	if s.State() != StateDisconnected {
		t.Fatalf("initial state = %v", s.State())
	}
	if err := s.RequestConnect(context.Background()); err != nil {
		t.Fatalf("RequestConnect failed: %v", err)
	}
	if s.State() != StateConnected {
		t.Errorf("state = %v, want connected", s.State())
	}

	frames := tr.frames()
	if len(frames) != 2 {
		t.Fatalf("expected request and ack, got %d frames", len(frames))
	}

	req := frames[0]
	_, _, st, err := dji.ParseData(req.Data, req.CmdType)
	if err != nil {
		t.Fatalf("request payload: %v", err)
	}
	if req.CmdType != dji.CmdWaitResult || st.Uint32("device_id") != dji.DeviceIDController ||
		st.Uint8("verify_mode") != dji.VerifyModeRequest || st.Uint16("verify_data") >= 10000 ||
		st.Uint8("mac_addr_len") != 6 {
		t.Errorf("unexpected connection request %v", st)
	}

	acks := 0
	for _, f := range frames {
		if f.CmdType.IsAck() {
			acks++
		}
	}
	if acks != 1 {
		t.Fatalf("expected exactly one ack, got %d", acks)
	}
	ack := frames[1]
	if ack.CmdType != dji.AckNoResponse || ack.Seq != peerSeq || !ack.Is(dji.Connection) {
		t.Errorf("ack header: cmd_type %s seq %d", dji.FormatCmdType(ack.CmdType), ack.Seq)
	}
	_, _, st, err = dji.ParseData(ack.Data, ack.CmdType)
	if err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	if st.Uint32("device_id") != dji.DeviceIDController || st.Uint8("ret_code") != dji.RetCodeSuccess {
		t.Errorf("unexpected ack payload %v", st)
	}

	// the status push was consumed while scanning for the confirmation
	if s.Pending() != 0 {
		t.Errorf("%d frames left in queue", s.Pending())
	}
}

func TestRequestConnect_Failures(t *testing.T) {
	tests := []struct {
		name  string
		peer  *cameraPeer
		want  error
		sends int
	}{
		{"wrong identity", &cameraPeer{deviceID: 0x1234, confirm: true, confirmMode: dji.VerifyModeConfirm}, ErrHandshakeRejected, 1},
		{"rejected", &cameraPeer{deviceID: dji.DeviceIDCamera, retCode: 1}, ErrHandshakeRejected, 1},
		{"no confirmation", &cameraPeer{deviceID: dji.DeviceIDCamera}, ErrResponseTimeout, 1},
		{"wrong verify mode", &cameraPeer{deviceID: dji.DeviceIDCamera, confirm: true, confirmMode: 3}, ErrResponseTimeout, 1},
		{"no response", nil, ErrResponseTimeout, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.ResponseTimeout = 50 * time.Millisecond
			cfg.HandshakeTimeout = 50 * time.Millisecond
			tr := &fakeTransport{}
			s := NewSession(tr, cfg)
			if tt.peer != nil {
				tt.peer.attach(t, tr, s)
			}

			err := s.RequestConnect(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if s.State() != StateFailed {
				t.Errorf("state = %v, want failed", s.State())
			}
			if n := len(tr.frames()); n != tt.sends {
				t.Errorf("sent %d frames, want %d", n, tt.sends)
			}
		})
	}
}

func TestRequestConnect_ResponseNotAnAck(t *testing.T) {
	tr := &fakeTransport{}
	s := NewSession(tr, testConfig())
	tr.onSend = func(f *dji.Frame) {
		if f.CmdType != dji.CmdWaitResult {
			return
		}
		// request layout under our seq: carries no ret_code
		s.Deliver(mustFrame(t, dji.Connection, dji.CmdWaitResult,
			dji.Structure{"device_id": dji.DeviceIDCamera, "verify_mode": uint8(0)}, f.Seq))
	}

	err := s.RequestConnect(context.Background())
	if !errors.Is(err, ErrHandshakeRejected) {
		t.Fatalf("expected ErrHandshakeRejected, got %v", err)
	}
	if s.State() != StateFailed {
		t.Errorf("state = %v, want failed", s.State())
	}
	if n := len(tr.frames()); n != 1 {
		t.Errorf("sent %d frames, want 1", n)
	}
}

func TestRequestConnect_TransportError(t *testing.T) {
	s := NewSession(&fakeTransport{err: errors.New("gatt write failed")}, testConfig())
	if err := s.RequestConnect(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if s.State() != StateFailed {
		t.Errorf("state = %v, want failed", s.State())
	}
}

func TestRequestConnect_AddressTooLong(t *testing.T) {
	cfg := testConfig()
	cfg.Address = make([]byte, dji.MaxMACLength+1)
	s := NewSession(&fakeTransport{}, cfg)
	if err := s.RequestConnect(context.Background()); !errors.Is(err, dji.ErrFieldTooLarge) {
		t.Fatalf("expected ErrFieldTooLarge, got %v", err)
	}
}

func TestConnectionState_String(t *testing.T) {
	tests := map[ConnectionState]string{
		StateDisconnected:  "disconnected",
		StateHandshakeSent: "handshake_sent",
		StateConnected:     "connected",
		StateFailed:        "failed",
	}
	for state, want := range tests {
		if state.String() != want {
			t.Errorf("%d.String() = %q, want %q", state, state.String(), want)
		}
	}
}
