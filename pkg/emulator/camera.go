// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package emulator implements the camera side of the protocol, for tests and
// for exercising the CLI without hardware.
package emulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/osmolink/pkg/dji"
	"github.com/Thermoquad/osmolink/pkg/link"
)

// Ret codes the emulated camera answers with
const (
	RetOK       uint8 = 0
	RetRejected uint8 = 1
)

// Camera is an emulated camera. It is safe for concurrent use.
type Camera struct {
	mu sync.Mutex

	deviceID      uint32
	productID     string
	sdkVersion    string
	seq           uint16
	connected     bool
	mode          dji.CameraMode
	recording     bool
	recordStart   time.Time
	battery       uint8
	pushMode      dji.PushMode
	lastKey       uint8
	gpsFixes      int
	rejectConnect bool

	log zerolog.Logger
}

// Option configures a Camera
type Option func(*Camera)

// WithLogger sets the camera logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Camera) { c.log = log }
}

// WithDeviceID overrides the identity reported in connection frames
func WithDeviceID(id uint32) Option {
	return func(c *Camera) { c.deviceID = id }
}

// WithBattery sets the reported battery percentage
func WithBattery(pct uint8) Option {
	return func(c *Camera) { c.battery = pct }
}

// RejectConnections makes the camera answer connection requests with RetRejected
func RejectConnections() Option {
	return func(c *Camera) { c.rejectConnect = true }
}

// New creates an emulated camera in normal video mode
func New(opts ...Option) *Camera {
	c := &Camera{
		deviceID:   dji.DeviceIDCamera,
		productID:  "OSMO-EMU",
		sdkVersion: "emu-1.0.0",
		seq:        0x8000,
		mode:       dji.CameraModeNormal,
		battery:    87,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected reports whether the controller acknowledged the handshake
func (c *Camera) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Recording reports whether a RECORD_CONTROL start is in effect
func (c *Camera) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Mode returns the current camera mode
func (c *Camera) Mode() dji.CameraMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// LastKey returns the key code of the most recent KEY_REPORT
func (c *Camera) LastKey() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastKey
}

// GPSFixes returns how many GPS_PUSH frames were received
func (c *Camera) GPSFixes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gpsFixes
}

// PushMode returns the current status subscription
func (c *Camera) PushMode() dji.PushMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushMode
}

// Handle processes one frame written by the controller and returns the
// frames the camera sends back, in order.
func (c *Camera) Handle(frame []byte) [][]byte {
	f, err := dji.ParseNotification(frame)
	if err != nil {
		c.log.Debug().Err(err).Msg("dropping bad frame")
		return nil
	}
	_, _, s, err := dji.ParseData(f.Data, f.CmdType)
	if err != nil {
		c.log.Debug().Err(err).Msg("dropping undecodable frame")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if f.Is(dji.Connection) {
		return c.handleConnection(f, s)
	}
	if !c.connected {
		c.log.Debug().Str("command", dji.CommandName(f.Family(), f.ID())).Msg("ignoring command before handshake")
		return nil
	}
	if f.CmdType.IsAck() {
		return nil
	}

	var out [][]byte
	ret := RetOK
	switch {
	case f.Is(dji.ModeSwitch):
		mode := dji.CameraMode(s.Uint8("mode"))
		if mode.Known() {
			c.mode = mode
		} else {
			ret = RetRejected
		}
		out = c.reply(f, dji.Structure{"ret_code": ret})
	case f.Is(dji.RecordControl):
		switch s.Uint8("record_ctrl") {
		case dji.RecordStart:
			if !c.recording {
				c.recording = true
				c.recordStart = time.Now()
			}
		case dji.RecordStop:
			c.recording = false
		default:
			ret = RetRejected
		}
		out = c.reply(f, dji.Structure{"ret_code": ret})
	case f.Is(dji.KeyReport):
		c.lastKey = s.Uint8("key_code")
		out = c.reply(f, dji.Structure{"ret_code": ret})
	case f.Is(dji.GPSPush):
		c.gpsFixes++
		out = c.reply(f, dji.Structure{"ret_code": ret})
	case f.Is(dji.VersionQuery):
		out = c.reply(f, dji.Structure{
			"ack_result":  uint16(0),
			"product_id":  []byte(c.productID),
			"sdk_version": []byte(c.sdkVersion),
		})
	case f.Is(dji.StatusSubscription):
		c.pushMode = dji.PushMode(s.Uint8("push_mode"))
		if c.pushMode != dji.PushModeOff {
			if b := c.statusPushLocked(); b != nil {
				out = append(out, b)
			}
		}
		if c.pushMode == dji.PushModeSingle {
			c.pushMode = dji.PushModeOff
		}
	}
	return out
}

// handleConnection answers a controller's connection request and follows
// up with the camera's own confirmation request, or records the
// controller's acknowledgement of that confirmation.
func (c *Camera) handleConnection(f *dji.Frame, s dji.Structure) [][]byte {
	if f.CmdType.IsAck() {
		if s.Uint8("ret_code") == dji.RetCodeSuccess {
			c.connected = true
			c.log.Info().Str("peer_device_id", fmt.Sprintf("0x%X", s.Uint32("device_id"))).Msg("controller connected")
		}
		return nil
	}
	if s.Uint8("verify_mode") != dji.VerifyModeRequest {
		return nil
	}

	ret := dji.RetCodeSuccess
	if c.rejectConnect {
		ret = RetRejected
	}
	out := c.reply(f, dji.NewConnectionResponse(c.deviceID, ret))
	if ret != dji.RetCodeSuccess {
		return out
	}

	confirm := dji.Structure{
		"device_id":   c.deviceID,
		"verify_mode": dji.VerifyModeConfirm,
		"verify_data": s.Uint16("verify_data"),
	}
	if b := c.frame(dji.Connection, dji.CmdWaitResult, confirm, c.nextSeq()); b != nil {
		out = append(out, b)
	}
	return out
}

// StatusPush returns a CAMERA_STATUS_PUSH frame for the current state,
// or nil when no subscription is active.
func (c *Camera) StatusPush() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.pushMode == dji.PushModeOff {
		return nil
	}
	b := c.statusPushLocked()
	if c.pushMode == dji.PushModeSingle {
		c.pushMode = dji.PushModeOff
	}
	return b
}

func (c *Camera) statusPushLocked() []byte {
	var status uint8
	var seconds uint16
	if c.recording {
		status = 1
		seconds = uint16(time.Since(c.recordStart) / time.Second)
	}
	s := dji.Structure{
		"camera_mode":           uint8(c.mode),
		"camera_status":         status,
		"record_time":           seconds,
		"remain_capacity":       uint32(58000),
		"remain_photo_num":      uint32(9999),
		"remain_time":           uint32(7200),
		"camera_bat_percentage": c.battery,
	}
	return c.frame(dji.CameraStatusPush, dji.CmdNoResponse, s, c.nextSeq())
}

// reply answers f under its own sequence number, unless f asked for no response
func (c *Camera) reply(f *dji.Frame, s dji.Structure) [][]byte {
	if f.CmdType.Policy() == dji.CmdNoResponse {
		return nil
	}
	b := c.frame(&dji.Command{Family: f.Family(), ID: f.ID()}, dji.AckNoResponse, s, f.Seq)
	if b == nil {
		return nil
	}
	return [][]byte{b}
}

func (c *Camera) frame(cmd *dji.Command, cmdType dji.CmdType, s dji.Structure, seq uint16) []byte {
	b, err := dji.CreateFrame(cmd.Family, cmd.ID, cmdType, s, seq)
	if err != nil {
		c.log.Error().Err(err).Msg("building camera frame")
		return nil
	}
	return b
}

func (c *Camera) nextSeq() uint16 {
	c.seq++
	return c.seq
}

// Transport returns a link.Transport that feeds every written frame to the
// camera and hands the camera's replies to deliver.
func (c *Camera) Transport(deliver func([]byte)) link.Transport {
	return link.TransportFunc(func(ctx context.Context, frame []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, out := range c.Handle(frame) {
			deliver(out)
		}
		return nil
	})
}

// Attach connects the camera to a new session over an in-memory link
func Attach(c *Camera, cfg link.Config) *link.Session {
	var s *link.Session
	s = link.NewSession(c.Transport(func(b []byte) { s.Deliver(b) }), cfg)
	return s
}
