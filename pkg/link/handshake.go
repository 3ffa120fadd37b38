// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"

	"github.com/Thermoquad/osmolink/pkg/dji"
)

// ConnectionState is the handshake progress of a session.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateHandshakeSent
	StateConnected
	StateFailed
)

// String returns the state name
func (c ConnectionState) String() string {
	switch c {
	case StateDisconnected:
		return "disconnected"
	case StateHandshakeSent:
		return "handshake_sent"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(c))
	}
}

// State returns the current connection state
func (s *Session) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

func (s *Session) setState(c ConnectionState) {
	prev := ConnectionState(s.state.Swap(int32(c)))
	recordState(c)
	if prev != c {
		s.log.Info().Str("from", prev.String()).Str("state", c.String()).Msg("connection state changed")
	}
}

// RequestConnect runs the connection handshake:
//
//  1. send a CONNECTION request (verify_mode 0, random verify_data) and require
//     the camera's response with its identity and ret_code 0;
//  2. wait for the camera's own CONNECTION request carrying verify_mode 2,
//     under whatever sequence number the camera chose;
//  3. acknowledge it with a CONNECTION response under the camera's sequence number.
//
// Any failure leaves the session in StateFailed. The handshake is not retried.
func (s *Session) RequestConnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setState(StateHandshakeSent)

	verify := uint16(s.rng.Intn(10000))
	req, err := dji.NewConnectionRequest(s.cfg.DeviceID, s.cfg.Address, dji.VerifyModeRequest, verify)
	if err != nil {
		return s.fail(err)
	}

	res, err := s.exchange(ctx, dji.FamilyGeneral, dji.CmdIDConnection, dji.CmdWaitResult, req, s.NextSeq())
	if err != nil {
		return s.fail(err)
	}
	if !res.Frame.Is(dji.Connection) {
		return s.fail(fmt.Errorf("%w: response is %s", ErrHandshakeRejected, s.cfg.Registry.Name(res.Family, res.ID)))
	}
	if !res.Frame.CmdType.IsAck() {
		return s.fail(fmt.Errorf("%w: response cmd_type %s is not an ack", ErrHandshakeRejected, dji.FormatCmdType(res.Frame.CmdType)))
	}
	if id := res.Data.Uint32("device_id"); id != s.cfg.PeerDeviceID {
		return s.fail(fmt.Errorf("%w: peer device_id 0x%X, want 0x%X", ErrHandshakeRejected, id, s.cfg.PeerDeviceID))
	}
	ret, ok := res.Data.Uint("ret_code")
	if !ok {
		return s.fail(fmt.Errorf("%w: response has no ret_code", ErrHandshakeRejected))
	}
	if ret != uint64(dji.RetCodeSuccess) {
		return s.fail(fmt.Errorf("%w: ret_code %d", ErrHandshakeRejected, ret))
	}

	peerSeq, err := s.awaitConfirmation(ctx)
	if err != nil {
		return s.fail(err)
	}

	ack := dji.NewConnectionResponse(s.cfg.DeviceID, dji.RetCodeSuccess)
	if _, err := s.exchange(ctx, dji.FamilyGeneral, dji.CmdIDConnection, dji.AckNoResponse, ack, peerSeq); err != nil {
		return s.fail(err)
	}

	s.setState(StateConnected)
	return nil
}

// awaitConfirmation consumes frames until the camera's CONNECTION request
// with verify_mode 2 arrives and returns its sequence number. The sequence
// number is not checked against ours: the camera numbers this frame itself.
func (s *Session) awaitConfirmation(ctx context.Context) (uint16, error) {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	for {
		b, err := s.queue.Pop(wctx)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return 0, fmt.Errorf("%w: no connection confirmation", ErrResponseTimeout)
			}
			return 0, err
		}

		f, err := dji.ParseNotification(b)
		if err != nil {
			recordDiscard(DiscardFraming)
			s.log.Debug().Err(err).Msg("ignoring unparseable frame during handshake")
			continue
		}
		if !f.Is(dji.Connection) {
			recordDiscard(DiscardCommand)
			s.log.Debug().Str("command", s.cfg.Registry.Name(f.Family(), f.ID())).Msg("ignoring frame during handshake")
			continue
		}

		// the confirmation is a connection request whatever cmd_type it carries
		st, err := dji.Decode(dji.Connection.Request, f.Data[2:])
		if err != nil {
			recordDiscard(DiscardFraming)
			s.log.Debug().Err(err).Msg("ignoring undecodable connection frame")
			continue
		}
		if mode := st.Uint8("verify_mode"); mode != dji.VerifyModeConfirm {
			recordDiscard(DiscardCommand)
			s.log.Debug().Uint8("verify_mode", mode).Msg("ignoring connection frame")
			continue
		}

		s.log.Info().
			Uint16("peer_seq", f.Seq).
			Str("peer_device_id", fmt.Sprintf("0x%X", st.Uint32("device_id"))).
			Msg("connection confirmation received")
		return f.Seq, nil
	}
}

func (s *Session) fail(err error) error {
	s.setState(StateFailed)
	s.log.Warn().Err(err).Msg("connection handshake failed")
	return fmt.Errorf("connect: %w", err)
}
