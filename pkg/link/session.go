// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link runs command exchanges with a camera over a packet transport.
//
// A Session owns the sequence counter, the inbound queue and the connection
// handshake state. The transport hands every inbound packet to Deliver from
// its own goroutine; commands are issued from the caller's goroutine. The
// inbound queue has a single consumer, so exchanges are serialised: at most
// one SendCommand, RequestConnect or Receive runs at a time.
package link

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/osmolink/pkg/dji"
)

// Session errors
var (
	ErrTransport         = errors.New("link: transport error")
	ErrResponseTimeout   = errors.New("link: response timeout")
	ErrMalformedResponse = errors.New("link: malformed response")
	ErrHandshakeRejected = errors.New("link: handshake rejected")
	ErrInvalidCmdType    = errors.New("link: invalid cmd_type")
)

// Transport writes one frame to the device.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(ctx context.Context, frame []byte) error

// Send calls f(ctx, frame)
func (f TransportFunc) Send(ctx context.Context, frame []byte) error {
	return f(ctx, frame)
}

// Result is the outcome of a command exchange.
// Frame is nil when no response was required or none arrived in time.
type Result struct {
	Seq    uint16
	Frame  *dji.Frame
	Family uint8
	ID     uint8
	Data   dji.Structure
}

// HasData reports whether a response payload was received
func (r *Result) HasData() bool {
	return r != nil && r.Frame != nil
}

// Session is one controller-to-camera connection.
type Session struct {
	cfg       Config
	transport Transport
	queue     *Queue
	log       zerolog.Logger

	seq   atomic.Uint32
	state atomic.Int32

	mu  sync.Mutex // serialises exchanges; guards rng
	rng *rand.Rand
}

// NewSession creates a session that writes through t.
func NewSession(t Transport, cfg Config) *Session {
	if cfg.Registry == nil {
		cfg.Registry = dji.DefaultRegistry
	}
	s := &Session{
		cfg:       cfg,
		transport: t,
		queue:     NewQueue(),
		log:       cfg.Logger.With().Str("component", "link").Logger(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.seq.Store(1)
	recordState(StateDisconnected)
	return s
}

// Config returns the session configuration
func (s *Session) Config() Config {
	return s.cfg
}

// NextSeq allocates the next sequence number. The counter starts at 1 and
// wraps from 65535 to 0.
func (s *Session) NextSeq() uint16 {
	return uint16(s.seq.Add(1) - 1)
}

// Deliver hands one inbound packet to the session. It is safe to call from
// the transport's goroutine concurrently with any other method. Packets that
// do not start with SOF are dropped here. b is copied.
func (s *Session) Deliver(b []byte) {
	recordFrameReceived()
	if len(b) == 0 || b[0] != dji.SOF {
		recordDiscard(DiscardSOF)
		s.log.Debug().Int("len", len(b)).Msg("dropping packet without SOF")
		return
	}
	if !s.queue.Push(append([]byte(nil), b...)) {
		s.log.Debug().Msg("session closed, dropping packet")
	}
}

// Pending returns the number of undelivered inbound packets
func (s *Session) Pending() int {
	return s.queue.Len()
}

// Close releases any blocked exchange. Further packets are dropped.
func (s *Session) Close() {
	s.queue.Close()
}

// SendCommand encodes st, transmits it with a fresh sequence number and
// waits for a response according to the cmdType policy.
func (s *Session) SendCommand(ctx context.Context, family, id uint8, cmdType dji.CmdType, st dji.Structure) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchange(ctx, family, id, cmdType, st, s.NextSeq())
}

// SendCommandSeq is SendCommand with an explicit sequence number, used to
// acknowledge a frame the camera sent under its own numbering.
func (s *Session) SendCommandSeq(ctx context.Context, family, id uint8, cmdType dji.CmdType, st dji.Structure, seq uint16) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchange(ctx, family, id, cmdType, st, seq)
}

// Send issues a command from the catalogue
func (s *Session) Send(ctx context.Context, cmd *dji.Command, cmdType dji.CmdType, st dji.Structure) (*Result, error) {
	return s.SendCommand(ctx, cmd.Family, cmd.ID, cmdType, st)
}

// exchange must be called with s.mu held.
func (s *Session) exchange(ctx context.Context, family, id uint8, cmdType dji.CmdType, st dji.Structure, seq uint16) (*Result, error) {
	if !cmdType.Valid() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidCmdType, uint8(cmdType))
	}

	name := s.cfg.Registry.Name(family, id)
	frame, err := s.cfg.Registry.CreateFrame(family, id, cmdType, st, seq)
	if err != nil {
		return nil, err
	}

	log := s.log.With().
		Str("command", name).
		Str("cmd_type", dji.FormatCmdType(cmdType)).
		Uint16("seq", seq).
		Logger()
	log.Debug().Str("frame", hex.EncodeToString(frame)).Msg("sending command")

	start := time.Now()
	if err := s.transport.Send(ctx, frame); err != nil {
		recordExchange(name, "transport", time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	recordFrameSent(name, dji.FormatCmdType(cmdType))

	var res *Result
	switch cmdType.Policy() {
	case dji.CmdNoResponse:
		res = &Result{Seq: seq}
	case dji.CmdResponseOrNot:
		res, err = s.awaitOptional(ctx, seq, log)
	default:
		res, err = s.awaitRequired(ctx, seq, log)
	}

	recordExchange(name, outcome(res, err), time.Since(start))
	return res, err
}

// awaitOptional pops at most one frame. A missing, unparseable or unrelated
// frame yields a result without data, not an error.
func (s *Session) awaitOptional(ctx context.Context, seq uint16, log zerolog.Logger) (*Result, error) {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.OptionalWait)
	defer cancel()

	res := &Result{Seq: seq}
	b, err := s.queue.Pop(wctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug().Msg("no optional response")
		return res, nil
	}

	f, err := dji.ParseNotification(b)
	if err != nil {
		recordDiscard(DiscardFraming)
		log.Debug().Err(err).Msg("optional response unparseable")
		return res, nil
	}
	if f.Seq != seq {
		recordDiscard(DiscardSequence)
		log.Debug().Uint16("got_seq", f.Seq).Msg("optional response sequence mismatch")
		return res, nil
	}

	family, id, data, err := s.cfg.Registry.ParseData(f.Data, f.CmdType)
	if err != nil {
		log.Debug().Err(err).Msg("optional response payload undecodable")
		return res, nil
	}
	res.Frame, res.Family, res.ID, res.Data = f, family, id, data
	return res, nil
}

// awaitRequired consumes frames until one carries seq. Unparseable frames
// and frames for other sequence numbers are discarded, not requeued.
func (s *Session) awaitRequired(ctx context.Context, seq uint16, log zerolog.Logger) (*Result, error) {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.ResponseTimeout)
	defer cancel()

	discards := 0
	discard := func(reason string) error {
		recordDiscard(reason)
		discards++
		if s.cfg.MaxDiscards > 0 && discards >= s.cfg.MaxDiscards {
			return fmt.Errorf("%w: seq %d, %d unrelated frames discarded", ErrResponseTimeout, seq, discards)
		}
		return s.sleep(wctx, NextBackoffDelay(s.cfg.Backoff, discards, s.rng))
	}

	for {
		b, err := s.queue.Pop(wctx)
		if err != nil {
			return nil, s.waitError(ctx, err, seq, discards)
		}

		f, err := dji.ParseNotification(b)
		if err != nil {
			log.Debug().Err(err).Msg("discarding unparseable frame")
			if err := discard(DiscardFraming); err != nil {
				return nil, s.waitError(ctx, err, seq, discards)
			}
			continue
		}
		if f.Seq != seq {
			log.Debug().Uint16("got_seq", f.Seq).Msg("discarding frame with other sequence number")
			if err := discard(DiscardSequence); err != nil {
				return nil, s.waitError(ctx, err, seq, discards)
			}
			continue
		}

		family, id, data, err := s.cfg.Registry.ParseData(f.Data, f.CmdType)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return &Result{Seq: seq, Frame: f, Family: family, ID: id, Data: data}, nil
	}
}

// waitError turns a failed wait into the error reported to the caller
func (s *Session) waitError(ctx context.Context, err error, seq uint16, discards int) error {
	switch {
	case errors.Is(err, ErrResponseTimeout), errors.Is(err, ErrQueueClosed):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: seq %d after %d discarded frames", ErrResponseTimeout, seq, discards)
	default:
		return err
	}
}

func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func outcome(res *Result, err error) string {
	switch {
	case errors.Is(err, ErrResponseTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case err != nil:
		return "error"
	case res.HasData():
		return "response"
	default:
		return "sent"
	}
}

// Inbound is one frame taken off the queue by Receive.
type Inbound struct {
	Raw    []byte
	Frame  *dji.Frame
	Family uint8
	ID     uint8
	Data   dji.Structure
}

// Receive pops the next inbound packet and decodes it. Framing errors are
// returned with a nil Inbound; payload errors return the parsed frame along
// with the error so callers can still count or display it.
func (s *Session) Receive(ctx context.Context) (*Inbound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.queue.Pop(ctx)
	if err != nil {
		return nil, err
	}

	f, err := dji.ParseNotification(b)
	if err != nil {
		return nil, err
	}
	in := &Inbound{Raw: b, Frame: f, Family: f.Family(), ID: f.ID()}

	_, _, data, err := s.cfg.Registry.ParseData(f.Data, f.CmdType)
	if err != nil {
		return in, err
	}
	in.Data = data
	return in, nil
}
