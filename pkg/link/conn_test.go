// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/osmolink/pkg/dji"
)

// chanConn is an in-memory PacketConn
type chanConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
}

func newChanConn() *chanConn {
	return &chanConn{in: make(chan []byte, 16), out: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *chanConn) ReadPacket() ([]byte, error) {
	select {
	case p, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return p, nil
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

func (c *chanConn) WritePacket(p []byte) error {
	c.out <- append([]byte(nil), p...)
	return nil
}

func (c *chanConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func TestStreamConn_SplitsChunkedStream(t *testing.T) {
	a := ackFrame(t, 1)
	b := ackFrame(t, 2)
	stream := append([]byte{0x00, 0x01}, a...)
	stream = append(stream, 0x02)
	stream = append(stream, b...)

	local, remote := net.Pipe()
	defer local.Close()
	go func() {
		// odd chunk sizes so frames straddle reads
		for i := 0; i < len(stream); i += 7 {
			end := i + 7
			if end > len(stream) {
				end = len(stream)
			}
			if _, err := remote.Write(stream[i:end]); err != nil {
				return
			}
		}
		remote.Close()
	}()

	c := NewStreamConn(local, zerolog.Nop())
	for i, want := range [][]byte{a, b} {
		got, err := c.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("packet %d = %x, want %x", i, got, want)
		}
	}
	if _, err := c.ReadPacket(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
	if c.Skipped() != 3 {
		t.Errorf("Skipped() = %d, want 3", c.Skipped())
	}
}

func TestStreamConn_WritePacket(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	c := NewStreamConn(local, zerolog.Nop())
	frame := ackFrame(t, 9)
	go func() {
		if err := c.WritePacket(frame); err != nil {
			t.Errorf("WritePacket failed: %v", err)
		}
	}()

	buf := make([]byte, len(frame))
	if _, err := io.ReadFull(remote, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(buf, frame) {
		t.Errorf("wrote %x, want %x", buf, frame)
	}
}

func TestPump_DeliversUntilCanceled(t *testing.T) {
	conn := newChanConn()
	s := NewSession(ConnTransport{Conn: conn}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Pump(ctx, conn, s) }()

	conn.in <- ackFrame(t, 1)
	conn.in <- ackFrame(t, 2)

	deadline := time.Now().Add(time.Second)
	for s.Pending() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Pending() != 2 {
		t.Fatalf("expected 2 delivered packets, got %d", s.Pending())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Pump returned %v after cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pump did not stop")
	}
}

func TestPump_ReturnsReadError(t *testing.T) {
	conn := newChanConn()
	s := NewSession(ConnTransport{Conn: conn}, testConfig())
	close(conn.in)

	if err := Pump(context.Background(), conn, s); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

// TestSession_OverPacketConn runs a required-response exchange through ConnTransport and Pump
func TestSession_OverPacketConn(t *testing.T) {
	conn := newChanConn()
	s := NewSession(ConnTransport{Conn: conn}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Pump(ctx, conn, s)

	// camera: answer each written frame with a result under the same seq
	go func() {
		for p := range conn.out {
			f, err := dji.ParseNotification(p)
			if err != nil {
				continue
			}
			conn.in <- ackFrame(t, f.Seq)
		}
	}()

	res, err := s.Send(ctx, dji.RecordControl, dji.CmdWaitResult, dji.NewRecordControl(dji.DeviceIDController, dji.RecordStart))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !res.HasData() {
		t.Error("expected a response")
	}
}

func TestConnTransport_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (ConnTransport{Conn: newChanConn()}).Send(ctx, []byte{dji.SOF}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
