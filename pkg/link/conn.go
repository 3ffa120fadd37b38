// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/osmolink/pkg/dji"
)

// PacketConn carries whole frames: each ReadPacket returns exactly one
// notification, each WritePacket sends exactly one frame.
type PacketConn interface {
	ReadPacket() ([]byte, error)
	WritePacket(p []byte) error
	io.Closer
}

// StreamConn adapts a byte stream without packet boundaries (a serial BLE
// bridge) into a PacketConn by splitting on SOF and frame_length.
type StreamConn struct {
	rw       io.ReadWriteCloser
	splitter *dji.Splitter
	pending  [][]byte
	buf      []byte
	log      zerolog.Logger

	wmu sync.Mutex
}

// NewStreamConn wraps rw
func NewStreamConn(rw io.ReadWriteCloser, log zerolog.Logger) *StreamConn {
	return &StreamConn{
		rw:       rw,
		splitter: dji.NewSplitter(),
		buf:      make([]byte, 256),
		log:      log,
	}
}

// ReadPacket returns the next candidate frame from the stream.
// Header errors are logged and skipped; the splitter resyncs by itself.
func (c *StreamConn) ReadPacket() ([]byte, error) {
	for len(c.pending) == 0 {
		n, err := c.rw.Read(c.buf)
		if n > 0 {
			frames, errs := c.splitter.Feed(c.buf[:n])
			for _, e := range errs {
				c.log.Debug().Err(e).Msg("stream resync")
			}
			c.pending = append(c.pending, frames...)
		}
		if err != nil {
			if len(c.pending) > 0 {
				break
			}
			return nil, err
		}
	}

	p := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	return p, nil
}

// WritePacket writes one frame to the stream
func (c *StreamConn) WritePacket(p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.rw.Write(p)
	return err
}

// Close closes the underlying stream
func (c *StreamConn) Close() error {
	return c.rw.Close()
}

// Skipped returns the number of stream bytes dropped outside frames
func (c *StreamConn) Skipped() uint64 {
	return c.splitter.Skipped()
}

// ConnTransport sends session frames over a PacketConn.
type ConnTransport struct {
	Conn PacketConn
}

// Send writes frame unless ctx is already done
func (t ConnTransport) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.Conn.WritePacket(frame)
}

// Pump reads packets from conn and delivers them to s until the connection
// fails or ctx is done. It returns nil when ctx ends the pump.
func Pump(ctx context.Context, conn PacketConn, s *Session) error {
	errc := make(chan error, 1)
	go func() {
		for {
			p, err := conn.ReadPacket()
			if err != nil {
				errc <- err
				return
			}
			s.Deliver(p)
		}
	}()

	select {
	case <-ctx.Done():
		// unblock the reader
		conn.Close()
		<-errc
		return nil
	case err := <-errc:
		return err
	}
}
