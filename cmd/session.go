// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Thermoquad/osmolink/pkg/capture"
	"github.com/Thermoquad/osmolink/pkg/link"
)

var capturePath string

func init() {
	rootCmd.PersistentFlags().StringVar(&capturePath, "capture", "", "Record every frame to a capture file")
}

// signalContext is canceled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// linkSession is an open connection with a session pumping it
type linkSession struct {
	conn    link.PacketConn
	info    string
	session *link.Session
	capture *os.File

	cancel    context.CancelFunc
	pumpErr   chan error
	closeOnce sync.Once
}

// openConn opens the connection selected by flags, wrapped for capture when --capture is set
func openConn() (link.PacketConn, string, *os.File, error) {
	conn, info, err := OpenConnection()
	if err != nil {
		return nil, "", nil, err
	}
	if capturePath == "" {
		return conn, info, nil, nil
	}

	f, err := os.Create(capturePath)
	if err != nil {
		conn.Close()
		return nil, "", nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	w, err := capture.NewWriter(f)
	if err != nil {
		f.Close()
		conn.Close()
		return nil, "", nil, err
	}
	logger.Info().Str("path", capturePath).Str("session", w.Header().Session.String()).Msg("capturing frames")
	return &capturingConn{PacketConn: conn, w: w}, info, f, nil
}

// openLink opens the connection and starts delivering inbound packets to a
// new session. No handshake is performed.
func openLink(ctx context.Context) (*linkSession, error) {
	cfg, err := loadLinkConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger

	conn, info, f, err := openConn()
	if err != nil {
		return nil, err
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	ls := &linkSession{
		conn:    conn,
		info:    info,
		session: link.NewSession(link.ConnTransport{Conn: conn}, cfg),
		capture: f,
		cancel:  cancel,
		pumpErr: make(chan error, 1),
	}
	go func() {
		err := link.Pump(pumpCtx, conn, ls.session)
		if err != nil {
			logger.Warn().Err(err).Msg("connection lost")
		}
		// unblock any waiter; the connection is gone
		ls.session.Close()
		ls.pumpErr <- err
	}()
	return ls, nil
}

// connectLink opens the connection and completes the handshake
func connectLink(ctx context.Context) (*linkSession, error) {
	ls, err := openLink(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Connection: %s\n", ls.info)
	if err := ls.session.RequestConnect(ctx); err != nil {
		ls.Close()
		return nil, err
	}
	fmt.Printf("Camera connected\n")
	return ls, nil
}

// Close stops the pump and releases the connection
func (ls *linkSession) Close() {
	ls.closeOnce.Do(func() {
		ls.cancel()
		<-ls.pumpErr
		ls.conn.Close()
		if ls.capture != nil {
			ls.capture.Close()
		}
	})
}
