// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/osmolink/pkg/emulator"
)

var (
	emulateListen  string
	emulateBattery uint8
	emulateReject  bool
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a software camera behind a WebSocket endpoint",
	Long: `Serve an emulated camera for testing without hardware.

The emulator speaks the camera side of the protocol over WebSocket, one frame
per binary message: it answers the connection handshake, acknowledges mode,
record, key and GPS commands, answers version queries and pushes status at
10 Hz while subscribed.

Point another osmolink at it with --url ws://<listen>/`,
	Args: cobra.NoArgs,
	RunE: runEmulate,
}

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.Flags().StringVar(&emulateListen, "listen", "127.0.0.1:8765", "Address to listen on")
	emulateCmd.Flags().Uint8Var(&emulateBattery, "battery", 87, "Battery percentage to report")
	emulateCmd.Flags().BoolVar(&emulateReject, "reject", false, "Reject connection requests")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	opts := []emulator.Option{
		emulator.WithLogger(logger.With().Str("component", "emulator").Logger()),
		emulator.WithBattery(emulateBattery),
	}
	if emulateReject {
		opts = append(opts, emulator.RejectConnections())
	}

	srv := &http.Server{
		Addr:              emulateListen,
		Handler:           emulator.New(opts...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	fmt.Printf("Emulated camera on ws://%s/\n", emulateListen)
	fmt.Printf("Press Ctrl+C to exit\n")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
