// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/osmolink/pkg/dji"
	"github.com/Thermoquad/osmolink/pkg/link"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display camera frames as they arrive.

No handshake is performed: the command only listens, so it can be pointed at
a bridge while another controller drives the camera. Each frame is shown with
timestamp, command name, command type, sequence number and decoded fields.

Use --capture to record the frames to a file for later replay.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	ls, err := openLink(ctx)
	if err != nil {
		return err
	}
	defer ls.Close()

	fmt.Printf("Osmolink - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", ls.info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	for {
		in, err := ls.session.Receive(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, link.ErrQueueClosed):
			return nil
		case in == nil && err != nil:
			fmt.Printf("[ERROR] %v\n", err)
			continue
		case err != nil:
			fmt.Printf("[ERROR] %v\n", err)
		}
		fmt.Print(dji.FormatFrame(in.Frame, in.Data))
		fmt.Println()
	}
}
