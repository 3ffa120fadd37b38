// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/osmolink/pkg/dji"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid camera frame",
	Long: `Wait for a valid camera frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any frame
that passes both the header CRC-16 and the frame CRC-32. Invalid bytes and
corrupted frames are counted and ignored. No handshake is performed.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing connectivity to a BLE bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Osmolink - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid camera frame...\n\n")

	// Channel for frame reception
	frameChan := make(chan *dji.Frame, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		rejected := 0
		for {
			p, err := conn.ReadPacket()
			if err != nil {
				errChan <- err
				return
			}

			f, err := dji.ParseNotification(p)
			if err != nil {
				// Ignore corrupted frames, just count them
				rejected++
				continue
			}
			if rejected > 0 {
				fmt.Printf("(rejected %d invalid frames before a valid one)\n", rejected)
			}
			frameChan <- f
			return
		}
	}()

	// Wait for frame or timeout
	select {
	case f := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Command: %s (0x%02X/0x%02X)\n", dji.CommandName(f.Family(), f.ID()), f.Family(), f.ID())
		fmt.Printf("  Type: %s\n", dji.FormatCmdType(f.CmdType))
		fmt.Printf("  Seq: %d\n", f.Seq)
		fmt.Printf("  Length: %d bytes\n", f.Length)
		fmt.Printf("  CRC-16: 0x%04X  CRC-32: 0x%08X\n", f.CRC16, f.CRC32)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
