// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/osmolink/pkg/dji"
	"github.com/Thermoquad/osmolink/pkg/link"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure command round trips with VERSION_QUERY",
	Long: `Connect to the camera and send VERSION_QUERY repeatedly, reporting the
round-trip time of each exchange.

This is useful for verifying:
  - The bridge forwards writes and notifications in both directions
  - The handshake completes
  - Sequence numbers are echoed and responses matched

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	ls, err := connectLink(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer ls.Close()

	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	_, failCount := pingCamera(ctx, ls.session, pingCount, time.Duration(pingTimeout)*time.Second, os.Stdout)
	if failCount > 0 {
		ls.Close()
		os.Exit(1)
	}
	return nil
}

// pingCamera sends count VERSION_QUERY exchanges, each bounded by timeout,
// and prints one line per ping plus a summary.
func pingCamera(ctx context.Context, s *link.Session, count int, timeout time.Duration, out io.Writer) (successCount, failCount int) {
	var total time.Duration

	for i := 1; i <= count; i++ {
		fmt.Fprintf(out, "Ping %d/%d: ", i, count)

		pctx, cancel := context.WithTimeout(ctx, timeout)
		startTime := time.Now()
		res, err := s.Send(pctx, dji.VersionQuery, dji.CmdWaitResult, dji.NewVersionQuery())
		cancel()
		rtt := time.Since(startTime)

		if err != nil {
			fmt.Fprintf(out, "FAILED: %v\n", err)
			failCount++
		} else {
			product, _ := res.Data.Bytes("product_id")
			fmt.Fprintf(out, "reply from %s, seq=%d, rtt=%v\n", cString(product), res.Seq, rtt.Round(time.Millisecond))
			successCount++
			total += rtt
		}

		if ctx.Err() != nil {
			break
		}
		// Small delay between pings
		if i < count {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	sent := successCount + failCount
	fmt.Fprintf(out, "\n--- Ping statistics ---\n")
	fmt.Fprintf(out, "%d pings sent, %d responses received, %.0f%% loss\n",
		sent, successCount, float64(failCount)/float64(max(sent, 1))*100)
	if successCount > 0 {
		fmt.Fprintf(out, "avg rtt %v\n", (total / time.Duration(successCount)).Round(time.Millisecond))
	}
	return successCount, failCount
}
