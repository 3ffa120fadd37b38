// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/osmolink/pkg/dji"
	"github.com/Thermoquad/osmolink/pkg/link"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and anomalies",
	Long: `Track frame errors, malformed data, and anomalous values with statistics.

This command listens without a handshake, validates each frame and detects:
  - Framing errors (bad SOF, length mismatches, CRC-16 and CRC-32 failures)
  - Unsupported commands and payload decode failures
  - Anomalous values (battery > 100%, unknown modes, non-zero reserved bytes)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	Args: cobra.NoArgs,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	ls, err := openLink(ctx)
	if err != nil {
		return err
	}
	defer ls.Close()

	if useTUI {
		return runTUI(ctx, ls, "OSMOLINK - ERROR DETECTION", showAll)
	}
	return runTextMode(ctx, ls)
}

func runTextMode(ctx context.Context, ls *linkSession) error {
	interval := time.Duration(statsInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	_, err := detectErrors(ctx, ls.session, ls.info, interval, showAll, os.Stdout)
	return err
}

// detectErrors validates inbound frames until ctx ends or the session closes,
// printing errors (and valid frames when all is set) to out.
func detectErrors(ctx context.Context, s *link.Session, info string, interval time.Duration, all bool, out io.Writer) (*dji.Statistics, error) {
	fmt.Fprintf(out, "Osmolink - Error Detection\n")
	fmt.Fprintf(out, "Connection: %s\n", info)
	fmt.Fprintf(out, "Mode: %s\n", map[bool]string{true: "All frames", false: "Errors only"}[all])
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	stats := dji.NewStatistics()
	lastStats := time.Now()

	for {
		// wake up at least once per interval so statistics keep printing on a quiet link
		rctx, cancel := context.WithTimeout(ctx, interval)
		in, err := s.Receive(rctx)
		cancel()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
		case ctx.Err() != nil, errors.Is(err, link.ErrQueueClosed):
			stats.CalculateRates()
			fmt.Fprint(out, "\n"+stats.String())
			return stats, nil
		case in == nil:
			stats.Update(err, nil)
			printFrameError(out, err)
		case err != nil:
			stats.Update(err, nil)
			printPayloadError(out, in, err)
		default:
			validationErrors := dji.ValidateFrame(in.Frame, in.Data)
			stats.Update(nil, validationErrors)
			if len(validationErrors) > 0 {
				printValidationErrors(out, in, validationErrors)
			} else if all {
				fmt.Fprint(out, dji.FormatFrame(in.Frame, in.Data))
				fmt.Fprintln(out)
			}
		}

		if time.Since(lastStats) >= interval {
			stats.CalculateRates()
			fmt.Fprint(out, "\n"+stats.String()+"\n")
			lastStats = time.Now()
		}
	}
}

// printFrameError prints a framing error in highlighted format
func printFrameError(out io.Writer, err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(out, "[%s] \033[1;31mFRAME ERROR:\033[0m %v\n", timestamp, err)
	fmt.Fprintf(out, "  >>> FRAME REJECTED <<<\n\n")
}

// printPayloadError prints a frame whose checksums passed but whose payload did not decode
func printPayloadError(out io.Writer, in *link.Inbound, err error) {
	timestamp := in.Frame.Timestamp.Format("15:04:05.000")
	name := dji.CommandName(in.Family, in.ID)

	fmt.Fprintf(out, "[%s] \033[1;31mDECODE ERROR:\033[0m %s (0x%02X/0x%02X)\n", timestamp, name, in.Family, in.ID)
	fmt.Fprintf(out, "  CRC: \033[1;32mOK\033[0m\n")
	fmt.Fprintf(out, "  Error: %v\n", err)
	fmt.Fprintf(out, "  Data: % X\n\n", in.Frame.Data)
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(out io.Writer, in *link.Inbound, errs []dji.ValidationError) {
	timestamp := in.Frame.Timestamp.Format("15:04:05.000")
	name := dji.CommandName(in.Family, in.ID)

	fmt.Fprintf(out, "[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X/0x%02X)\n", timestamp, name, in.Family, in.ID)
	fmt.Fprintf(out, "  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range errs {
		fmt.Fprintf(out, "  Issue %d: \033[1;31m%s\033[0m [%s]\n", i+1, err.Message, err.Type)
		for key, val := range err.Details {
			fmt.Fprintf(out, "    %s=%v\n", key, val)
		}
	}
	fmt.Fprintln(out)
}
