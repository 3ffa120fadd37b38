// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/osmolink/pkg/capture"
	"github.com/Thermoquad/osmolink/pkg/dji"
)

var replayStats bool

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Print the frames recorded in a capture file",
	Long: `Decode and display every frame in a capture written with --capture.

Each record is shown with its direction (tx: controller to camera, rx: camera
to controller) followed by the decoded frame. Use --stats to finish with the
frame statistics of the received side.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayStats, "stats", false, "Print statistics for received frames")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return err
	}
	h := r.Header()
	fmt.Printf("Capture %s started %s\n\n", h.Session, h.Started.Format("2006-01-02 15:04:05.000"))

	stats := dji.NewStatistics()
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		frame, s, err := decodeRecord(rec.Bytes)
		if rec.Direction == capture.RX {
			var anomalies []dji.ValidationError
			if frame != nil && err == nil {
				anomalies = dji.ValidateFrame(frame, s)
			}
			stats.Update(err, anomalies)
		}

		fmt.Printf("%s ", rec.Direction)
		if frame == nil {
			fmt.Printf("[%s] [ERROR] %v (% X)\n\n", rec.Time.Format("15:04:05.000"), err, rec.Bytes)
			continue
		}
		frame.Timestamp = rec.Time
		fmt.Print(dji.FormatFrame(frame, s))
		if err != nil {
			fmt.Printf("  [ERROR] %v\n", err)
		}
		fmt.Println()
	}

	if replayStats {
		stats.CalculateRates()
		fmt.Print(stats.String())
	}
	return nil
}

// decodeRecord parses a captured frame. The frame is returned even when only
// its payload fails to decode.
func decodeRecord(b []byte) (*dji.Frame, dji.Structure, error) {
	f, err := dji.ParseNotification(b)
	if err != nil {
		return nil, nil, err
	}
	_, _, s, err := dji.ParseData(f.Data, f.CmdType)
	if err != nil {
		return f, nil, err
	}
	return f, s, nil
}
