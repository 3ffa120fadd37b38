// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Thermoquad/osmolink/pkg/dji"
)

var (
	statusOnChange bool
	statusShowAll  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Live camera status in a terminal UI",
	Long: `Connect to the camera, subscribe to status pushes at 10 Hz and show the
camera mode, recording state and battery alongside frame statistics.

With --on-change the camera also pushes immediately whenever its state changes.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusOnChange, "on-change", false, "Also push on state changes")
	statusCmd.Flags().BoolVar(&statusShowAll, "show-all", false, "Log every frame, not just errors")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	ls, err := connectLink(ctx)
	if err != nil {
		return err
	}
	defer ls.Close()

	mode := dji.PushModePeriodic
	if statusOnChange {
		mode = dji.PushModePeriodicWithStateChange
	}
	if _, err := ls.session.Send(ctx, dji.StatusSubscription, dji.CmdNoResponse, dji.NewStatusSubscription(mode, dji.PushFreq10Hz)); err != nil {
		return err
	}

	return runTUI(ctx, ls, "OSMOLINK - CAMERA STATUS", statusShowAll)
}
