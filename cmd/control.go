// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/osmolink/pkg/dji"
	"github.com/Thermoquad/osmolink/pkg/link"
)

var cameraModes = map[string]dji.CameraMode{
	"slowmotion":       dji.CameraModeSlowMotion,
	"video":            dji.CameraModeNormal,
	"timelapse":        dji.CameraModeTimelapseStatic,
	"photo":            dji.CameraModePhoto,
	"hyperlapse":       dji.CameraModeTimelapseMotion,
	"live":             dji.CameraModeLiveStreaming,
	"uvc":              dji.CameraModeUVCStreaming,
	"lowlight":         dji.CameraModeLowLightVideo,
	"subject-tracking": dji.CameraModeSmartTracking,
}

var (
	gpsLat        float64
	gpsLon        float64
	gpsHeight     float64
	gpsSatellites uint32
	keyMode       string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Run the connection handshake and report the result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCamera(func(ctx context.Context, s *link.Session) error {
			fmt.Printf("State: %s\n", s.State())
			return nil
		})
	},
}

var modeCmd = &cobra.Command{
	Use:   "mode <mode>",
	Short: "Switch the camera mode",
	Long: `Switch the camera mode and print the camera's return code.

Modes: ` + strings.Join(modeNames(), ", ") + `
A raw numeric mode value (e.g. 0x05) is also accepted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := parseMode(args[0])
		if err != nil {
			return err
		}
		return withCamera(func(ctx context.Context, s *link.Session) error {
			cfg := s.Config()
			res, err := s.Send(ctx, dji.ModeSwitch, dji.CmdWaitResult, dji.NewModeSwitch(cfg.DeviceID, mode))
			if err != nil {
				return err
			}
			return printRetCode(res)
		})
	},
}

var recordCmd = &cobra.Command{
	Use:       "record start|stop",
	Short:     "Start or stop recording",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"start", "stop"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var ctrl uint8
		switch args[0] {
		case "start":
			ctrl = dji.RecordStart
		case "stop":
			ctrl = dji.RecordStop
		default:
			return fmt.Errorf("unknown record action %q (use start or stop)", args[0])
		}
		return withCamera(func(ctx context.Context, s *link.Session) error {
			res, err := s.Send(ctx, dji.RecordControl, dji.CmdWaitResult, dji.NewRecordControl(s.Config().DeviceID, ctrl))
			if err != nil {
				return err
			}
			return printRetCode(res)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Query the camera's product id and SDK version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCamera(func(ctx context.Context, s *link.Session) error {
			res, err := s.Send(ctx, dji.VersionQuery, dji.CmdWaitResult, dji.NewVersionQuery())
			if err != nil {
				return err
			}
			product, _ := res.Data.Bytes("product_id")
			sdk, _ := res.Data.Bytes("sdk_version")
			fmt.Printf("Product:  %s\n", cString(product))
			fmt.Printf("SDK:      %s\n", cString(sdk))
			fmt.Printf("Result:   %d\n", res.Data.Uint16("ack_result"))
			return nil
		})
	},
}

var keyCmd = &cobra.Command{
	Use:   "key <code> [value]",
	Short: "Report a key press to the camera",
	Long: `Send a KEY_REPORT. code is the key code (e.g. 0x01 record, 0x02 QS),
value is the key value (default 0). --mode selects state or event reporting.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid key code %q: %w", args[0], err)
		}
		var value uint64
		if len(args) == 2 {
			if value, err = strconv.ParseUint(args[1], 0, 16); err != nil {
				return fmt.Errorf("invalid key value %q: %w", args[1], err)
			}
		}
		mode := dji.KeyModeEvent
		switch keyMode {
		case "event":
		case "state":
			mode = dji.KeyModeState
		default:
			return fmt.Errorf("unknown key mode %q (use state or event)", keyMode)
		}
		return withCamera(func(ctx context.Context, s *link.Session) error {
			res, err := s.Send(ctx, dji.KeyReport, dji.CmdWaitResult, dji.NewKeyReport(uint8(code), mode, uint16(value)))
			if err != nil {
				return err
			}
			return printRetCode(res)
		})
	},
}

var gpsCmd = &cobra.Command{
	Use:   "gps",
	Short: "Push one GPS fix to the camera",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if gpsLat < -90 || gpsLat > 90 || gpsLon < -180 || gpsLon > 180 {
			return fmt.Errorf("coordinates out of range: %f, %f", gpsLat, gpsLon)
		}
		fix := gpsFixAt(time.Now().UTC())
		fix.Latitude = gpsLat
		fix.Longitude = gpsLon
		fix.HeightMM = int32(gpsHeight * 1000)
		fix.Satellites = gpsSatellites

		return withCamera(func(ctx context.Context, s *link.Session) error {
			res, err := s.Send(ctx, dji.GPSPush, dji.CmdResponseOrNot, dji.NewGPSPush(fix))
			if err != nil {
				return err
			}
			if !res.HasData() {
				fmt.Printf("GPS fix sent (no acknowledgement)\n")
				return nil
			}
			return printRetCode(res)
		})
	},
}

func init() {
	gpsCmd.Flags().Float64Var(&gpsLat, "lat", 0, "Latitude in degrees")
	gpsCmd.Flags().Float64Var(&gpsLon, "lon", 0, "Longitude in degrees")
	gpsCmd.Flags().Float64Var(&gpsHeight, "height", 0, "Height in meters")
	gpsCmd.Flags().Uint32Var(&gpsSatellites, "satellites", 8, "Satellite count to report")
	gpsCmd.MarkFlagRequired("lat")
	gpsCmd.MarkFlagRequired("lon")

	keyCmd.Flags().StringVar(&keyMode, "mode", "event", "Key report mode (state or event)")

	rootCmd.AddCommand(connectCmd, modeCmd, recordCmd, versionCmd, keyCmd, gpsCmd)
}

// withCamera connects, runs fn, and tears the link down
func withCamera(fn func(ctx context.Context, s *link.Session) error) error {
	ctx, stop := signalContext()
	defer stop()

	ls, err := connectLink(ctx)
	if err != nil {
		return err
	}
	defer ls.Close()
	return fn(ctx, ls.session)
}

func printRetCode(res *link.Result) error {
	ret := res.Data.Uint8("ret_code")
	fmt.Printf("%s: ret_code=%d (seq %d)\n", dji.CommandName(res.Family, res.ID), ret, res.Seq)
	if ret != dji.RetCodeSuccess {
		return fmt.Errorf("camera returned ret_code %d", ret)
	}
	return nil
}

func parseMode(s string) (dji.CameraMode, error) {
	if m, ok := cameraModes[strings.ToLower(s)]; ok {
		return m, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown mode %q (use one of %s)", s, strings.Join(modeNames(), ", "))
	}
	return dji.CameraMode(v), nil
}

func modeNames() []string {
	names := make([]string, 0, len(cameraModes))
	for name := range cameraModes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// gpsFixAt fills the date and time fields from a UTC timestamp. The camera
// expects the hour offset by 8 with no date rollover.
func gpsFixAt(t time.Time) dji.GPSFix {
	return dji.GPSFix{
		Date: int32(t.Year()*10000 + int(t.Month())*100 + t.Day()),
		Time: int32((t.Hour()+8)*10000 + t.Minute()*100 + t.Second()),
	}
}

// cString trims a fixed-size field at its first NUL
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
