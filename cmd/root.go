// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/osmolink/pkg/link"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Runtime flags
	configPath  string
	logLevel    string
	metricsAddr string
)

// logger is configured in PersistentPreRunE before any subcommand runs
var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "osmolink",
	Short: "DJI Osmo camera control over a BLE bridge",
	Long: `Osmolink - A CLI tool for controlling and monitoring DJI Osmo cameras.

Speaks the camera's BLE control protocol through a bridge: a serial adapter
that forwards the GATT notify/write characteristics as a byte stream, or a
WebSocket bridge that carries one frame per binary message.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the OSMOLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Session settings (device ids, timeouts, backoff) can be overridden with a TOML
file passed via --config.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Session config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+envLogLevel)
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func setup(cmd *cobra.Command, args []string) error {
	l, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	logger = l

	if metricsAddr != "" {
		link.RegisterMetrics()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			err := http.ListenAndServe(metricsAddr, mux)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
