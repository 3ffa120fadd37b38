// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const envLogLevel = "OSMOLINK_LOG_LEVEL"

// newLogger builds the CLI logger. Logs go to stderr so command output on
// stdout stays clean. The level comes from flag, then env, then "warn".
func newLogger(flagLevel string) (zerolog.Logger, error) {
	level := strings.TrimSpace(flagLevel)
	if level == "" {
		level = strings.TrimSpace(os.Getenv(envLogLevel))
	}
	if level == "" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	l := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "osmolink").Logger()
	log.Logger = l
	return l, nil
}
