// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/osmolink/pkg/dji"
)

// BackoffConfig defines the delay between discarded frames while waiting for a response.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines session identity, timeouts and retry budgets.
type Config struct {
	// DeviceID identifies this controller in connection frames.
	DeviceID uint32
	// PeerDeviceID is the identity the camera must report.
	PeerDeviceID uint32
	// Address is the controller's transport (BLE adapter) address, at most 16 bytes.
	Address []byte

	// ResponseTimeout bounds a required-response wait.
	ResponseTimeout time.Duration
	// OptionalWait bounds the single pop of an optional-response exchange.
	OptionalWait time.Duration
	// HandshakeTimeout bounds the wait for the camera's connection confirmation.
	HandshakeTimeout time.Duration
	// MaxDiscards bounds how many unrelated frames a required-response wait
	// may consume before giving up. 0 means only ResponseTimeout applies.
	MaxDiscards int
	Backoff     BackoffConfig

	Registry *dji.Registry
	Logger   zerolog.Logger
}

// DefaultConfig returns defaults matching the camera's observed behaviour.
func DefaultConfig() Config {
	return Config{
		DeviceID:         dji.DeviceIDController,
		PeerDeviceID:     dji.DeviceIDCamera,
		ResponseTimeout:  5 * time.Second,
		OptionalWait:     200 * time.Millisecond,
		HandshakeTimeout: 10 * time.Second,
		MaxDiscards:      64,
		Backoff: BackoffConfig{
			InitialDelay: 10 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     100 * time.Millisecond,
			Jitter:       false,
		},
		Registry: dji.DefaultRegistry,
		Logger:   zerolog.Nop(),
	}
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
