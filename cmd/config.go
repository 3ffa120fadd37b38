// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/osmolink/pkg/link"
)

// config.toml key mapping to link session settings
type fileConfig struct {
	DeviceID         uint32        `toml:"device_id"`
	PeerDeviceID     uint32        `toml:"peer_device_id"`
	AdapterMAC       string        `toml:"adapter_mac"`
	ResponseTimeout  string        `toml:"response_timeout"`
	OptionalWait     string        `toml:"optional_wait"`
	HandshakeTimeout string        `toml:"handshake_timeout"`
	MaxDiscards      int           `toml:"max_discards"`
	Backoff          backoffConfig `toml:"backoff"`
}

type backoffConfig struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

// loadLinkConfig returns link defaults, overlaid with the keys set in path.
// An empty path returns the defaults.
func loadLinkConfig(path string) (link.Config, error) {
	cfg := link.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return link.Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return link.Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("device_id") {
		cfg.DeviceID = raw.DeviceID
	}
	if meta.IsDefined("peer_device_id") {
		cfg.PeerDeviceID = raw.PeerDeviceID
	}
	if meta.IsDefined("adapter_mac") {
		mac, err := net.ParseMAC(strings.TrimSpace(raw.AdapterMAC))
		if err != nil {
			return link.Config{}, fmt.Errorf("load config: adapter_mac: %w", err)
		}
		cfg.Address = mac
	}
	if meta.IsDefined("max_discards") {
		if raw.MaxDiscards < 0 {
			return link.Config{}, fmt.Errorf("load config: max_discards must be >= 0")
		}
		cfg.MaxDiscards = raw.MaxDiscards
	}
	if meta.IsDefined("backoff", "multiplier") {
		cfg.Backoff.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("backoff", "jitter") {
		cfg.Backoff.Jitter = raw.Backoff.Jitter
	}

	durations := []struct {
		key  []string
		val  string
		dest *time.Duration
	}{
		{[]string{"response_timeout"}, raw.ResponseTimeout, &cfg.ResponseTimeout},
		{[]string{"optional_wait"}, raw.OptionalWait, &cfg.OptionalWait},
		{[]string{"handshake_timeout"}, raw.HandshakeTimeout, &cfg.HandshakeTimeout},
		{[]string{"backoff", "initial_delay"}, raw.Backoff.InitialDelay, &cfg.Backoff.InitialDelay},
		{[]string{"backoff", "max_delay"}, raw.Backoff.MaxDelay, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return link.Config{}, fmt.Errorf("load config: %s: %w", strings.Join(d.key, "."), err)
		}
		if v < 0 {
			return link.Config{}, fmt.Errorf("load config: %s must not be negative", strings.Join(d.key, "."))
		}
		*d.dest = v
	}

	return cfg, nil
}
