// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Osmolink - DJI Osmo camera control over a BLE bridge
//
// A CLI tool for driving and monitoring DJI cameras through their BLE
// control protocol.

package main

import (
	"os"

	"github.com/Thermoquad/osmolink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
