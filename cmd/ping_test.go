// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/osmolink/pkg/emulator"
)

func TestPingCamera_AgainstEmulator(t *testing.T) {
	useEmulator(t, emulator.New())
	ctx := context.Background()

	ls, err := connectLink(ctx)
	if err != nil {
		t.Fatalf("connectLink failed: %v", err)
	}
	defer ls.Close()

	var out bytes.Buffer
	ok, failed := pingCamera(ctx, ls.session, 2, time.Second, &out)
	if ok != 2 || failed != 0 {
		t.Fatalf("ok=%d failed=%d, want 2/0\n%s", ok, failed, out.String())
	}
	for _, want := range []string{
		"Ping 1/2: reply from OSMO-EMU",
		"Ping 2/2: reply from OSMO-EMU",
		"2 pings sent, 2 responses received, 0% loss",
		"avg rtt",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPingCamera_Timeout(t *testing.T) {
	useEmulator(t, emulator.New())
	ctx := context.Background()

	// without a handshake the camera ignores every command
	ls, err := openLink(ctx)
	if err != nil {
		t.Fatalf("openLink failed: %v", err)
	}
	defer ls.Close()

	var out bytes.Buffer
	ok, failed := pingCamera(ctx, ls.session, 1, 100*time.Millisecond, &out)
	if ok != 0 || failed != 1 {
		t.Fatalf("ok=%d failed=%d, want 0/1\n%s", ok, failed, out.String())
	}
	if !strings.Contains(out.String(), "Ping 1/1: FAILED") {
		t.Errorf("output missing failure line:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "1 pings sent, 0 responses received, 100% loss") {
		t.Errorf("output missing summary:\n%s", out.String())
	}
	if strings.Contains(out.String(), "avg rtt") {
		t.Errorf("average printed without replies:\n%s", out.String())
	}
}
