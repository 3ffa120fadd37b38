// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/osmolink/pkg/dji"
	"github.com/Thermoquad/osmolink/pkg/link"
)

func createFrame(t *testing.T, r *dji.Registry, cmd *dji.Command, cmdType dji.CmdType, s dji.Structure, seq uint16) []byte {
	t.Helper()
	b, err := r.CreateFrame(cmd.Family, cmd.ID, cmdType, s, seq)
	if err != nil {
		t.Fatalf("CreateFrame failed: %v", err)
	}
	return b
}

func TestDetectErrors(t *testing.T) {
	s := link.NewSession(link.TransportFunc(func(ctx context.Context, frame []byte) error {
		return nil
	}), link.DefaultConfig())

	valid := createFrame(t, dji.DefaultRegistry, dji.RecordControl, dji.CmdWaitResult,
		dji.NewRecordControl(dji.DeviceIDController, dji.RecordStart), 1)

	overcharged := createFrame(t, dji.DefaultRegistry, dji.CameraStatusPush, dji.CmdNoResponse,
		dji.Structure{"camera_mode": uint8(dji.CameraModePhoto), "camera_bat_percentage": uint8(150)}, 2)

	corrupt := append([]byte(nil), valid...)
	corrupt[len(corrupt)-1] ^= 0xFF

	beacon := &dji.Command{Name: "BEACON", Family: 0x40, ID: 0x01, Request: dji.NewDescriptor(dji.U8("value"))}
	unsupported := createFrame(t, dji.NewRegistry(beacon), beacon, dji.CmdNoResponse, dji.Structure{"value": uint8(1)}, 3)

	for _, b := range [][]byte{valid, overcharged, corrupt, unsupported} {
		s.Deliver(b)
	}
	s.Close()

	var out bytes.Buffer
	stats, err := detectErrors(context.Background(), s, "test", time.Second, true, &out)
	if err != nil {
		t.Fatalf("detectErrors failed: %v", err)
	}

	checks := []struct {
		name string
		got  uint64
		want uint64
	}{
		{"total", stats.TotalFrames, 4},
		{"valid", stats.ValidFrames, 1},
		{"anomalous", stats.AnomalousValues, 1},
		{"crc32", stats.CRC32Errors, 1},
		{"unsupported", stats.Unsupported, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}

	for _, want := range []string{"RECORD_CONTROL", "VALIDATION ERROR", "FRAME ERROR", "DECODE ERROR"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestDetectErrors_ErrorsOnly(t *testing.T) {
	s := link.NewSession(link.TransportFunc(func(ctx context.Context, frame []byte) error {
		return nil
	}), link.DefaultConfig())
	s.Deliver(createFrame(t, dji.DefaultRegistry, dji.RecordControl, dji.CmdWaitResult,
		dji.NewRecordControl(dji.DeviceIDController, dji.RecordStop), 1))
	s.Close()

	var out bytes.Buffer
	stats, err := detectErrors(context.Background(), s, "test", time.Second, false, &out)
	if err != nil {
		t.Fatalf("detectErrors failed: %v", err)
	}
	if stats.ValidFrames != 1 {
		t.Errorf("valid = %d, want 1", stats.ValidFrames)
	}
	if strings.Contains(out.String(), "RECORD_CONTROL") {
		t.Errorf("valid frame printed in errors-only mode:\n%s", out.String())
	}
}
