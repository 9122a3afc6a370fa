// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint16(0x60), cfg.Addresses.Tuner)
	assert.Equal(t, uint16(0x64), cfg.Addresses.Demod)
	assert.Equal(t, 50, cfg.Timing.PollAttempts)
	assert.Equal(t, 20*time.Millisecond, cfg.Timing.PollInterval)
	assert.Equal(t, 4, cfg.Timing.TuneCompleteAttempts)
	assert.Equal(t, 3, cfg.Timing.DigitalLockAttempts)
	assert.Equal(t, 5*time.Second, cfg.Timing.TerrestrialMaxLock)
	assert.Equal(t, 2*time.Second, cfg.Timing.CableMaxLock)
}

func TestParseMergesOverDefaults(t *testing.T) {
	data := []byte(`
addresses:
  demod: 0x67
ts:
  bus_mode: 2
  clock_mode: 1
plp: -1
firmware:
  dir: /lib/firmware/tunestat
timing:
  poll_interval: 5ms
  cable_max_lock: 3s
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x60), cfg.Addresses.Tuner, "untouched field keeps default")
	assert.Equal(t, uint16(0x67), cfg.Addresses.Demod)
	assert.Equal(t, -1, cfg.PLP)
	assert.Equal(t, "/lib/firmware/tunestat", cfg.Firmware.Dir)
	assert.Equal(t, 8, cfg.Firmware.LineSize)
	assert.Equal(t, 5*time.Millisecond, cfg.Timing.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.Timing.CableMaxLock)
	assert.Equal(t, 50, cfg.Timing.PollAttempts)
	assert.Equal(t, uint16(6), cfg.TS.TSMode())
	assert.Equal(t, uint16(2), cfg.TS.TSClock())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"plp out of range", "plp: 300"},
		{"plp below -1", "plp: -2"},
		{"stream out of range", "stream: 2"},
		{"shared address", "addresses: {tuner: 0x64, demod: 0x64}"},
		{"reserved address", "addresses: {tuner: 0x01}"},
		{"line size too big", "firmware: {line_size: 65}"},
		{"zero poll attempts", "timing: {poll_attempts: 0}"},
		{"bad ts mode", "ts: {bus_mode: 3}"},
		{"lock budget below interval", "timing: {cable_max_lock: 1ms}"},
		{"not yaml", "addresses: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}

	_, err := Parse([]byte("plp: 300"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTimingWithDefaults(t *testing.T) {
	assert.Equal(t, DefaultTiming(), Timing{}.WithDefaults())

	partial := DefaultTiming()
	partial.LockPollInterval = 0
	partial.TuneCompleteAttempts = 0
	partial.CableMaxLock = 3 * time.Second
	got := partial.WithDefaults()
	assert.Equal(t, 10*time.Millisecond, got.LockPollInterval)
	assert.Equal(t, 4, got.TuneCompleteAttempts)
	assert.Equal(t, 3*time.Second, got.CableMaxLock, "set fields are kept")
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tuner_clock: 0\n"), 0644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), cfg.TunerClock)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.PLP = 3
	cfg.Timing.T2ReselectSettle = 400 * time.Millisecond

	data, err := cfg.Marshal()
	require.NoError(t, err)

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestTSModes(t *testing.T) {
	tests := []struct {
		ts    TS
		mode  uint16
		clock uint16
	}{
		{TS{BusMode: 0, ClockMode: 0}, 0, 1},
		{TS{BusMode: 1, ClockMode: 0}, 3, 1},
		{TS{BusMode: 2, ClockMode: 1}, 6, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.mode, tt.ts.TSMode())
		assert.Equal(t, tt.clock, tt.ts.TSClock())
	}
}
