// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the device profile: bus addresses, clocking, TS
// output, firmware location and the timing budgets of every polling loop.
//
// Profiles are YAML files. Fields missing from a file keep the value from
// Default; durations use Go duration strings ("20ms", "5s").
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for profiles that fail validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is a complete device profile.
type Config struct {
	Addresses Addresses `yaml:"addresses"`

	// TunerClock is the reference clock selector sent in the tuner power-up
	// command (2 selects the 24 MHz crystal).
	TunerClock uint8 `yaml:"tuner_clock"`

	TS TS `yaml:"ts"`

	// PLP is the DVB-T2 PLP selected before the first explicit request;
	// -1 disables PLP filtering.
	PLP int `yaml:"plp"`

	// Stream is the DVB-T hierarchical stream decoded: 0 high priority,
	// 1 low priority.
	Stream uint8 `yaml:"stream"`

	Firmware Firmware `yaml:"firmware"`
	Bridge   Bridge   `yaml:"bridge"`
	Timing   Timing   `yaml:"timing"`
}

// Addresses are the 7-bit bus addresses of the chips.
type Addresses struct {
	Tuner uint16 `yaml:"tuner"`
	Demod uint16 `yaml:"demod"`
}

// TS configures the transport stream output of the demodulator.
type TS struct {
	// BusMode: 0 parallel, 1 serial, 2 gapped serial.
	BusMode uint8 `yaml:"bus_mode"`
	// ClockMode: 0 automatic, 1 manual.
	ClockMode uint8 `yaml:"clock_mode"`
}

// Firmware locates demodulator patch files.
type Firmware struct {
	Dir      string `yaml:"dir"`
	LineSize int    `yaml:"line_size"`
}

// Bridge configures the serial/WebSocket I2C bridge transport.
type Bridge struct {
	// Timeout bounds the wait for one reply frame.
	Timeout time.Duration `yaml:"timeout"`

	// ReadTimeout bounds one serial read; an idle read drops a partial
	// frame.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// Timing holds every attempt budget and interval of the driver.
type Timing struct {
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`

	TuneCompleteAttempts int           `yaml:"tune_complete_attempts"`
	TuneCompleteInterval time.Duration `yaml:"tune_complete_interval"`
	DigitalLockAttempts  int           `yaml:"digital_lock_attempts"`
	DigitalLockInterval  time.Duration `yaml:"digital_lock_interval"`

	LockPollInterval   time.Duration `yaml:"lock_poll_interval"`
	TerrestrialSettle  time.Duration `yaml:"terrestrial_settle"`
	TerrestrialMaxLock time.Duration `yaml:"terrestrial_max_lock"`
	CableSettle        time.Duration `yaml:"cable_settle"`
	CableMaxLock       time.Duration `yaml:"cable_max_lock"`
	T2ReselectSettle   time.Duration `yaml:"t2_reselect_settle"`
}

// DefaultTiming returns the timing budgets the chips are qualified with.
func DefaultTiming() Timing {
	return Timing{
		PollAttempts: 50,
		PollInterval: 20 * time.Millisecond,

		TuneCompleteAttempts: 4,
		TuneCompleteInterval: 50 * time.Millisecond,
		DigitalLockAttempts:  3,
		DigitalLockInterval:  10 * time.Millisecond,

		LockPollInterval:   10 * time.Millisecond,
		TerrestrialSettle:  100 * time.Millisecond,
		TerrestrialMaxLock: 5000 * time.Millisecond,
		CableSettle:        80 * time.Millisecond,
		CableMaxLock:       2000 * time.Millisecond,
		T2ReselectSettle:   340 * time.Millisecond,
	}
}

// WithDefaults returns t with every zero field taken from DefaultTiming.
func (t Timing) WithDefaults() Timing {
	d := DefaultTiming()
	fillInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	fillDur := func(v *time.Duration, def time.Duration) {
		if *v == 0 {
			*v = def
		}
	}
	fillInt(&t.PollAttempts, d.PollAttempts)
	fillDur(&t.PollInterval, d.PollInterval)
	fillInt(&t.TuneCompleteAttempts, d.TuneCompleteAttempts)
	fillDur(&t.TuneCompleteInterval, d.TuneCompleteInterval)
	fillInt(&t.DigitalLockAttempts, d.DigitalLockAttempts)
	fillDur(&t.DigitalLockInterval, d.DigitalLockInterval)
	fillDur(&t.LockPollInterval, d.LockPollInterval)
	fillDur(&t.TerrestrialSettle, d.TerrestrialSettle)
	fillDur(&t.TerrestrialMaxLock, d.TerrestrialMaxLock)
	fillDur(&t.CableSettle, d.CableSettle)
	fillDur(&t.CableMaxLock, d.CableMaxLock)
	fillDur(&t.T2ReselectSettle, d.T2ReselectSettle)
	return t
}

// Default returns the profile of the reference board.
func Default() *Config {
	return &Config{
		Addresses:  Addresses{Tuner: 0x60, Demod: 0x64},
		TunerClock: 2,
		TS:         TS{BusMode: 1, ClockMode: 0},
		PLP:        0,
		Firmware:   Firmware{LineSize: 8},
		Bridge: Bridge{
			Timeout:          500 * time.Millisecond,
			ReadTimeout:      100 * time.Millisecond,
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     2 * time.Second,
		},
		Timing: DefaultTiming(),
	}
}

// Parse decodes a YAML profile over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a profile file. An empty path returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes the profile as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks ranges of every field.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(validAddress(c.Addresses.Tuner), "tuner address 0x%02X", c.Addresses.Tuner)
	check(validAddress(c.Addresses.Demod), "demod address 0x%02X", c.Addresses.Demod)
	check(c.Addresses.Tuner != c.Addresses.Demod, "tuner and demod share address 0x%02X", c.Addresses.Tuner)
	check(c.TS.BusMode <= 2, "ts bus_mode %d", c.TS.BusMode)
	check(c.TS.ClockMode <= 1, "ts clock_mode %d", c.TS.ClockMode)
	check(c.PLP >= -1 && c.PLP <= 255, "plp %d", c.PLP)
	check(c.Stream <= 1, "stream %d", c.Stream)
	check(c.Firmware.LineSize >= 1 && c.Firmware.LineSize <= 64, "firmware line_size %d", c.Firmware.LineSize)
	check(c.Bridge.Timeout > 0, "bridge timeout %s", c.Bridge.Timeout)
	check(c.Bridge.ReadTimeout >= 0 && c.Bridge.HandshakeTimeout >= 0 && c.Bridge.WriteTimeout >= 0,
		"negative bridge timeout")

	t := c.Timing
	check(t.PollAttempts > 0, "poll_attempts %d", t.PollAttempts)
	check(t.TuneCompleteAttempts > 0, "tune_complete_attempts %d", t.TuneCompleteAttempts)
	check(t.DigitalLockAttempts > 0, "digital_lock_attempts %d", t.DigitalLockAttempts)
	check(t.PollInterval >= 0 && t.TuneCompleteInterval >= 0 && t.DigitalLockInterval >= 0 &&
		t.TerrestrialSettle >= 0 && t.CableSettle >= 0 && t.T2ReselectSettle >= 0,
		"negative interval")
	check(t.LockPollInterval > 0, "lock_poll_interval %s", t.LockPollInterval)
	check(t.TerrestrialMaxLock >= t.LockPollInterval, "terrestrial_max_lock %s", t.TerrestrialMaxLock)
	check(t.CableMaxLock >= t.LockPollInterval, "cable_max_lock %s", t.CableMaxLock)

	return errors.Join(errs...)
}

func validAddress(a uint16) bool {
	return a >= 0x08 && a <= 0x77
}

// TSMode is the demod TS mode property nibble derived from BusMode.
func (t TS) TSMode() uint16 {
	switch t.BusMode {
	case 1:
		return 3
	case 2:
		return 6
	default:
		return 0
	}
}

// TSClock is the demod TS clock property nibble derived from ClockMode.
func (t TS) TSClock() uint16 {
	if t.ClockMode == 1 {
		return 2
	}
	return 1
}
