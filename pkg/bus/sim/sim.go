// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim is a behavioural model of the tuner/demodulator pair that
// implements bus.Bus.
//
// The model follows the command protocol, not the RF physics: it answers
// with CTS after a configurable number of reads, raises the tuner's
// tune-complete and digital interrupts after a configurable number of polls,
// and reports demodulator lock when the tuned frequency carries a channel of
// a compatible standard. The tuner only answers while the demodulator's
// pass-through is open, which lets tests verify bridge pairing.
package sim

import (
	"errors"
	"sync"

	"github.com/Thermoquad/tunestat/pkg/bus"
	"github.com/Thermoquad/tunestat/pkg/capture"
	"github.com/Thermoquad/tunestat/pkg/telemetry"
)

var (
	errNoDevice     = errors.New("no device at address")
	errBridgeClosed = errors.New("tuner not reachable, pass-through closed")
)

// Channel is a signal present at one frequency.
type Channel struct {
	System telemetry.DeliverySystem

	// Raw codes as reported in the extended status responses.
	Constellation uint8
	FFT           uint8
	Guard         uint8
	Hierarchy     uint8
	CodeRateHP    uint8
	CodeRateLP    uint8
	FEC           uint8
	Inverted      bool

	RSSI int8  // dBm
	SNR  uint8 // dB * 40
}

// Config parameterizes the model.
type Config struct {
	TunerAddr uint16
	DemodAddr uint16
	ROMID     uint8

	// CTSDelay is the number of reads answered without CTS after every
	// command.
	CTSDelay int

	// TuneCompleteDelay and DigitalDelay count tuner reads after a tune
	// command before the tune-complete and digital interrupts are raised.
	TuneCompleteDelay int
	DigitalDelay      int

	// LockAfter is the number of status polls after a restart before a
	// compatible channel reports lock.
	LockAfter int

	// AbortAfter makes DVB-T/T2 status polls raise the RSQ interrupt once
	// this many polls found no channel. Zero never aborts.
	AbortAfter int

	Channels map[uint32]Channel

	BERExponent uint8
	BERMantissa uint8
	Uncorrected uint32

	// Fault, when it returns an error, makes the write of cmd fail.
	Fault func(target string, cmd []byte) error
	// DeviceError sets the error bit in the response to cmd.
	DeviceError func(target string, cmd []byte) bool
	// Stall keeps CTS clear forever after cmd.
	Stall func(target string, cmd []byte) bool
	// ReadFault, when it returns an error, makes the next read fail.
	ReadFault func(target string) error
}

// DefaultConfig returns a model with one DVB-T2 multiplex at 474 MHz and
// one DVB-C multiplex at 346 MHz.
func DefaultConfig() Config {
	return Config{
		TunerAddr:         0x60,
		DemodAddr:         0x64,
		ROMID:             3,
		CTSDelay:          1,
		TuneCompleteDelay: 2,
		DigitalDelay:      1,
		LockAfter:         3,
		AbortAfter:        0,
		Channels: map[uint32]Channel{
			474000000: {
				System:        telemetry.DVBT2,
				Constellation: 11, FFT: 15, Guard: 6, FEC: 13,
				RSSI: -45, SNR: 120,
			},
			506000000: {
				System:        telemetry.DVBT,
				Constellation: 9, FFT: 13, Guard: 1, Hierarchy: 1, CodeRateHP: 3, CodeRateLP: 1,
				RSSI: -52, SNR: 88,
			},
			346000000: {
				System:        telemetry.DVBC,
				Constellation: 11, Inverted: true,
				RSSI: -38, SNR: 148,
			},
		},
		BERExponent: 7,
		BERMantissa: 25,
		Uncorrected: 0,
	}
}

// Command is one write received by the model.
type Command struct {
	Target string
	Data   []byte
}

type chip struct {
	pending []byte
	wait    int
	stalled bool
	errBit  bool
	reads   int
}

// Device is the simulated pair. It is safe for concurrent use.
type Device struct {
	mu  sync.Mutex
	cfg Config

	commands []Command
	tuner    chip
	demod    chip

	bridgeOpen bool

	tunerProps map[uint16]uint16
	tunerXOut  bool
	tunerAwake bool
	tuning     bool
	tuneReads  int
	frequency  uint32

	demodProps     map[uint16]uint16
	demodAwake     bool
	romRead        bool
	fwStarted      bool
	firmwareBytes  int
	firmwareLines  int
	standard       uint8
	restarted      bool
	statusPolls    int
	plpID, plpMode uint8
}

// New creates a model. Zero addresses fall back to DefaultConfig's.
func New(cfg Config) *Device {
	def := DefaultConfig()
	if cfg.TunerAddr == 0 {
		cfg.TunerAddr = def.TunerAddr
	}
	if cfg.DemodAddr == 0 {
		cfg.DemodAddr = def.DemodAddr
	}
	return &Device{
		cfg:        cfg,
		tunerProps: make(map[uint16]uint16),
		demodProps: make(map[uint16]uint16),
		tunerAwake: true,
	}
}

func (d *Device) target(addr uint16) (string, *chip, error) {
	switch addr {
	case d.cfg.TunerAddr:
		if !d.bridgeOpen {
			return capture.TargetTuner, nil, errBridgeClosed
		}
		return capture.TargetTuner, &d.tuner, nil
	case d.cfg.DemodAddr:
		return capture.TargetDemod, &d.demod, nil
	default:
		return "", nil, errNoDevice
	}
}

// Send implements bus.Bus.
func (d *Device) Send(addr uint16, data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, c, err := d.target(addr)
	if err != nil {
		return 0, bus.IOError("write", addr, err)
	}
	if len(data) == 0 || len(data) > bus.MaxTransfer {
		return 0, bus.IOError("write", addr, errors.New("bad length"))
	}
	if d.cfg.Fault != nil {
		if err := d.cfg.Fault(name, data); err != nil {
			return 0, bus.IOError("write", addr, err)
		}
	}

	cmd := append([]byte(nil), data...)
	d.commands = append(d.commands, Command{Target: name, Data: cmd})

	c.pending = nil
	c.wait = d.cfg.CTSDelay
	c.stalled = d.cfg.Stall != nil && d.cfg.Stall(name, cmd)
	c.errBit = d.cfg.DeviceError != nil && d.cfg.DeviceError(name, cmd)

	if name == capture.TargetTuner {
		c.pending = d.tunerCommand(cmd)
	} else {
		c.pending = d.demodCommand(cmd)
	}
	return len(data), nil
}

// Receive implements bus.Bus.
func (d *Device) Receive(addr uint16, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name, c, err := d.target(addr)
	if err != nil {
		return nil, bus.IOError("read", addr, err)
	}
	if n <= 0 || n > bus.MaxTransfer {
		return nil, bus.IOError("read", addr, errors.New("bad length"))
	}
	if d.cfg.ReadFault != nil {
		if err := d.cfg.ReadFault(name); err != nil {
			return nil, bus.IOError("read", addr, err)
		}
	}
	c.reads++

	resp := make([]byte, n)
	if c.stalled || c.wait > 0 {
		if c.wait > 0 {
			c.wait--
		}
		return resp, nil
	}

	copy(resp, c.pending)
	status := byte(0x80)
	if c.errBit {
		status |= 0x40
	}
	if name == capture.TargetTuner {
		status |= d.tunerInterrupts()
	}
	resp[0] = status
	return resp, nil
}

// Close implements bus.Closer.
func (d *Device) Close() error {
	return nil
}

var _ bus.Closer = (*Device)(nil)
