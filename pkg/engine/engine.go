// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package engine implements the half-duplex command/response protocol shared
// by the tuner and the demodulator.
//
// A transaction is one command write followed, when a response is expected,
// by repeated reads until the chip raises CTS (bit 7 of the first response
// byte). The first response byte is the chip's status byte; it is decoded
// into the target's reply flags on every CTS read.
package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/tunestat/pkg/bus"
	"github.com/Thermoquad/tunestat/pkg/capture"
)

// MaxLen is the largest command or response the chips accept.
const MaxLen = bus.MaxTransfer

// Polling defaults.
const (
	DefaultPollAttempts = 50
	DefaultPollInterval = 20 * time.Millisecond
)

// Target selects the chip a transaction goes to.
type Target uint8

const (
	Tuner Target = iota
	Demod
)

func (t Target) String() string {
	if t == Tuner {
		return capture.TargetTuner
	}
	return capture.TargetDemod
}

// Addresses are the bus addresses of the two chips.
type Addresses struct {
	Tuner uint16
	Demod uint16
}

// Config holds engine construction parameters. Zero values select defaults.
type Config struct {
	Addresses    Addresses
	PollAttempts int
	PollInterval time.Duration

	// Sleep replaces time.Sleep; tests inject a recorder.
	Sleep func(time.Duration)

	Log     *zap.Logger
	Capture capture.Logger
}

// Engine runs transactions against one tuner/demodulator pair. It is not
// safe for concurrent use.
type Engine struct {
	bus   bus.Bus
	addrs Addresses

	pollAttempts int
	pollInterval time.Duration
	sleep        func(time.Duration)

	log  *zap.Logger
	sink capture.Logger

	tuner TunerFlags
	demod DemodFlags
}

// New creates an engine on top of b.
func New(b bus.Bus, cfg Config) *Engine {
	e := &Engine{
		bus:          b,
		addrs:        cfg.Addresses,
		pollAttempts: cfg.PollAttempts,
		pollInterval: cfg.PollInterval,
		sleep:        cfg.Sleep,
		log:          cfg.Log,
		sink:         cfg.Capture,
	}
	if e.pollAttempts <= 0 {
		e.pollAttempts = DefaultPollAttempts
	}
	if e.pollInterval <= 0 {
		e.pollInterval = DefaultPollInterval
	}
	if e.sleep == nil {
		e.sleep = time.Sleep
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.sink == nil {
		e.sink = capture.NoopLogger{}
	}
	return e
}

// Addresses returns the chip addresses.
func (e *Engine) Addresses() Addresses {
	return e.addrs
}

// TunerFlags returns the flags decoded from the last tuner status byte.
func (e *Engine) TunerFlags() TunerFlags {
	return e.tuner
}

// DemodFlags returns the flags decoded from the last demodulator status byte.
func (e *Engine) DemodFlags() DemodFlags {
	return e.demod
}

// Sleep waits for d using the configured sleep function.
func (e *Engine) Sleep(d time.Duration) {
	if d > 0 {
		e.sleep(d)
	}
}

func (e *Engine) addr(t Target) uint16 {
	if t == Tuner {
		return e.addrs.Tuner
	}
	return e.addrs.Demod
}

// Execute sends cmd to target and, when respLen > 0, polls for a respLen
// byte response. The response is returned even with ErrDevice so callers
// can inspect it.
func (e *Engine) Execute(target Target, cmd []byte, respLen int) ([]byte, error) {
	start := time.Now()
	resp, polls, err := e.execute(target, cmd, respLen)

	ev := capture.Event{
		Timestamp: start,
		Kind:      capture.KindCommand,
		Target:    target.String(),
		Tx:        append([]byte(nil), cmd...),
		Rx:        resp,
		Polls:     polls,
		Duration:  time.Since(start),
		Err:       capture.ErrString(err),
	}
	if len(cmd) > 0 {
		ev.Opcode = cmd[0]
	}
	e.sink.Log(ev)

	return resp, err
}

func (e *Engine) execute(target Target, cmd []byte, respLen int) ([]byte, int, error) {
	if len(cmd) == 0 || len(cmd) > MaxLen || respLen < 0 || respLen > MaxLen {
		return nil, 0, fmt.Errorf("%s command of %d bytes, response of %d bytes: %w",
			target, len(cmd), respLen, ErrInvalidArgument)
	}

	addr := e.addr(target)
	n, err := e.bus.Send(addr, cmd)
	if err != nil {
		if !errors.Is(err, ErrIO) {
			err = bus.IOError("write", addr, err)
		}
		return nil, 0, fmt.Errorf("%s command 0x%02X: %w", target, cmd[0], err)
	}
	if n != len(cmd) {
		return nil, 0, fmt.Errorf("%s command 0x%02X: short write %d/%d: %w",
			target, cmd[0], n, len(cmd), ErrIO)
	}

	if respLen == 0 {
		return nil, 0, nil
	}
	return e.poll(target, respLen)
}

// Poll reads n bytes from target until CTS is set, without sending a
// command first.
func (e *Engine) Poll(target Target, n int) ([]byte, error) {
	start := time.Now()
	resp, polls, err := e.poll(target, n)

	e.sink.Log(capture.Event{
		Timestamp: start,
		Kind:      capture.KindPoll,
		Target:    target.String(),
		Rx:        resp,
		Polls:     polls,
		Duration:  time.Since(start),
		Err:       capture.ErrString(err),
	})
	return resp, err
}

func (e *Engine) poll(target Target, n int) ([]byte, int, error) {
	if n <= 0 || n > MaxLen {
		return nil, 0, fmt.Errorf("%s poll of %d bytes: %w", target, n, ErrInvalidArgument)
	}

	addr := e.addr(target)
	for attempt := 1; attempt <= e.pollAttempts; attempt++ {
		resp, err := e.bus.Receive(addr, n)
		if err != nil {
			return nil, attempt, fmt.Errorf("%s: %w: %v", target, ErrPolling, err)
		}
		if len(resp) != n {
			return nil, attempt, fmt.Errorf("%s: %w: short read %d/%d", target, ErrPolling, len(resp), n)
		}

		if resp[0]&statusCTS != 0 {
			if e.decodeStatus(target, resp[0]) {
				return resp, attempt, fmt.Errorf("%s status 0x%02X: %w", target, resp[0], ErrDevice)
			}
			return resp, attempt, nil
		}

		if attempt < e.pollAttempts {
			e.sleep(e.pollInterval)
		}
	}

	e.log.Debug("CTS poll budget exhausted",
		zap.Stringer("target", target),
		zap.Int("attempts", e.pollAttempts))
	return nil, e.pollAttempts, fmt.Errorf("%s after %d reads: %w", target, e.pollAttempts, ErrTimeout)
}

// decodeStatus updates the target's flags and reports the error bit.
func (e *Engine) decodeStatus(target Target, status byte) bool {
	if target == Tuner {
		e.tuner = DecodeTunerFlags(status)
		return e.tuner.Error
	}
	e.demod = DecodeDemodFlags(status)
	return e.demod.Error
}
