// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package frontend drives a tuner/demodulator pair as one DVB-T/T2/C
// frontend.
//
// A Frontend owns the device context of one physical pair: the selected
// delivery system, the cached PLP id and DVB-C symbol rate, and the
// initialization state. Methods are synchronous and not safe for
// concurrent use; callers serialize access.
//
// The tuner sits behind an I2C pass-through in the demodulator. Every tuner
// transaction is bracketed by enabling and disabling that pass-through.
package frontend

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/tunestat/pkg/bus"
	"github.com/Thermoquad/tunestat/pkg/capture"
	"github.com/Thermoquad/tunestat/pkg/config"
	"github.com/Thermoquad/tunestat/pkg/engine"
	"github.com/Thermoquad/tunestat/pkg/firmware"
	"github.com/Thermoquad/tunestat/pkg/telemetry"
)

// Errors returned by Frontend methods.
var (
	ErrInvalidArgument = engine.ErrInvalidArgument
	ErrIO              = engine.ErrIO
	ErrPolling         = engine.ErrPolling
	ErrTimeout         = engine.ErrTimeout
	ErrDevice          = engine.ErrDevice
	ErrUnsupported     = engine.ErrUnsupported
)

// DeliverySystem is re-exported from telemetry for callers of this package.
type DeliverySystem = telemetry.DeliverySystem

const (
	Undefined = telemetry.Undefined
	DVBT      = telemetry.DVBT
	DVBT2     = telemetry.DVBT2
	DVBC      = telemetry.DVBC
)

// NoStreamFilter requests the previously selected PLP.
const NoStreamFilter = math.MaxUint32

// TuneRequest describes the channel to acquire.
type TuneRequest struct {
	System     DeliverySystem
	Frequency  uint32 // Hz
	Bandwidth  uint32 // Hz, DVB-T/T2 only
	Modulation telemetry.Modulation
	SymbolRate uint32 // Bd, DVB-C only
	StreamID   uint32 // PLP id, or NoStreamFilter
}

// LockResult is the outcome of a tune attempt that completed without a
// bus or device error.
type LockResult struct {
	Locked bool

	// Aborted is set when the demodulator gave up on the channel before
	// the lock budget ran out.
	Aborted bool

	// Attempts is the number of lock status polls issued.
	Attempts int

	// Status is the last demodulator status read.
	Status telemetry.DemodStatus
}

// Info describes the frontend capabilities.
type Info struct {
	Name          string
	Systems       []DeliverySystem
	FrequencyMin  uint32 // Hz
	FrequencyMax  uint32 // Hz
	FrequencyStep uint32 // Hz
	SymbolRateMin uint32 // Bd
	SymbolRateMax uint32 // Bd
}

// Options configure a Frontend. Zero values select defaults.
type Options struct {
	Config   *config.Config
	Firmware *firmware.Registry
	Log      *zap.Logger
	Capture  capture.Logger

	// Sleep replaces time.Sleep for every wait the driver performs.
	Sleep func(time.Duration)

	// OnLock is called after a tune attempt reaches lock.
	OnLock func(TuneRequest, LockResult)

	// Observer sees every state of the tuner tune sub-protocol.
	Observer TuneObserver
}

// Frontend is the device context of one tuner/demodulator pair.
type Frontend struct {
	eng    *engine.Engine
	cfg    *config.Config
	timing config.Timing
	fw     *firmware.Registry
	log    *zap.Logger
	sink   capture.Logger

	onLock   func(TuneRequest, LockResult)
	observer TuneObserver

	initialized    bool
	current        DeliverySystem
	plpID          int
	stream         uint16
	dvbcSymbolRate uint32
	romID          uint8
}

// New creates a Frontend talking over b.
func New(b bus.Bus, opts Options) *Frontend {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	sink := opts.Capture
	if sink == nil {
		sink = capture.NoopLogger{}
	}
	fw := opts.Firmware
	if fw == nil {
		fw = firmware.NewRegistry(cfg.Firmware.LineSize)
	}
	timing := cfg.Timing.WithDefaults()

	eng := engine.New(b, engine.Config{
		Addresses: engine.Addresses{
			Tuner: cfg.Addresses.Tuner,
			Demod: cfg.Addresses.Demod,
		},
		PollAttempts: timing.PollAttempts,
		PollInterval: timing.PollInterval,
		Sleep:        opts.Sleep,
		Log:          log,
		Capture:      sink,
	})

	return &Frontend{
		eng:      eng,
		cfg:      cfg,
		timing:   timing,
		fw:       fw,
		log:      log,
		sink:     sink,
		onLock:   opts.OnLock,
		observer: opts.Observer,
		current:  Undefined,
		plpID:    cfg.PLP,
		stream:   uint16(cfg.Stream),
	}
}

// Engine exposes the underlying command engine.
func (f *Frontend) Engine() *engine.Engine {
	return f.eng
}

// Initialized reports whether the full power-up sequence has completed.
func (f *Frontend) Initialized() bool {
	return f.initialized
}

// Current returns the delivery system the pair is configured for.
func (f *Frontend) Current() DeliverySystem {
	return f.current
}

// PLP returns the cached PLP id (-1 for no filtering).
func (f *Frontend) PLP() int {
	return f.plpID
}

// SymbolRate returns the cached DVB-C symbol rate.
func (f *Frontend) SymbolRate() uint32 {
	return f.dvbcSymbolRate
}

// ROMID returns the demodulator ROM revision read during Init.
func (f *Frontend) ROMID() uint8 {
	return f.romID
}

// Info returns the frontend capabilities.
func (f *Frontend) Info() Info {
	return Info{
		Name:          "DVB-T/T2/C tuner-demodulator",
		Systems:       []DeliverySystem{DVBT, DVBT2, DVBC},
		FrequencyMin:  48000000,
		FrequencyMax:  870000000,
		FrequencyStep: 62500,
		SymbolRateMin: 870000,
		SymbolRateMax: 7500000,
	}
}

// state reports a state transition to the capture sink.
func (f *Frontend) state(target engine.Target, name string) {
	f.sink.Log(capture.Event{
		Timestamp: time.Now(),
		Kind:      capture.KindState,
		Target:    target.String(),
		State:     name,
	})
}
