// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records command/response transactions exchanged with the
// tuner and demodulator.
//
// Every layer that talks to the hardware reports what it did as an Event:
// the engine reports commands and polls, bus.Recorder reports raw transfers
// and the acquisition state machine reports state changes. Events go to a
// Logger. Available loggers:
//
//   - NoopLogger discards events.
//   - ZapLogger writes events to a *zap.Logger at debug level.
//   - FileLogger appends CBOR-encoded events to a capture file (.tcap).
//   - MultiLogger fans out to several loggers.
//   - Statistics counts transactions and outcomes.
//
// Capture files are read back with Reader and rendered with FormatEvent.
package capture
