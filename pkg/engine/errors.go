// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"errors"

	"github.com/Thermoquad/tunestat/pkg/bus"
)

// Error kinds returned by the engine and the layers above it. Callers match
// them with errors.Is; the returned errors carry operation context.
var (
	// ErrInvalidArgument is returned for command or response lengths above
	// MaxLen. No bus traffic happens.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO is returned when a command write fails or is short.
	ErrIO = bus.ErrIO

	// ErrPolling is returned when a CTS poll read fails.
	ErrPolling = errors.New("polling failed")

	// ErrTimeout is returned when CTS (or an awaited interrupt) never shows
	// up within the attempt budget.
	ErrTimeout = errors.New("timed out waiting for CTS")

	// ErrDevice is returned when the chip sets the error bit in its status
	// byte.
	ErrDevice = errors.New("device reported error")

	// ErrUnsupported is returned for delivery systems the pair cannot
	// demodulate.
	ErrUnsupported = errors.New("unsupported delivery system")
)
