// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bus defines the byte-array transport that carries commands to the
// tuner and demodulator chips.
//
// A Bus moves exactly one write or one read per call. Adapters live in
// sub-packages (i2cdev for Linux I2C, sim for the in-process device model)
// and in package bridge (I2C pass-through over serial or WebSocket).
package bus

import (
	"errors"
	"fmt"
)

// MaxTransfer is the largest transfer the chips accept in either direction.
const MaxTransfer = 64

// ErrIO reports a bus transaction that did not complete exactly once.
var ErrIO = errors.New("bus transfer failed")

// Bus is an addressed half-duplex byte transport.
type Bus interface {
	// Send writes data to the device at addr in a single transaction and
	// returns the number of bytes accepted.
	Send(addr uint16, data []byte) (int, error)

	// Receive reads n bytes from the device at addr in a single transaction.
	Receive(addr uint16, n int) ([]byte, error)
}

// Closer is implemented by adapters that hold an OS resource.
type Closer interface {
	Bus
	Close() error
}

// IOError wraps an adapter failure so that errors.Is(err, ErrIO) holds
// alongside the adapter's own error chain.
func IOError(op string, addr uint16, err error) error {
	if err == nil {
		return fmt.Errorf("%s addr=0x%02X: %w", op, addr, ErrIO)
	}
	return fmt.Errorf("%s addr=0x%02X: %w: %w", op, addr, ErrIO, err)
}
