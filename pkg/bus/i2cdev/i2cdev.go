// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package i2cdev carries bus transfers over a host I2C controller using
// periph.io.
package i2cdev

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/Thermoquad/tunestat/pkg/bus"
)

// Bus is a bus.Bus on top of a periph I2C bus. Every Send and Receive is a
// single I2C transaction.
type Bus struct {
	i2c    i2c.Bus
	closer io.Closer
}

// Open initializes the host drivers and opens the named I2C bus ("" selects
// the first one, "1" or "/dev/i2c-1" a specific one).
func Open(name string) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return &Bus{i2c: b, closer: b}, nil
}

// New wraps an already opened I2C bus. Close closes it when it implements
// io.Closer.
func New(b i2c.Bus) *Bus {
	c, _ := b.(io.Closer)
	return &Bus{i2c: b, closer: c}
}

// Send implements bus.Bus.
func (b *Bus) Send(addr uint16, data []byte) (int, error) {
	if len(data) > bus.MaxTransfer {
		return 0, bus.IOError("write", addr, fmt.Errorf("%d bytes exceeds transfer limit", len(data)))
	}
	d := i2c.Dev{Bus: b.i2c, Addr: addr}
	if err := d.Tx(data, nil); err != nil {
		return 0, bus.IOError("write", addr, err)
	}
	return len(data), nil
}

// Receive implements bus.Bus.
func (b *Bus) Receive(addr uint16, n int) ([]byte, error) {
	if n <= 0 || n > bus.MaxTransfer {
		return nil, bus.IOError("read", addr, fmt.Errorf("invalid length %d", n))
	}
	buf := make([]byte, n)
	d := i2c.Dev{Bus: b.i2c, Addr: addr}
	if err := d.Tx(nil, buf); err != nil {
		return nil, bus.IOError("read", addr, err)
	}
	return buf, nil
}

// Close releases the underlying bus.
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

func (b *Bus) String() string {
	return fmt.Sprintf("i2c(%s)", b.i2c)
}

var _ bus.Closer = (*Bus)(nil)
