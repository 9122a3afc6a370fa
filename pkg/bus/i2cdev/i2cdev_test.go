// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package i2cdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/Thermoquad/tunestat/pkg/bus"
)

func TestSendReceive(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x64, W: []byte{0x87, 0x01}},
			{Addr: 0x64, R: []byte{0x80, 0x00, 0x06, 0x07, 0, 0, 0, 0}},
			{Addr: 0x60, W: []byte{0x42, 0x00}},
		},
	}
	b := New(pb)

	n, err := b.Send(0x64, []byte{0x87, 0x01})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	resp, err := b.Receive(0x64, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x00, 0x06, 0x07, 0, 0, 0, 0}, resp)

	_, err = b.Send(0x60, []byte{0x42, 0x00})
	require.NoError(t, err)

	require.NoError(t, b.Close())
}

func TestTransferErrors(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	b := New(pb)

	_, err := b.Send(0x64, []byte{0x85})
	assert.ErrorIs(t, err, bus.ErrIO, "unexpected transaction is reported as I/O failure")

	_, err = b.Send(0x64, make([]byte, bus.MaxTransfer+1))
	assert.ErrorIs(t, err, bus.ErrIO)

	_, err = b.Receive(0x64, 0)
	assert.ErrorIs(t, err, bus.ErrIO)

	_, err = b.Receive(0x64, bus.MaxTransfer+1)
	assert.ErrorIs(t, err, bus.ErrIO)
}
