// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frontend

import (
	"fmt"

	"github.com/Thermoquad/tunestat/pkg/engine"
)

// Opcodes shared by both chips.
const (
	cmdStartFirmware = 0x01
	cmdSetProperty   = 0x14
	cmdPowerUp       = 0xC0
)

// Response lengths shared by both chips.
const (
	respStartFirmware = 1
	respSetProperty   = 4
)

// Sub-commands of the demodulator power-up opcode.
const (
	subBridge = 0x0D
)

type property struct {
	id    uint16
	value uint16
}

func (f *Frontend) setProperty(target engine.Target, id, value uint16) error {
	cmd := []byte{cmdSetProperty, 0, byte(id), byte(id >> 8), byte(value), byte(value >> 8)}
	if _, err := f.eng.Execute(target, cmd, respSetProperty); err != nil {
		return fmt.Errorf("%s property 0x%04X=0x%04X: %w", target, id, value, err)
	}
	return nil
}

func (f *Frontend) setProperties(target engine.Target, props []property) error {
	for _, p := range props {
		if err := f.setProperty(target, p.id, p.value); err != nil {
			return err
		}
	}
	return nil
}

func (f *Frontend) startFirmware(target engine.Target) error {
	if _, err := f.eng.Execute(target, []byte{cmdStartFirmware, 1}, respStartFirmware); err != nil {
		return fmt.Errorf("%s start firmware: %w", target, err)
	}
	return nil
}

// bridge opens or closes the demodulator's pass-through to the tuner.
func (f *Frontend) bridge(on bool) error {
	var v byte
	if on {
		v = 1
	}
	if _, err := f.eng.Execute(engine.Demod, []byte{cmdPowerUp, subBridge, v}, 0); err != nil {
		return fmt.Errorf("tuner bridge %s: %w", onOff(on), err)
	}
	return nil
}

// withTunerBus runs fn with the tuner pass-through open and always closes it
// again. A close failure is returned only when fn succeeded.
func (f *Frontend) withTunerBus(fn func() error) error {
	if err := f.bridge(true); err != nil {
		return err
	}
	err := fn()
	if cerr := f.bridge(false); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
