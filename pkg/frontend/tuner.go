// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frontend

import (
	"fmt"

	"github.com/Thermoquad/tunestat/pkg/engine"
)

// Tuner opcodes
const (
	tunerCmdFEFSetup = 0x12
	tunerCmdStandby  = 0x16
	tunerCmdTune     = 0x41
	tunerCmdStatus   = 0x42
)

// Tuner response lengths
const (
	tunerRespPowerUp  = 1
	tunerRespXOut     = 1
	tunerRespStandby  = 1
	tunerRespFEFSetup = 6
	tunerRespTune     = 1
	tunerRespStatus   = 12
)

// Tuner properties touched outside the init table.
const (
	tunerPropDTVModBW  = 0x0703
	tunerPropFEFGate   = 0x0708
	tunerPropFEFHold   = 0x070E
	tunerPropFEFEnable = 0x0711
)

// FEF enable property values.
const (
	fefOn  = 3
	fefOff = 1
)

// DTV mode nibbles of the modulation/bandwidth property.
const (
	tunerModTerrestrial = 2
	tunerModCable       = 3
)

// tunerDefaults is written once after the tuner firmware starts.
var tunerDefaults = []property{
	// ATV
	{0x0610, 1000},
	{0x0611, 0},
	{0x0623, (0x80 << 8) | 158},
	{0x0624, 0},
	{0x0603, 8},
	{0x0607, (200 << 8) | 50},
	{0x0601, 1},
	{0x0613, (1 << 9) | (1 << 8)},
	{0x060C, 5000},
	{0x060D, (100 << 8) | 148},
	{0x0617, 0},
	{0x0612, 0},
	{0x0605, 0xBA},
	{0x0604, 1 << 9},
	{0x0616, 0},
	// common
	{0x0402, 8},
	{0x0401, 0},
	// DTV
	{0x0711, 0},
	{0x0708, 0},
	{0x0702, 1},
	{0x0705, (200 << 8) | 50},
	{0x070C, 1},
	{0x0701, 1},
	{0x070D, 0},
	{0x070E, 0},
	{0x0710, 0},
	{0x070A, 1 << 8},
	{0x0706, 5000},
	{0x0707, (27 << 8) | 148},
	{0x0703, (2 << 4) | 8},
	{0x0713, 0xFFFF},
	{0x070F, 0},
	{0x0709, 0},
	{0x0704, 0xB0},
	{0x0712, 16},
	// tuner
	{0x0504, 0x8000},
	{0x0501, 1},
	{0x0505, (1 << 10) | (1 << 9) | (1 << 8)},
	{0x0506, 1},
	{0x0507, 127},
}

// tunerWakeUp checks that the tuner answers with CTS.
func (f *Frontend) tunerWakeUp() error {
	if _, err := f.eng.Poll(engine.Tuner, 1); err != nil {
		return fmt.Errorf("tuner not ready: %w", err)
	}
	return nil
}

func (f *Frontend) tunerPowerUp() error {
	cmd := []byte{cmdPowerUp, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, f.cfg.TunerClock, 0, 0, 1}
	if _, err := f.eng.Execute(engine.Tuner, cmd, tunerRespPowerUp); err != nil {
		return fmt.Errorf("tuner power up: %w", err)
	}
	return nil
}

// tunerXOut switches the tuner's clock output that feeds the demodulator.
func (f *Frontend) tunerXOut(on bool) error {
	var v byte
	if on {
		v = 3 << 2
	}
	if _, err := f.eng.Execute(engine.Tuner, []byte{cmdPowerUp, 0, v}, tunerRespXOut); err != nil {
		return fmt.Errorf("tuner xout %s: %w", onOff(on), err)
	}
	return nil
}

func (f *Frontend) tunerStandby() error {
	if _, err := f.eng.Execute(engine.Tuner, []byte{tunerCmdStandby, 0}, tunerRespStandby); err != nil {
		return fmt.Errorf("tuner standby: %w", err)
	}
	return nil
}

func (f *Frontend) tunerFEF(on bool) error {
	v := uint16(fefOff)
	if on {
		v = fefOn
	}
	return f.setProperty(engine.Tuner, tunerPropFEFEnable, v)
}

// tunerFEFSetup configures FEF tracking, enabling it for DVB-T2.
func (f *Frontend) tunerFEFSetup(on bool) error {
	cmd := []byte{tunerCmdFEFSetup, 1, 1, 1, 1, 1}
	if _, err := f.eng.Execute(engine.Tuner, cmd, tunerRespFEFSetup); err != nil {
		return fmt.Errorf("tuner FEF setup: %w", err)
	}
	if err := f.setProperty(engine.Tuner, tunerPropFEFHold, 0); err != nil {
		return err
	}
	if err := f.setProperty(engine.Tuner, tunerPropFEFGate, 0); err != nil {
		return err
	}
	return f.tunerFEF(on)
}

// tunerStatus reads the 12-byte tuner status. The pass-through must be open.
func (f *Frontend) tunerStatus(intack bool) ([]byte, error) {
	var ack byte
	if intack {
		ack = 1
	}
	resp, err := f.eng.Execute(engine.Tuner, []byte{tunerCmdStatus, ack}, tunerRespStatus)
	if err != nil {
		return resp, fmt.Errorf("tuner status: %w", err)
	}
	return resp, nil
}

func (f *Frontend) tunerInit() error {
	if err := f.tunerWakeUp(); err != nil {
		return err
	}
	if err := f.tunerPowerUp(); err != nil {
		return err
	}
	if err := f.startFirmware(engine.Tuner); err != nil {
		return err
	}
	return f.setProperties(engine.Tuner, tunerDefaults)
}

// tunerBandwidth clamps a requested bandwidth in MHz to what the tuner
// filters support.
func tunerBandwidth(mhz uint8) uint8 {
	switch {
	case mhz <= 6:
		return 6
	case mhz > 8:
		return 8
	default:
		return mhz
	}
}

// tunerSetFreq programs the tuner for system at freq Hz. The pass-through
// must be open.
func (f *Frontend) tunerSetFreq(freq uint32, system DeliverySystem, bwMHz uint8) error {
	if err := f.tunerFEF(false); err != nil {
		return err
	}

	mod, bw := uint16(tunerModTerrestrial), uint16(tunerBandwidth(bwMHz))
	if system == DVBC {
		mod, bw = tunerModCable, 8
	}
	if err := f.setProperty(engine.Tuner, tunerPropDTVModBW, mod<<4|bw); err != nil {
		return err
	}

	if err := f.tuneFreq(freq); err != nil {
		return err
	}

	if system == DVBT2 {
		return f.tunerFEF(true)
	}
	return nil
}
