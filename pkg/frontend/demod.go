// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frontend

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Thermoquad/tunestat/pkg/engine"
	"github.com/Thermoquad/tunestat/pkg/firmware"
	"github.com/Thermoquad/tunestat/pkg/telemetry"
)

// Demodulator opcodes
const (
	demodCmdROMID       = 0x02
	demodCmdGPIO        = 0x12
	demodCmdPowerDown   = 0x13
	demodCmdT2Status    = 0x50
	demodCmdT2FEF       = 0x51
	demodCmdSelectPLP   = 0x52
	demodCmdBER         = 0x82
	demodCmdUncorrected = 0x84
	demodCmdRestart     = 0x85
	demodCmdStatus      = 0x87
	demodCmdMP          = 0x88
	demodCmdExtAGC      = 0x89
	demodCmdCStatus     = 0x90
	demodCmdTStatus     = 0xA0
)

// Demodulator response lengths
const (
	demodRespPowerUp   = 1
	demodRespROMID     = 13
	demodRespGPIO      = 3
	demodRespT2FEF     = 12
	demodRespSelectPLP = 1
	demodRespRestart   = 1
	demodRespMP        = 5
	demodRespExtAGC    = 3
	demodRespFWLine    = 1
)

// Sub-commands of the demodulator power-up opcode.
const (
	subPowerUp    = 0x06
	subClockStart = 0x12
)

// Demodulator properties touched outside the init table.
const (
	demodPropTSMode     = 0x1001
	demodPropDDMode     = 0x100A
	demodPropCQAM       = 0x1101
	demodPropCSymRate   = 0x1102
	demodPropTHierarchy = 0x1201
)

// Power-up reset codes
const (
	resetCold = 1
	resetWarm = 8
)

// ddModeAuto is the auto-detect bit of the DD mode property.
const ddModeAuto = 1 << 9

func ddMode(auto bool, spectrum, mod, bw uint16) uint16 {
	v := spectrum<<8 | mod<<4 | bw
	if auto {
		v |= ddModeAuto
	}
	return v
}

// agc configures one external AGC loop.
type agc struct {
	mode, inv, kloop, floor uint8
}

var (
	defaultAGC1 = agc{mode: 1, inv: 0, kloop: 6, floor: 0}
	defaultAGC2 = agc{mode: 2, inv: 0, kloop: 18, floor: 0}
)

// demodDDDefaults precede the TS mode property.
var demodDDDefaults = []property{
	{0x0401, 0},
	{0x1003, (1 << 4) | 7},
	{0x1002, (1 << 4) | 5},
	{0x100C, (1 << 4) | 2},
	{0x1006, 0x24},
	{0x100B, 5000},
	{0x1007, 0x2400},
	{demodPropDDMode, (2 << 4) | 8},
	{0x1004, (1 << 4) | 5},
	{0x1005, (10 << 4) | 1},
	{0x100D, 720},
}

// demodStandardDefaults follow the TS mode property.
var demodStandardDefaults = []property{
	{0x1009, (1 << 12) | (3 << 10) | (15 << 6) | (3 << 4) | 15},
	{0x1008, (1 << 13) | (1 << 12) | (3 << 10) | (15 << 6) | (3 << 4) | 15},
	// DVB-C
	{0x1104, 112},
	{0x1103, 100},
	{demodPropCQAM, 0},
	{demodPropCSymRate, 6900},
	// DVB-T
	{0x1203, 130},
	{0x1202, 550},
	{demodPropTHierarchy, 0},
	// DVB-T2
	{0x1303, 130},
	{0x1301, 550},
	{0x1302, (1 << 12) | (1 << 8) | 1},
	// scan
	{0x0304, 0},
	{0x0303, 0},
	{0x0308, 0},
	{0x0307, (1 << 9) | 1},
	{0x0306, 0},
	{0x0305, 0},
	{0x0301, 3 << 2},
}

// demodWakeUp starts the demodulator clock and powers it up.
func (f *Frontend) demodWakeUp(reset, fn uint8) error {
	clock := []byte{cmdPowerUp, subClockStart, 0, 12, 0, 0x0D, 22, 0, 0, 0, 0, 0, 0}
	if _, err := f.eng.Execute(engine.Demod, clock, 0); err != nil {
		return fmt.Errorf("demod clock start: %w", err)
	}

	power := []byte{cmdPowerUp, subPowerUp, reset, 15, 0, 1 << 5, (2 << 4) | (fn & 0x0F), 1}
	if _, err := f.eng.Execute(engine.Demod, power, demodRespPowerUp); err != nil {
		return fmt.Errorf("demod power up: %w", err)
	}
	return nil
}

func (f *Frontend) demodPowerDown() error {
	if _, err := f.eng.Execute(engine.Demod, []byte{demodCmdPowerDown}, 0); err != nil {
		return fmt.Errorf("demod power down: %w", err)
	}
	return nil
}

func (f *Frontend) demodRestart() error {
	if _, err := f.eng.Execute(engine.Demod, []byte{demodCmdRestart}, demodRespRestart); err != nil {
		return fmt.Errorf("demod restart: %w", err)
	}
	return nil
}

// ReadROMID reads the demodulator ROM revision.
func (f *Frontend) ReadROMID() (uint8, error) {
	resp, err := f.eng.Execute(engine.Demod, []byte{demodCmdROMID}, demodRespROMID)
	if err != nil {
		return 0, fmt.Errorf("demod rom id: %w", err)
	}
	return resp[demodRespROMID-1], nil
}

// DemodStatus reads and decodes the demodulator status. intack clears the
// latched interrupt bits.
func (f *Frontend) DemodStatus(intack bool) (telemetry.DemodStatus, error) {
	resp, err := f.demodStatusRaw(intack)
	if err != nil {
		return telemetry.DemodStatus{}, err
	}
	return telemetry.DecodeDemodStatus(resp), nil
}

func (f *Frontend) demodStatusRaw(intack bool) ([]byte, error) {
	var ack byte
	if intack {
		ack = 1
	}
	resp, err := f.eng.Execute(engine.Demod, []byte{demodCmdStatus, ack}, telemetry.DemodStatusLen)
	if err != nil {
		return resp, fmt.Errorf("demod status: %w", err)
	}
	return resp, nil
}

// extendedStatus reads the standard-specific status of system.
func (f *Frontend) extendedStatus(system DeliverySystem) ([]byte, error) {
	var (
		op   byte
		size int
	)
	switch system {
	case DVBT:
		op, size = demodCmdTStatus, telemetry.DVBTStatusLen
	case DVBT2:
		op, size = demodCmdT2Status, telemetry.DVBT2StatusLen
	case DVBC:
		op, size = demodCmdCStatus, telemetry.DVBCStatusLen
	default:
		return nil, fmt.Errorf("%s status: %w", system, ErrUnsupported)
	}
	resp, err := f.eng.Execute(engine.Demod, []byte{op, 0}, size)
	if err != nil {
		return resp, fmt.Errorf("%s status: %w", system, err)
	}
	return resp, nil
}

func (f *Frontend) counter(op byte, name string) ([]byte, error) {
	resp, err := f.eng.Execute(engine.Demod, []byte{op, 0}, telemetry.CounterLen)
	if err != nil {
		return resp, fmt.Errorf("demod %s: %w", name, err)
	}
	return resp, nil
}

func (f *Frontend) setMP(a, b, c, d uint8) error {
	if _, err := f.eng.Execute(engine.Demod, []byte{demodCmdMP, a, b, c, d}, demodRespMP); err != nil {
		return fmt.Errorf("demod MP config: %w", err)
	}
	return nil
}

func (f *Frontend) setExtAGC(agc1, agc2 agc) error {
	modes := agc2.inv<<7 | agc2.mode<<4 | agc1.inv<<3 | agc1.mode
	cmd := []byte{demodCmdExtAGC, modes, agc1.kloop, agc2.kloop, agc1.floor, agc2.floor}
	if _, err := f.eng.Execute(engine.Demod, cmd, demodRespExtAGC); err != nil {
		return fmt.Errorf("demod ext AGC: %w", err)
	}
	return nil
}

func (f *Frontend) setT2FEF(flag, inv uint8) error {
	if _, err := f.eng.Execute(engine.Demod, []byte{demodCmdT2FEF, inv<<3 | flag}, demodRespT2FEF); err != nil {
		return fmt.Errorf("demod T2 FEF: %w", err)
	}
	return nil
}

func (f *Frontend) setGPIO(mode0, read0, mode1, read1 uint8) error {
	cmd := []byte{demodCmdGPIO, read0<<7 | mode0, read1<<7 | mode1}
	if _, err := f.eng.Execute(engine.Demod, cmd, demodRespGPIO); err != nil {
		return fmt.Errorf("demod GPIO: %w", err)
	}
	return nil
}

func (f *Frontend) selectPLP(id, mode uint8) error {
	if _, err := f.eng.Execute(engine.Demod, []byte{demodCmdSelectPLP, id, mode}, demodRespSelectPLP); err != nil {
		return fmt.Errorf("select PLP %d: %w", id, err)
	}
	return nil
}

// selectCachedPLP selects plp, or disables PLP filtering for -1.
func (f *Frontend) selectCachedPLP(plp int) error {
	if plp < 0 {
		return f.selectPLP(0, 0)
	}
	return f.selectPLP(uint8(plp), 1)
}

// downloadFirmware sends a patch line by line, stopping at the first
// failed line.
func (f *Frontend) downloadFirmware(p firmware.Patch) error {
	lines, err := firmware.Lines(p)
	if err != nil {
		return fmt.Errorf("rom %d patch: %w", p.ROMID, err)
	}
	for i, line := range lines {
		if _, err := f.eng.Execute(engine.Demod, line, demodRespFWLine); err != nil {
			return fmt.Errorf("rom %d patch line %d/%d: %w", p.ROMID, i+1, len(lines), err)
		}
	}
	f.log.Info("firmware patch downloaded",
		zap.Uint8("rom", p.ROMID),
		zap.Int("bytes", len(p.Data)),
		zap.Int("lines", len(lines)))
	return nil
}

func (f *Frontend) demodInit() error {
	if err := f.demodWakeUp(resetCold, 0); err != nil {
		return err
	}

	id, err := f.ReadROMID()
	if err != nil {
		return err
	}
	f.romID = id

	if p, ok := f.fw.Lookup(id); ok {
		if err := f.downloadFirmware(p); err != nil {
			return err
		}
	} else {
		f.log.Info("no firmware patch for ROM, skipping download", zap.Uint8("rom", id))
	}

	if err := f.startFirmware(engine.Demod); err != nil {
		return err
	}

	if err := f.setMP(1, 2, 1, 1); err != nil {
		return err
	}
	if err := f.setExtAGC(defaultAGC1, defaultAGC2); err != nil {
		return err
	}
	if err := f.setT2FEF(3, 0); err != nil {
		return err
	}
	if err := f.setGPIO(8, 0, 4, 0); err != nil {
		return err
	}

	if err := f.setProperties(engine.Demod, demodDDDefaults); err != nil {
		return err
	}
	ts := f.cfg.TS.TSClock()<<4 | f.cfg.TS.TSMode()
	if err := f.setProperty(engine.Demod, demodPropTSMode, ts); err != nil {
		return err
	}
	return f.setProperties(engine.Demod, demodStandardDefaults)
}
