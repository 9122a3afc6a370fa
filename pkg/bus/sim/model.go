// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import "github.com/Thermoquad/tunestat/pkg/telemetry"

// noiseFloor is the RSSI reported where no channel is present.
const noiseFloor = -100

func le16(lo, hi byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// tunerCommand applies a tuner command and returns its response body.
func (d *Device) tunerCommand(cmd []byte) []byte {
	switch cmd[0] {
	case 0xC0:
		if len(cmd) == 15 {
			d.tunerAwake = true
		} else if len(cmd) >= 3 {
			d.tunerXOut = cmd[2] != 0
		}
	case 0x14:
		if len(cmd) >= 6 {
			d.tunerProps[le16(cmd[2], cmd[3])] = le16(cmd[4], cmd[5])
		}
	case 0x16:
		d.tunerAwake = false
		d.tuning = false
	case 0x41:
		if len(cmd) >= 8 {
			d.frequency = uint32(cmd[4]) | uint32(cmd[5])<<8 | uint32(cmd[6])<<16 | uint32(cmd[7])<<24
			d.tuning = true
			d.tuneReads = 0
		}
	case 0x42:
		resp := make([]byte, 12)
		rssi := int8(noiseFloor)
		if ch, ok := d.cfg.Channels[d.frequency]; ok && d.tunerAwake {
			rssi = ch.RSSI
		}
		resp[3] = byte(rssi)
		return resp
	}
	return nil
}

// tunerInterrupts returns the interrupt bits of a tuner status byte read
// while CTS is set.
func (d *Device) tunerInterrupts() byte {
	if !d.tuning {
		return 0
	}
	d.tuneReads++

	var bits byte
	if d.tuneReads > d.cfg.TuneCompleteDelay {
		bits |= 0x01
	}
	if d.tuneReads > d.cfg.TuneCompleteDelay+d.cfg.DigitalDelay {
		bits |= 0x04
	}
	return bits
}

// demodCommand applies a demodulator command and returns its response body.
func (d *Device) demodCommand(cmd []byte) []byte {
	// Between the ROM id read of a cold start and firmware start, every
	// write is a patch line.
	if d.romRead && !d.fwStarted && !(len(cmd) == 2 && cmd[0] == 0x01) {
		d.firmwareBytes += len(cmd)
		d.firmwareLines++
		return nil
	}

	switch cmd[0] {
	case 0x01:
		d.fwStarted = true
	case 0x02:
		resp := make([]byte, 13)
		resp[12] = d.cfg.ROMID
		d.romRead = true
		return resp
	case 0xC0:
		if len(cmd) < 3 {
			return nil
		}
		switch cmd[1] {
		case 0x0D:
			d.bridgeOpen = cmd[2] != 0
		case 0x06:
			d.demodAwake = true
			if cmd[2] == 1 {
				d.romRead = false
				d.fwStarted = false
			}
		}
	case 0x13:
		d.demodAwake = false
		d.restarted = false
	case 0x14:
		if len(cmd) >= 6 {
			id, v := le16(cmd[2], cmd[3]), le16(cmd[4], cmd[5])
			d.demodProps[id] = v
			if id == 0x100A {
				if mod := uint8(v>>4) & 0x0F; telemetry.SystemFromStandard(mod).Supported() {
					d.standard = mod
				}
			}
		}
	case 0x52:
		if len(cmd) >= 3 {
			d.plpID, d.plpMode = cmd[1], cmd[2]
		}
	case 0x85:
		d.restarted = true
		d.statusPolls = 0
	case 0x87:
		return d.demodStatus()
	case 0xA0, 0x50, 0x90:
		return d.extendedStatus(cmd[0])
	case 0x82:
		return []byte{0, d.cfg.BERExponent, d.cfg.BERMantissa}
	case 0x84:
		return []byte{0, byte(d.cfg.Uncorrected), byte(d.cfg.Uncorrected >> 16)}
	}
	return nil
}

// channel returns the channel the demodulator can lock to.
func (d *Device) channel() (Channel, bool) {
	if !d.demodAwake || !d.tunerAwake || !d.tunerXOut {
		return Channel{}, false
	}
	ch, ok := d.cfg.Channels[d.frequency]
	if !ok {
		return Channel{}, false
	}
	want := telemetry.SystemFromStandard(d.standard)
	switch {
	case ch.System == want:
		return ch, true
	case want == telemetry.DVBT && ch.System == telemetry.DVBT2:
		// DVB-T auto-detection also finds T2 signals.
		return ch, true
	}
	return Channel{}, false
}

func (d *Device) locked() (Channel, bool) {
	ch, ok := d.channel()
	if !ok || !d.restarted || d.statusPolls < d.cfg.LockAfter {
		return Channel{}, false
	}
	return ch, true
}

func standardCode(s telemetry.DeliverySystem) uint8 {
	switch s {
	case telemetry.DVBT:
		return telemetry.StandardDVBT
	case telemetry.DVBT2:
		return telemetry.StandardDVBT2
	case telemetry.DVBC:
		return telemetry.StandardDVBC
	}
	return 0
}

func (d *Device) demodStatus() []byte {
	d.statusPolls++
	resp := make([]byte, 8)
	resp[3] = d.standard

	if ch, ok := d.locked(); ok {
		resp[1] = 0x02 | 0x04
		resp[2] = 0x02 | 0x04
		resp[3] = standardCode(ch.System)
		resp[4], resp[5] = 0x40, 0x9C // 40000 kbit/s
		resp[6], resp[7] = 0x20, 0x4E // 20000 kHz
		return resp
	}

	want := telemetry.SystemFromStandard(d.standard)
	if d.cfg.AbortAfter > 0 && want != telemetry.DVBC && d.statusPolls >= d.cfg.AbortAfter {
		if _, ok := d.channel(); !ok {
			resp[1] = 0x20
		}
	}
	return resp
}

func (d *Device) extendedStatus(op byte) []byte {
	resp := make([]byte, 14)
	ch, ok := d.locked()
	if !ok {
		return resp
	}

	resp[3] = ch.SNR
	resp[8] = ch.Constellation & 0x3F
	if ch.Inverted {
		resp[8] |= 0x40
	}
	switch op {
	case 0xA0:
		resp[9] = ch.CodeRateLP<<4 | ch.CodeRateHP&0x0F
		resp[10] = ch.Guard<<4 | ch.FFT&0x0F
		resp[11] = ch.Hierarchy & 0x07
	case 0x50:
		resp[9] = ch.Guard<<4 | ch.FFT&0x0F
		resp[12] = ch.FEC & 0x0F
	}
	return resp
}
