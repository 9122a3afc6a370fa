// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import "github.com/Thermoquad/tunestat/pkg/capture"

// Commands returns every write received so far.
func (d *Device) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}

// CommandsTo returns the writes received by target ("tuner" or "demod").
func (d *Device) CommandsTo(target string) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out [][]byte
	for _, c := range d.commands {
		if c.Target == target {
			out = append(out, c.Data)
		}
	}
	return out
}

// ResetLog clears the command log and read counters.
func (d *Device) ResetLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = nil
	d.tuner.reads = 0
	d.demod.reads = 0
}

// Reads returns the number of reads served by target.
func (d *Device) Reads(target string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if target == capture.TargetTuner {
		return d.tuner.reads
	}
	return d.demod.reads
}

// BridgeOpen reports whether the tuner pass-through is open.
func (d *Device) BridgeOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bridgeOpen
}

// Property returns a property value last written to target.
func (d *Device) Property(target string, id uint16) (uint16, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	props := d.demodProps
	if target == capture.TargetTuner {
		props = d.tunerProps
	}
	v, ok := props[id]
	return v, ok
}

// PLP returns the last PLP selection.
func (d *Device) PLP() (id, mode uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plpID, d.plpMode
}

// Frequency returns the frequency the tuner was last tuned to.
func (d *Device) Frequency() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frequency
}

// FirmwareBytes returns the patch bytes received and the number of lines.
func (d *Device) FirmwareBytes() (bytes, lines int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmwareBytes, d.firmwareLines
}

// Awake reports whether the tuner and demodulator are powered.
func (d *Device) Awake() (tuner, demod bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunerAwake, d.demodAwake
}
