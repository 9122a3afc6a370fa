// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"
	"strings"
)

// Target names used in Event.Target.
const (
	TargetTuner = "tuner"
	TargetDemod = "demod"
)

// FormatEvent formats an event into a single human-readable line.
func FormatEvent(e Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %-5s", e.Timestamp.Format("15:04:05.000"), e.Kind)
	if e.Target != "" {
		fmt.Fprintf(&b, " %s", e.Target)
	}
	if e.Address != 0 {
		fmt.Fprintf(&b, " addr=%s", formatAddress(e.Address))
	}

	switch e.Kind {
	case KindCommand:
		fmt.Fprintf(&b, " %s (0x%02X)", FormatOpcode(e.Target, e.Opcode), e.Opcode)
	case KindState:
		fmt.Fprintf(&b, " -> %s", e.State)
	}

	if len(e.Tx) > 0 {
		fmt.Fprintf(&b, " tx=[%s]", formatHex(e.Tx))
	}
	if len(e.Rx) > 0 {
		fmt.Fprintf(&b, " rx=[%s]", formatHex(e.Rx))
	}
	if e.Polls > 0 {
		fmt.Fprintf(&b, " polls=%d", e.Polls)
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, " %s", e.Duration.Round(10_000))
	}
	if e.Failed() {
		fmt.Fprintf(&b, " ERROR: %s", e.Err)
	}
	return b.String()
}

// FormatOpcode returns the command name for an opcode sent to target.
func FormatOpcode(target string, opcode uint8) string {
	switch opcode {
	case 0x01:
		return "START_FIRMWARE"
	case 0x12:
		if target == TargetTuner {
			return "FEF_SETUP"
		}
		return "GPIO_CONFIG"
	case 0x14:
		return "SET_PROPERTY"
	case 0xC0:
		return "POWER_UP"
	}

	if target == TargetTuner {
		switch opcode {
		case 0x16:
			return "STANDBY"
		case 0x41:
			return "TUNE"
		case 0x42:
			return "TUNER_STATUS"
		}
		return "UNKNOWN"
	}

	switch opcode {
	case 0x02:
		return "ROM_ID"
	case 0x13:
		return "POWER_DOWN"
	case 0x50:
		return "DVBT2_STATUS"
	case 0x51:
		return "DVBT2_FEF"
	case 0x52:
		return "SELECT_PLP"
	case 0x82:
		return "BER"
	case 0x84:
		return "UNCORRECTED"
	case 0x85:
		return "RESTART"
	case 0x87:
		return "DEMOD_STATUS"
	case 0x88:
		return "MP_CONFIG"
	case 0x89:
		return "EXT_AGC"
	case 0x90:
		return "DVBC_STATUS"
	case 0xA0:
		return "DVBT_STATUS"
	}
	return "UNKNOWN"
}

func formatAddress(addr uint16) string {
	return fmt.Sprintf("0x%02X", addr)
}

func formatHex(data []byte) string {
	return fmt.Sprintf("% X", data)
}
