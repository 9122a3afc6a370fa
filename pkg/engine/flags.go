// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import "strings"

// Status byte bits shared by both chips.
const (
	statusErr = 0x40
	statusCTS = 0x80
)

// Tuner status byte bits.
const (
	tunerTuneComplete = 0x01
	tunerAnalogInt    = 0x02
	tunerDigitalInt   = 0x04
)

// Demodulator status byte bits.
const (
	demodDDInt   = 0x01
	demodScanInt = 0x02
)

// TunerFlags is the decoded status byte of the last tuner response.
type TunerFlags struct {
	TuneComplete bool
	AnalogInt    bool
	DigitalInt   bool
	Error        bool
	CTS          bool
}

// DecodeTunerFlags decodes a tuner status byte.
func DecodeTunerFlags(b byte) TunerFlags {
	return TunerFlags{
		TuneComplete: b&tunerTuneComplete != 0,
		AnalogInt:    b&tunerAnalogInt != 0,
		DigitalInt:   b&tunerDigitalInt != 0,
		Error:        b&statusErr != 0,
		CTS:          b&statusCTS != 0,
	}
}

func (f TunerFlags) String() string {
	return flagString([]flagName{
		{f.CTS, "CTS"},
		{f.Error, "ERR"},
		{f.TuneComplete, "TUNINT"},
		{f.AnalogInt, "ATVINT"},
		{f.DigitalInt, "DTVINT"},
	})
}

// DemodFlags is the decoded status byte of the last demodulator response.
type DemodFlags struct {
	DDInt   bool
	ScanInt bool
	Error   bool
	CTS     bool
}

// DecodeDemodFlags decodes a demodulator status byte.
func DecodeDemodFlags(b byte) DemodFlags {
	return DemodFlags{
		DDInt:   b&demodDDInt != 0,
		ScanInt: b&demodScanInt != 0,
		Error:   b&statusErr != 0,
		CTS:     b&statusCTS != 0,
	}
}

func (f DemodFlags) String() string {
	return flagString([]flagName{
		{f.CTS, "CTS"},
		{f.Error, "ERR"},
		{f.DDInt, "DDINT"},
		{f.ScanInt, "SCANINT"},
	})
}

type flagName struct {
	set  bool
	name string
}

func flagString(flags []flagName) string {
	var names []string
	for _, f := range flags {
		if f.set {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "|")
}
