// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"strings"
)

// Params are the tuning parameters re-derived from an extended status
// response. Fields a standard does not report stay at their Auto value.
type Params struct {
	System           DeliverySystem
	Modulation       Modulation
	TransmissionMode TransmissionMode
	GuardInterval    GuardInterval
	Hierarchy        Hierarchy
	CodeRateHP       CodeRate
	CodeRateLP       CodeRate
	FEC              CodeRate
	Inversion        Inversion
	SymbolRate       uint32
}

func inversion(b uint8) Inversion {
	if bit(b, 6) {
		return InversionOn
	}
	return InversionOff
}

// DecodeDVBT decodes a DVB-T extended status response.
func DecodeDVBT(resp []byte) Params {
	b8, b9, b10 := at(resp, 8), at(resp, 9), at(resp, 10)
	return Params{
		System:           DVBT,
		Modulation:       DecodeConstellation(b8 & 0x3F),
		TransmissionMode: DecodeFFT(b10 & 0x0F),
		GuardInterval:    DecodeGuardInterval((b10 >> 4) & 0x07),
		Hierarchy:        DecodeHierarchy(at(resp, 11) & 0x07),
		CodeRateHP:       DecodeCodeRate(b9 & 0x0F),
		CodeRateLP:       DecodeCodeRate((b9 >> 4) & 0x0F),
		Inversion:        inversion(b8),
	}
}

// DecodeDVBT2 decodes a DVB-T2 extended status response.
func DecodeDVBT2(resp []byte) Params {
	b8, b9 := at(resp, 8), at(resp, 9)
	return Params{
		System:           DVBT2,
		Modulation:       DecodeConstellation(b8 & 0x3F),
		TransmissionMode: DecodeFFT(b9 & 0x0F),
		GuardInterval:    DecodeGuardInterval((b9 >> 4) & 0x07),
		FEC:              DecodeCodeRate(at(resp, 12) & 0x0F),
		Inversion:        inversion(b8),
	}
}

// DecodeDVBC decodes a DVB-C extended status response. The symbol rate is
// not part of the response; callers fill it from their own cache.
func DecodeDVBC(resp []byte, symbolRate uint32) Params {
	b8 := at(resp, 8)
	return Params{
		System:     DVBC,
		Modulation: DecodeConstellation(b8 & 0x3F),
		Inversion:  inversion(b8),
		SymbolRate: symbolRate,
	}
}

func (p Params) String() string {
	var parts []string
	parts = append(parts, p.System.String(), "mod="+p.Modulation.String())
	switch p.System {
	case DVBT:
		parts = append(parts,
			"fft="+p.TransmissionMode.String(),
			"gi="+p.GuardInterval.String(),
			"hier="+p.Hierarchy.String(),
			"hp="+p.CodeRateHP.String(),
			"lp="+p.CodeRateLP.String())
	case DVBT2:
		parts = append(parts,
			"fft="+p.TransmissionMode.String(),
			"gi="+p.GuardInterval.String(),
			"fec="+p.FEC.String())
	case DVBC:
		parts = append(parts, fmt.Sprintf("sr=%d", p.SymbolRate))
	}
	parts = append(parts, "inv="+p.Inversion.String())
	return strings.Join(parts, " ")
}
