// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "strings"

// DeliverySystem is the broadcast standard the pair is configured for.
type DeliverySystem uint8

const (
	Undefined DeliverySystem = iota
	DVBT
	DVBT2
	DVBC
)

func (d DeliverySystem) String() string {
	switch d {
	case DVBT:
		return "DVB-T"
	case DVBT2:
		return "DVB-T2"
	case DVBC:
		return "DVB-C"
	default:
		return "UNDEFINED"
	}
}

// Supported reports whether the demodulator handles d.
func (d DeliverySystem) Supported() bool {
	return d == DVBT || d == DVBT2 || d == DVBC
}

// Standard codes reported in the modulation nibble of the demod status.
const (
	StandardDVBT  = 2
	StandardDVBC  = 3
	StandardDVBT2 = 7
)

// SystemFromStandard maps a demod standard code to a delivery system.
func SystemFromStandard(code uint8) DeliverySystem {
	switch code {
	case StandardDVBT:
		return DVBT
	case StandardDVBT2:
		return DVBT2
	case StandardDVBC:
		return DVBC
	default:
		return Undefined
	}
}

// Modulation is the constellation of the carriers.
type Modulation uint8

const (
	ModulationAuto Modulation = iota
	QPSK
	QAM16
	QAM32
	QAM64
	QAM128
	QAM256
)

var modulationNames = map[Modulation]string{
	ModulationAuto: "AUTO",
	QPSK:           "QPSK",
	QAM16:          "QAM16",
	QAM32:          "QAM32",
	QAM64:          "QAM64",
	QAM128:         "QAM128",
	QAM256:         "QAM256",
}

func (m Modulation) String() string {
	if s, ok := modulationNames[m]; ok {
		return s
	}
	return "AUTO"
}

// ParseModulation parses names like "qam64" or "QAM64". Unknown names map
// to ModulationAuto.
func ParseModulation(s string) Modulation {
	for m, name := range modulationNames {
		if strings.EqualFold(name, s) {
			return m
		}
	}
	return ModulationAuto
}

// DecodeConstellation maps a constellation code from an extended status
// response.
func DecodeConstellation(code uint8) Modulation {
	switch code {
	case 3:
		return QPSK
	case 7:
		return QAM16
	case 8:
		return QAM32
	case 9:
		return QAM64
	case 10:
		return QAM128
	case 11:
		return QAM256
	default:
		return ModulationAuto
	}
}

// ConstellationCode is the DVB-C QAM property value for m. Anything that is
// not a QAM order selects automatic detection (0).
func ConstellationCode(m Modulation) uint8 {
	switch m {
	case QAM16:
		return 7
	case QAM32:
		return 8
	case QAM64:
		return 9
	case QAM128:
		return 10
	case QAM256:
		return 11
	default:
		return 0
	}
}

// TransmissionMode is the OFDM FFT size.
type TransmissionMode uint8

const (
	TransmissionModeAuto TransmissionMode = iota
	TransmissionMode1K
	TransmissionMode2K
	TransmissionMode4K
	TransmissionMode8K
	TransmissionMode16K
	TransmissionMode32K
)

func (t TransmissionMode) String() string {
	switch t {
	case TransmissionMode1K:
		return "1K"
	case TransmissionMode2K:
		return "2K"
	case TransmissionMode4K:
		return "4K"
	case TransmissionMode8K:
		return "8K"
	case TransmissionMode16K:
		return "16K"
	case TransmissionMode32K:
		return "32K"
	default:
		return "AUTO"
	}
}

// DecodeFFT maps an FFT size code.
func DecodeFFT(code uint8) TransmissionMode {
	if code >= 10 && code <= 15 {
		return TransmissionMode(code - 9)
	}
	return TransmissionModeAuto
}

// GuardInterval is the OFDM guard interval fraction.
type GuardInterval uint8

const (
	GuardIntervalAuto GuardInterval = iota
	GuardInterval1_32
	GuardInterval1_16
	GuardInterval1_8
	GuardInterval1_4
	GuardInterval1_128
	GuardInterval19_128
	GuardInterval19_256
)

func (g GuardInterval) String() string {
	switch g {
	case GuardInterval1_32:
		return "1/32"
	case GuardInterval1_16:
		return "1/16"
	case GuardInterval1_8:
		return "1/8"
	case GuardInterval1_4:
		return "1/4"
	case GuardInterval1_128:
		return "1/128"
	case GuardInterval19_128:
		return "19/128"
	case GuardInterval19_256:
		return "19/256"
	default:
		return "AUTO"
	}
}

// DecodeGuardInterval maps a guard interval code. Codes 1..7 line up with
// the enum order.
func DecodeGuardInterval(code uint8) GuardInterval {
	if code >= 1 && code <= 7 {
		return GuardInterval(code)
	}
	return GuardIntervalAuto
}

// Hierarchy is the DVB-T hierarchical modulation alpha.
type Hierarchy uint8

const (
	HierarchyAuto Hierarchy = iota
	HierarchyNone
	Hierarchy1
	Hierarchy2
	Hierarchy4
)

func (h Hierarchy) String() string {
	switch h {
	case HierarchyNone:
		return "NONE"
	case Hierarchy1:
		return "1"
	case Hierarchy2:
		return "2"
	case Hierarchy4:
		return "4"
	default:
		return "AUTO"
	}
}

// DecodeHierarchy maps a hierarchy code.
func DecodeHierarchy(code uint8) Hierarchy {
	switch code {
	case 1:
		return HierarchyNone
	case 2:
		return Hierarchy1
	case 3:
		return Hierarchy2
	case 5:
		return Hierarchy4
	default:
		return HierarchyAuto
	}
}

// CodeRate is the inner FEC code rate.
type CodeRate uint8

const (
	CodeRateAuto CodeRate = iota
	CodeRate1_2
	CodeRate2_3
	CodeRate3_4
	CodeRate4_5
	CodeRate5_6
	CodeRate7_8
	CodeRate3_5
)

func (c CodeRate) String() string {
	switch c {
	case CodeRate1_2:
		return "1/2"
	case CodeRate2_3:
		return "2/3"
	case CodeRate3_4:
		return "3/4"
	case CodeRate4_5:
		return "4/5"
	case CodeRate5_6:
		return "5/6"
	case CodeRate7_8:
		return "7/8"
	case CodeRate3_5:
		return "3/5"
	default:
		return "AUTO"
	}
}

// DecodeCodeRate maps a code rate code.
func DecodeCodeRate(code uint8) CodeRate {
	switch code {
	case 1:
		return CodeRate1_2
	case 2:
		return CodeRate2_3
	case 3:
		return CodeRate3_4
	case 4:
		return CodeRate4_5
	case 5:
		return CodeRate5_6
	case 7:
		return CodeRate7_8
	case 13:
		return CodeRate3_5
	default:
		return CodeRateAuto
	}
}

// Inversion is the spectral inversion state.
type Inversion uint8

const (
	InversionAuto Inversion = iota
	InversionOff
	InversionOn
)

func (i Inversion) String() string {
	switch i {
	case InversionOff:
		return "OFF"
	case InversionOn:
		return "ON"
	default:
		return "AUTO"
	}
}
