// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry decodes raw tuner and demodulator responses into signal
// quality figures and tuning parameters.
//
// Every decoder is a pure function of the response bytes. Responses shorter
// than a layout expects decode missing bytes as zero; unknown codes decode
// to the Auto member of the matching enum. Nothing in this package fails.
package telemetry

import (
	"fmt"
	"math"
	"strings"
)

// Response lengths of the status commands.
const (
	DemodStatusLen = 8
	TunerStatusLen = 12
	DVBTStatusLen  = 13
	DVBT2StatusLen = 14
	DVBCStatusLen  = 9
	CounterLen     = 3
)

func at(resp []byte, i int) uint8 {
	if i < len(resp) {
		return resp[i]
	}
	return 0
}

func bit(b uint8, n uint) bool {
	return (b>>n)&0x01 != 0
}

// DemodStatus is the decoded demodulator status response.
type DemodStatus struct {
	// Interrupt (latched) bits
	PCLInt   bool
	DLInt    bool
	BERInt   bool
	UncorInt bool
	RSQInt   uint8 // bits 5..7 of byte 1, shifted down

	// Current state bits
	PCL     bool // partial (carrier) lock
	DL      bool // demodulator lock
	BER     bool
	Uncor   bool
	RSQStat uint8 // bits 5..7 of byte 2, shifted down

	Standard  uint8 // detected standard code
	TSBitRate uint16
	TSClock   uint16
}

// DecodeDemodStatus decodes an 8-byte demod status response.
func DecodeDemodStatus(resp []byte) DemodStatus {
	ints, state := at(resp, 1), at(resp, 2)
	return DemodStatus{
		PCLInt:    bit(ints, 1),
		DLInt:     bit(ints, 2),
		BERInt:    bit(ints, 3),
		UncorInt:  bit(ints, 4),
		RSQInt:    ints >> 5,
		PCL:       bit(state, 1),
		DL:        bit(state, 2),
		BER:       bit(state, 3),
		Uncor:     bit(state, 4),
		RSQStat:   state >> 5,
		Standard:  at(resp, 3) & 0x0F,
		TSBitRate: uint16(at(resp, 5))<<8 | uint16(at(resp, 4)),
		TSClock:   uint16(at(resp, 7))<<8 | uint16(at(resp, 6)),
	}
}

// RSQIntBit5 reports the first RSQ interrupt bit, which signals that the
// demodulator gave up on the current channel.
func (s DemodStatus) RSQIntBit5() bool {
	return s.RSQInt&0x01 != 0
}

// System returns the delivery system the demodulator reports.
func (s DemodStatus) System() DeliverySystem {
	return SystemFromStandard(s.Standard)
}

// LockStatus derives the lock bit set from the status.
func (s DemodStatus) LockStatus() LockStatus {
	var ls LockStatus
	if s.PCL {
		ls = HasSignal | HasCarrier | HasViterbi | HasSync
	}
	if s.DL {
		ls = HasSignal | HasCarrier | HasViterbi | HasSync | HasLock
	}
	return ls
}

// LockStatus is a set of lock indications.
type LockStatus uint8

const (
	HasSignal LockStatus = 1 << iota
	HasCarrier
	HasViterbi
	HasSync
	HasLock
)

// Locked reports full lock.
func (l LockStatus) Locked() bool {
	return l&HasLock != 0
}

func (l LockStatus) String() string {
	names := []struct {
		bit  LockStatus
		name string
	}{
		{HasSignal, "SIGNAL"},
		{HasCarrier, "CARRIER"},
		{HasViterbi, "VITERBI"},
		{HasSync, "SYNC"},
		{HasLock, "LOCK"},
	}
	var set []string
	for _, n := range names {
		if l&n.bit != 0 {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return "NONE"
	}
	return strings.Join(set, "|")
}

// Strength decodes the tuner status RSSI byte into a 0..0xFFFF value. The
// byte is a signed dBm reading; adding 128 in 8 bits moves it to 0..255.
func Strength(tunerStatus []byte) uint16 {
	raw := at(tunerStatus, 3) + 128
	return uint16(uint32(raw) * 0xFFFF / 0xFF)
}

// UncorrectedBlocks decodes the uncorrected block counter response.
func UncorrectedBlocks(resp []byte) uint32 {
	return uint32(at(resp, 2))<<16 | uint32(at(resp, 1))
}

// BER decodes the bit error rate response. The second result is false while
// the exponent byte is zero, meaning no measurement is available yet.
func BER(resp []byte) (float64, bool) {
	exp := at(resp, 1)
	if exp == 0 {
		return 0, false
	}
	return float64(at(resp, 2)) / 10 / math.Pow10(int(exp)), true
}

// SNR decodes the SNR byte of a status response, in dB.
func SNR(resp []byte) float64 {
	return float64(at(resp, 3)) / 40
}

// FormatBER formats a BER value, or "n/a" when unset.
func FormatBER(ber float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.2e", ber)
}
