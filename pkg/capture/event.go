// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"time"
)

// Kind classifies a captured event.
type Kind uint8

const (
	KindCommand  Kind = 1 // command sent and response collected by the engine
	KindPoll     Kind = 2 // bare CTS poll without a preceding command
	KindBusWrite Kind = 3 // raw transport write
	KindBusRead  Kind = 4 // raw transport read
	KindState    Kind = 5 // state machine transition
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "CMD"
	case KindPoll:
		return "POLL"
	case KindBusWrite:
		return "WR"
	case KindBusRead:
		return "RD"
	case KindState:
		return "STATE"
	default:
		return "UNKNOWN"
	}
}

// Event is one captured transaction. CBOR encoding uses integer keys.
type Event struct {
	Timestamp time.Time     `cbor:"1,keyasint"`
	Kind      Kind          `cbor:"2,keyasint"`
	Target    string        `cbor:"3,keyasint,omitempty"` // "tuner" or "demod"
	Address   uint16        `cbor:"4,keyasint,omitempty"`
	Opcode    uint8         `cbor:"5,keyasint,omitempty"`
	Tx        []byte        `cbor:"6,keyasint,omitempty"`
	Rx        []byte        `cbor:"7,keyasint,omitempty"`
	Polls     int           `cbor:"8,keyasint,omitempty"`
	Duration  time.Duration `cbor:"9,keyasint,omitempty"`
	Err       string        `cbor:"10,keyasint,omitempty"`

	// State is the name of the state entered, for KindState events.
	State string `cbor:"11,keyasint,omitempty"`
}

// Failed reports whether the event carries an error.
func (e Event) Failed() bool {
	return e.Err != ""
}

// ErrString returns err.Error(), or "" for a nil error.
func ErrString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
