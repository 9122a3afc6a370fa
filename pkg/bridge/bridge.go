// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge implements the framed I2C pass-through protocol spoken by
// USB/serial and WebSocket I2C bridges.
//
// A frame is START, the byte-stuffed body, END. The body is a length byte,
// a CBOR message [op, {key: value}] and a big-endian CRC-16-CCITT over the
// length byte and the CBOR bytes. Client turns a bridge link into a bus.Bus;
// Server answers bridge requests from any bus.Bus.
package bridge

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	MaxPayloadSize = 114
	MaxFrameSize   = 1 + MaxPayloadSize + 2 // length + payload + CRC
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Requests (host -> bridge)
const (
	OpWrite = 0x01
	OpRead  = 0x02
	OpPing  = 0x0F
)

// Replies (bridge -> host)
const (
	OpWriteAck = 0x81
	OpReadData = 0x82
	OpPong     = 0x8F
	OpError    = 0xE0
)

// Payload keys
const (
	KeyAddr   = 0
	KeyData   = 1
	KeyLength = 1
	KeyCount  = 0
	KeyUptime = 0
	KeyCode   = 0
	KeyReason = 1
)

// ErrorCode is carried by ERROR replies.
type ErrorCode int

// Bridge error codes
const (
	ErrorNack       ErrorCode = 0x01 // device did not acknowledge
	ErrorLength     ErrorCode = 0x02 // transfer too long for the bridge
	ErrorBusy       ErrorCode = 0x03 // bus arbitration lost or held
	ErrorBadRequest ErrorCode = 0x04 // malformed request
)

// Decoder states
const (
	stateIdle = iota
	stateLength
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)
