// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import "time"

// Packet is one decoded bridge frame.
type Packet struct {
	length      uint8
	cborPayload []byte // raw CBOR bytes: [op, payload_map]
	crc         uint16
	timestamp   time.Time

	op         uint8
	payloadMap map[int]interface{}
	parsed     bool
	parseErr   error
}

// NewPacket creates a packet from raw frame fields.
func NewPacket(length uint8, cborPayload []byte, crc uint16) *Packet {
	return &Packet{
		length:      length,
		cborPayload: cborPayload,
		crc:         crc,
		timestamp:   time.Now(),
	}
}

// NewPacketWithPayload creates a packet from an op and payload map. The CBOR
// encoding and CRC are computed on Encode.
func NewPacketWithPayload(op uint8, payload map[int]interface{}) *Packet {
	return &Packet{
		op:         op,
		payloadMap: payload,
		parsed:     true,
		timestamp:  time.Now(),
	}
}

func (p *Packet) ensureParsed() {
	if p.parsed {
		return
	}
	p.parsed = true
	if len(p.cborPayload) == 0 {
		return
	}
	p.op, p.payloadMap, p.parseErr = ParseCBORMessage(p.cborPayload)
}

// Length returns the CBOR payload length
func (p *Packet) Length() uint8 {
	return p.length
}

// Op returns the packet's operation code (parsed from CBOR)
func (p *Packet) Op() uint8 {
	p.ensureParsed()
	return p.op
}

// Payload returns the raw CBOR payload bytes
func (p *Packet) Payload() []byte {
	return p.cborPayload
}

// PayloadMap returns the decoded payload map (nil for empty payloads)
func (p *Packet) PayloadMap() map[int]interface{} {
	p.ensureParsed()
	return p.payloadMap
}

// ParseError returns any error from parsing the CBOR payload
func (p *Packet) ParseError() error {
	p.ensureParsed()
	return p.parseErr
}

// CRC returns the frame's CRC value
func (p *Packet) CRC() uint16 {
	return p.crc
}

// Timestamp returns the packet's decode or creation time
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// IsReply reports whether the op is sent by the bridge.
func (p *Packet) IsReply() bool {
	return p.Op()&0x80 != 0
}
