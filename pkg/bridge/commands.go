// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

// Builders for every bridge message. Each returns a Packet ready for Encode.

// NewWrite creates a WRITE request (0x01) carrying data for the device at addr.
func NewWrite(addr uint16, data []byte) *Packet {
	return NewPacketWithPayload(OpWrite, map[int]interface{}{
		KeyAddr: uint64(addr),
		KeyData: data,
	})
}

// NewRead creates a READ request (0x02) for n bytes from the device at addr.
func NewRead(addr uint16, n int) *Packet {
	return NewPacketWithPayload(OpRead, map[int]interface{}{
		KeyAddr:   uint64(addr),
		KeyLength: uint64(n),
	})
}

// NewPing creates a PING request (0x0F).
func NewPing() *Packet {
	return NewPacketWithPayload(OpPing, nil)
}

// NewWriteAck creates a WRITE_ACK reply (0x81).
func NewWriteAck(count int) *Packet {
	return NewPacketWithPayload(OpWriteAck, map[int]interface{}{
		KeyCount: uint64(count),
	})
}

// NewReadData creates a READ_DATA reply (0x82).
func NewReadData(data []byte) *Packet {
	return NewPacketWithPayload(OpReadData, map[int]interface{}{
		KeyData: data,
	})
}

// NewPong creates a PONG reply (0x8F) with the bridge uptime in milliseconds.
func NewPong(uptimeMs uint64) *Packet {
	return NewPacketWithPayload(OpPong, map[int]interface{}{
		KeyUptime: uptimeMs,
	})
}

// maxReason keeps ERROR replies inside MaxPayloadSize.
const maxReason = 96

// NewError creates an ERROR reply (0xE0).
func NewError(code ErrorCode, reason string) *Packet {
	if len(reason) > maxReason {
		reason = reason[:maxReason]
	}
	payload := map[int]interface{}{
		KeyCode: uint64(code),
	}
	if reason != "" {
		payload[KeyReason] = reason
	}
	return NewPacketWithPayload(OpError, payload)
}
