// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"time"
)

// Decoder is the frame decoder state machine. It is fed one byte at a time.
type Decoder struct {
	state       int
	buffer      []byte
	bufferIndex int
	escapeNext  bool
	packet      *Packet
	rawBuffer   []byte
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize*2),
	}
}

// Reset returns the decoder to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.escapeNext = false
	d.packet = nil
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes accumulated since the last frame
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte. It returns a completed packet, or nil
// while the frame is incomplete.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}

	escaped := d.escapeNext
	if escaped {
		b ^= EscXor
		d.escapeNext = false
	}

	if !escaped && b == StartByte {
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, StartByte)
		d.state = stateLength
		return nil, nil
	}

	if !escaped && b == EndByte {
		if d.state != stateEnd {
			state := d.state
			d.Reset()
			return nil, fmt.Errorf("unexpected END byte in state %d", state)
		}
		packet := d.packet
		calculatedCRC := CalculateCRC(d.buffer[:d.bufferIndex])
		d.Reset()
		if packet.crc != calculatedCRC {
			return nil, fmt.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", calculatedCRC, packet.crc)
		}
		packet.timestamp = time.Now()
		return packet, nil
	}

	switch d.state {
	case stateIdle:
		return nil, nil

	case stateLength:
		if b == 0 || b > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxPayloadSize)
		}
		d.packet = &Packet{length: b, cborPayload: make([]byte, 0, b)}
		d.buffer[0] = b
		d.bufferIndex = 1
		d.state = statePayload
		return nil, nil

	case statePayload:
		if d.bufferIndex >= MaxFrameSize {
			d.Reset()
			return nil, fmt.Errorf("buffer overflow: frame exceeds max size")
		}
		d.packet.cborPayload = append(d.packet.cborPayload, b)
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++
		if len(d.packet.cborPayload) >= int(d.packet.length) {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.packet.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.packet.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		d.Reset()
		return nil, fmt.Errorf("missing END byte after CRC")

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}
