// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"strings"
	"time"
)

// FormatPacket formats a packet into a single human-readable line
func FormatPacket(p *Packet) string {
	timestamp := p.Timestamp().Format("15:04:05.000")
	if err := p.ParseError(); err != nil {
		return fmt.Sprintf("[%s] INVALID len=%d: %v", timestamp, p.Length(), err)
	}
	result := fmt.Sprintf("[%s] %s (0x%02X)", timestamp, FormatOp(p.Op()), p.Op())
	if fields := FormatPayloadMap(p.Op(), p.PayloadMap()); fields != "" {
		result += " " + fields
	}
	return result
}

// FormatOp returns the name of an op
func FormatOp(op uint8) string {
	switch op {
	case OpWrite:
		return "WRITE"
	case OpRead:
		return "READ"
	case OpPing:
		return "PING"
	case OpWriteAck:
		return "WRITE_ACK"
	case OpReadData:
		return "READ_DATA"
	case OpPong:
		return "PONG"
	case OpError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FormatPayloadMap renders the payload fields of a known op
func FormatPayloadMap(op uint8, m map[int]interface{}) string {
	var parts []string

	switch op {
	case OpWrite:
		if addr, ok := GetMapUint(m, KeyAddr); ok {
			parts = append(parts, fmt.Sprintf("addr=0x%02X", addr))
		}
		if data, ok := GetMapBytes(m, KeyData); ok {
			parts = append(parts, fmt.Sprintf("data=[% X]", data))
		}
	case OpRead:
		if addr, ok := GetMapUint(m, KeyAddr); ok {
			parts = append(parts, fmt.Sprintf("addr=0x%02X", addr))
		}
		if n, ok := GetMapUint(m, KeyLength); ok {
			parts = append(parts, fmt.Sprintf("len=%d", n))
		}
	case OpWriteAck:
		if n, ok := GetMapUint(m, KeyCount); ok {
			parts = append(parts, fmt.Sprintf("count=%d", n))
		}
	case OpReadData:
		if data, ok := GetMapBytes(m, KeyData); ok {
			parts = append(parts, fmt.Sprintf("data=[% X]", data))
		}
	case OpPong:
		if ms, ok := GetMapUint(m, KeyUptime); ok {
			parts = append(parts, "uptime="+formatDuration(ms))
		}
	case OpError:
		if code, ok := GetMapUint(m, KeyCode); ok {
			parts = append(parts, "code="+ErrorCode(code).String())
		}
		if reason, ok := GetMapString(m, KeyReason); ok {
			parts = append(parts, fmt.Sprintf("reason=%q", reason))
		}
	}

	return strings.Join(parts, " ")
}

func (c ErrorCode) String() string {
	switch c {
	case ErrorNack:
		return "NACK"
	case ErrorLength:
		return "LENGTH"
	case ErrorBusy:
		return "BUSY"
	case ErrorBadRequest:
		return "BAD_REQUEST"
	default:
		return fmt.Sprintf("0x%02X", int(c))
	}
}

func formatDuration(ms uint64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
