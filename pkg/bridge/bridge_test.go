// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// ============================================================
// CBOR Test Helpers
// ============================================================

// buildCBORPayload creates a CBOR-encoded message: [op, payloadMap]
func buildCBORPayload(op uint8, payload map[int]interface{}) []byte {
	var msg interface{}
	if payload == nil {
		msg = []interface{}{uint64(op), nil}
	} else {
		msg = []interface{}{uint64(op), payload}
	}
	data, err := cbor.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return data
}

// decodeAll feeds a byte stream through a fresh decoder
func decodeAll(t *testing.T, data []byte) []*Packet {
	t.Helper()
	dec := NewDecoder()
	var packets []*Packet
	for _, b := range data {
		p, err := dec.DecodeByte(b)
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		if p != nil {
			packets = append(packets, p)
		}
	}
	return packets
}

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_Empty(t *testing.T) {
	if crc := CalculateCRC(nil); crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%04X", crc)
	}
}

func TestCalculateCRC_KnownValue(t *testing.T) {
	// Standard CRC-16-CCITT (FALSE) check value
	if crc := CalculateCRC([]byte("123456789")); crc != 0x29B1 {
		t.Errorf("CalculateCRC(\"123456789\") = 0x%04X, want 0x29B1", crc)
	}
}

// ============================================================
// CBOR Tests
// ============================================================

func TestParseCBORMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		op      uint8
		wantErr bool
	}{
		{"ping", buildCBORPayload(OpPing, nil), OpPing, false},
		{"write", buildCBORPayload(OpWrite, map[int]interface{}{0: uint64(0x64), 1: []byte{0x85}}), OpWrite, false},
		{"empty", nil, 0, true},
		{"not an array", mustMarshal(t, uint64(5)), 0, true},
		{"three elements", mustMarshal(t, []interface{}{uint64(1), nil, nil}), 0, true},
		{"op out of range", mustMarshal(t, []interface{}{uint64(300), nil}), 0, true},
		{"string op", mustMarshal(t, []interface{}{"WRITE", nil}), 0, true},
		{"string key", mustMarshal(t, []interface{}{uint64(1), map[string]interface{}{"a": 1}}), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, _, err := ParseCBORMessage(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if op != tt.op {
				t.Errorf("op = 0x%02X, want 0x%02X", op, tt.op)
			}
		})
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := cbor.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestGetMapHelpers(t *testing.T) {
	m := map[int]interface{}{
		0: uint64(7),
		1: []byte{1, 2},
		2: "nack",
		3: int64(-1),
		4: int64(9),
	}

	if v, ok := GetMapUint(m, 0); !ok || v != 7 {
		t.Errorf("GetMapUint(0) = %d, %v", v, ok)
	}
	if v, ok := GetMapUint(m, 4); !ok || v != 9 {
		t.Errorf("GetMapUint(4) = %d, %v", v, ok)
	}
	if _, ok := GetMapUint(m, 3); ok {
		t.Error("negative value must not convert to uint")
	}
	if v, ok := GetMapBytes(m, 1); !ok || !bytes.Equal(v, []byte{1, 2}) {
		t.Errorf("GetMapBytes(1) = %v, %v", v, ok)
	}
	if v, ok := GetMapString(m, 2); !ok || v != "nack" {
		t.Errorf("GetMapString(2) = %q, %v", v, ok)
	}
	if _, ok := GetMapUint(nil, 0); ok {
		t.Error("nil map must report missing")
	}
	if _, ok := GetMapBytes(m, 0); ok {
		t.Error("wrong type must report missing")
	}
}

// ============================================================
// Encoder / Decoder Tests
// ============================================================

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		p    *Packet
	}{
		{"write", NewWrite(0x64, []byte{0x14, 0x00, 0x0A, 0x10, 0xF8, 0x02})},
		{"read", NewRead(0x60, 12)},
		{"ping", NewPing()},
		{"write ack", NewWriteAck(6)},
		{"read data", NewReadData(bytes.Repeat([]byte{0x7E, 0x7D, 0x7F}, 21))},
		{"pong", NewPong(123456)},
		{"error", NewError(ErrorNack, "no ack")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.p)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if frame[0] != StartByte || frame[len(frame)-1] != EndByte {
				t.Fatalf("frame not delimited: % X", frame)
			}
			for _, b := range frame[1 : len(frame)-1] {
				if b == StartByte || b == EndByte {
					t.Fatalf("unescaped framing byte in body: % X", frame)
				}
			}

			packets := decodeAll(t, frame)
			if len(packets) != 1 {
				t.Fatalf("decoded %d packets, want 1", len(packets))
			}
			got := packets[0]
			if got.Op() != tt.p.Op() {
				t.Errorf("op = 0x%02X, want 0x%02X", got.Op(), tt.p.Op())
			}
			if got.ParseError() != nil {
				t.Fatalf("parse error: %v", got.ParseError())
			}
			if FormatPayloadMap(got.Op(), got.PayloadMap()) != FormatPayloadMap(tt.p.Op(), tt.p.PayloadMap()) {
				t.Errorf("payload mismatch: %s vs %s",
					FormatPayloadMap(got.Op(), got.PayloadMap()),
					FormatPayloadMap(tt.p.Op(), tt.p.PayloadMap()))
			}
		})
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	_, err := Encode(NewWrite(0x64, make([]byte, 200)))
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestUnstuffBytes(t *testing.T) {
	raw := []byte{0x01, StartByte, 0x02, EscByte, EndByte}
	got, err := UnstuffBytes(stuffBytes(raw))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("UnstuffBytes(stuffBytes(x)) = % X, want % X", got, raw)
	}
	if _, err := UnstuffBytes([]byte{0x01, EscByte}); err == nil {
		t.Error("dangling escape must fail")
	}
}

func TestDecoder_CRCMismatch(t *testing.T) {
	frame, _ := Encode(NewPing())
	// frame is START, len, 82 0F F6, CRC, END; corrupt the op byte
	frame[3] ^= 0x01

	dec := NewDecoder()
	var gotErr error
	for _, b := range frame {
		if _, err := dec.DecodeByte(b); err != nil {
			gotErr = err
		}
	}
	if gotErr == nil || !strings.Contains(gotErr.Error(), "CRC mismatch") {
		t.Errorf("expected CRC mismatch, got %v", gotErr)
	}
}

func TestDecoder_InvalidLength(t *testing.T) {
	dec := NewDecoder()
	dec.DecodeByte(StartByte)
	if _, err := dec.DecodeByte(MaxPayloadSize + 1); err == nil {
		t.Error("expected invalid length error")
	}
	if dec.state != stateIdle {
		t.Errorf("decoder should reset to idle, got state %d", dec.state)
	}
}

func TestDecoder_MissingEnd(t *testing.T) {
	frame, _ := Encode(NewPing())
	body := frame[:len(frame)-1]

	dec := NewDecoder()
	for _, b := range body {
		if _, err := dec.DecodeByte(b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := dec.DecodeByte(0x00); err == nil {
		t.Error("expected error for byte after CRC")
	}
}

func TestDecoder_StartByteResetsState(t *testing.T) {
	first, _ := Encode(NewPing())
	second, _ := Encode(NewRead(0x64, 8))

	// truncated frame followed by a complete one
	stream := append(append([]byte{}, first[:3]...), second...)
	packets := decodeAll(t, stream)
	if len(packets) != 1 {
		t.Fatalf("decoded %d packets, want 1", len(packets))
	}
	if packets[0].Op() != OpRead {
		t.Errorf("op = %s, want READ", FormatOp(packets[0].Op()))
	}
}

func TestDecoder_GarbageBeforeStart(t *testing.T) {
	frame, _ := Encode(NewPong(10))
	stream := append([]byte{0x00, 0x11, 0x22}, frame...)
	packets := decodeAll(t, stream)
	if len(packets) != 1 || packets[0].Op() != OpPong {
		t.Fatalf("expected one PONG, got %d packets", len(packets))
	}
}

func TestDecoder_GetRawBytes(t *testing.T) {
	frame, _ := Encode(NewPing())
	dec := NewDecoder()
	for _, b := range frame[:len(frame)-1] {
		dec.DecodeByte(b)
	}
	if !bytes.Equal(dec.GetRawBytes(), frame[:len(frame)-1]) {
		t.Errorf("raw bytes = % X, want % X", dec.GetRawBytes(), frame[:len(frame)-1])
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatOp(t *testing.T) {
	tests := map[uint8]string{
		OpWrite:    "WRITE",
		OpRead:     "READ",
		OpPing:     "PING",
		OpWriteAck: "WRITE_ACK",
		OpReadData: "READ_DATA",
		OpPong:     "PONG",
		OpError:    "ERROR",
		0x55:       "UNKNOWN",
	}
	for op, want := range tests {
		if got := FormatOp(op); got != want {
			t.Errorf("FormatOp(0x%02X) = %q, want %q", op, got, want)
		}
	}
}

func TestFormatPacket(t *testing.T) {
	tests := []struct {
		p    *Packet
		want string
	}{
		{NewWrite(0x64, []byte{0x87, 0x01}), "WRITE (0x01) addr=0x64 data=[87 01]"},
		{NewRead(0x60, 12), "READ (0x02) addr=0x60 len=12"},
		{NewPing(), "PING (0x0F)"},
		{NewWriteAck(2), "WRITE_ACK (0x81) count=2"},
		{NewPong(1500), "PONG (0x8F) uptime=1.5s"},
		{NewError(ErrorBusy, "held"), `ERROR (0xE0) code=BUSY reason="held"`},
	}
	for _, tt := range tests {
		got := FormatPacket(tt.p)
		if !strings.HasSuffix(got, tt.want) {
			t.Errorf("FormatPacket() = %q, want suffix %q", got, tt.want)
		}
	}
}

func TestErrorCodeString(t *testing.T) {
	if ErrorCode(0x42).String() != "0x42" {
		t.Errorf("unknown code = %q", ErrorCode(0x42).String())
	}
}

func TestNewError_TruncatesReason(t *testing.T) {
	p := NewError(ErrorNack, strings.Repeat("x", 300))
	if _, err := Encode(p); err != nil {
		t.Fatalf("long reason should still encode: %v", err)
	}
}
