// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/tunestat/pkg/bus"
)

// Server answers bridge requests using a local bus.
type Server struct {
	bus   bus.Bus
	log   *zap.Logger
	start time.Time
}

// NewServer creates a server for b. A nil log discards output.
func NewServer(b bus.Bus, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{bus: b, log: log, start: time.Now()}
}

// Handle executes one request and returns the reply to send.
func (s *Server) Handle(req *Packet) *Packet {
	if err := req.ParseError(); err != nil {
		return NewError(ErrorBadRequest, err.Error())
	}
	m := req.PayloadMap()

	switch req.Op() {
	case OpPing:
		return NewPong(uint64(time.Since(s.start).Milliseconds()))

	case OpWrite:
		addr, okAddr := GetMapUint(m, KeyAddr)
		data, okData := GetMapBytes(m, KeyData)
		if !okAddr || !okData || addr > 0x7F {
			return NewError(ErrorBadRequest, "WRITE needs addr and data")
		}
		if len(data) > bus.MaxTransfer {
			return NewError(ErrorLength, fmt.Sprintf("%d bytes", len(data)))
		}
		n, err := s.bus.Send(uint16(addr), data)
		if err != nil {
			return NewError(ErrorNack, err.Error())
		}
		return NewWriteAck(n)

	case OpRead:
		addr, okAddr := GetMapUint(m, KeyAddr)
		n, okLen := GetMapUint(m, KeyLength)
		if !okAddr || !okLen || addr > 0x7F || n == 0 {
			return NewError(ErrorBadRequest, "READ needs addr and length")
		}
		if n > bus.MaxTransfer {
			return NewError(ErrorLength, fmt.Sprintf("%d bytes", n))
		}
		data, err := s.bus.Receive(uint16(addr), int(n))
		if err != nil {
			return NewError(ErrorNack, err.Error())
		}
		return NewReadData(data)

	default:
		return NewError(ErrorBadRequest, fmt.Sprintf("unsupported op 0x%02X", req.Op()))
	}
}

// Serve decodes requests from rw and writes replies until the link fails.
// A clean end of stream returns nil.
func (s *Server) Serve(rw io.ReadWriter) error {
	dec := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := rw.Read(buf)
		for _, b := range buf[:n] {
			req, derr := dec.DecodeByte(b)
			if derr != nil {
				s.log.Debug("bridge request dropped", zap.Error(derr))
				continue
			}
			if req == nil {
				continue
			}
			reply := s.Handle(req)
			s.log.Debug("bridge request",
				zap.String("req", FormatPacket(req)),
				zap.String("reply", FormatPacket(reply)))
			frame, eerr := Encode(reply)
			if eerr != nil {
				return eerr
			}
			if _, werr := rw.Write(frame); werr != nil {
				return fmt.Errorf("write reply: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
