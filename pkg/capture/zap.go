// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"go.uber.org/zap"
)

// ZapLogger writes events to a zap logger. Successful transactions are
// logged at debug level, failed ones at warn level.
type ZapLogger struct {
	log *zap.Logger
}

// NewZapLogger wraps log. A nil logger yields a no-op sink.
func NewZapLogger(log *zap.Logger) *ZapLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapLogger{log: log}
}

// Log writes the event.
func (z *ZapLogger) Log(e Event) {
	fields := make([]zap.Field, 0, 8)
	if e.Target != "" {
		fields = append(fields, zap.String("target", e.Target))
	}
	if e.Address != 0 {
		fields = append(fields, zap.String("addr", formatAddress(e.Address)))
	}
	switch e.Kind {
	case KindCommand:
		fields = append(fields, zap.String("op", FormatOpcode(e.Target, e.Opcode)))
	case KindState:
		fields = append(fields, zap.String("state", e.State))
	}
	if len(e.Tx) > 0 {
		fields = append(fields, zap.String("tx", formatHex(e.Tx)))
	}
	if len(e.Rx) > 0 {
		fields = append(fields, zap.String("rx", formatHex(e.Rx)))
	}
	if e.Polls > 0 {
		fields = append(fields, zap.Int("polls", e.Polls))
	}
	if e.Duration > 0 {
		fields = append(fields, zap.Duration("took", e.Duration))
	}

	if e.Failed() {
		fields = append(fields, zap.String("err", e.Err))
		z.log.Warn(e.Kind.String(), fields...)
		return
	}
	z.log.Debug(e.Kind.String(), fields...)
}

var _ Logger = (*ZapLogger)(nil)
