// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"time"

	"github.com/Thermoquad/tunestat/pkg/capture"
)

// Recorder wraps a Bus and reports every raw transfer to a capture sink.
type Recorder struct {
	next Bus
	sink capture.Logger
}

// NewRecorder returns a Bus that forwards to next and logs to sink.
// A nil sink disables recording.
func NewRecorder(next Bus, sink capture.Logger) *Recorder {
	if sink == nil {
		sink = capture.NoopLogger{}
	}
	return &Recorder{next: next, sink: sink}
}

// Send forwards the write and records it.
func (r *Recorder) Send(addr uint16, data []byte) (int, error) {
	start := time.Now()
	n, err := r.next.Send(addr, data)
	r.sink.Log(capture.Event{
		Timestamp: start,
		Kind:      capture.KindBusWrite,
		Address:   addr,
		Tx:        append([]byte(nil), data...),
		Duration:  time.Since(start),
		Err:       capture.ErrString(err),
	})
	return n, err
}

// Receive forwards the read and records it.
func (r *Recorder) Receive(addr uint16, n int) ([]byte, error) {
	start := time.Now()
	data, err := r.next.Receive(addr, n)
	r.sink.Log(capture.Event{
		Timestamp: start,
		Kind:      capture.KindBusRead,
		Address:   addr,
		Rx:        append([]byte(nil), data...),
		Duration:  time.Since(start),
		Err:       capture.ErrString(err),
	})
	return data, err
}

var _ Bus = (*Recorder)(nil)
