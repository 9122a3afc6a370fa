// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Error strings are classified by these substrings, which match the engine's
// sentinel messages.
const (
	timeoutMarker = "timed out"
	deviceMarker  = "device reported error"
	pollingMarker = "polling failed"
	ioMarker      = "bus transfer failed"
)

// Statistics counts transactions and their outcomes. It is a Logger, so it
// can sit next to other sinks in a MultiLogger. Safe for concurrent use.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Commands     uint64
	Polls        uint64 // CTS reads across all transactions
	BusWrites    uint64
	BusReads     uint64
	Transitions  uint64
	Timeouts     uint64
	DeviceErrors uint64
	PollErrors   uint64
	IOErrors     uint64
	OtherErrors  uint64

	// Rates (calculated)
	CommandRate float64 // commands/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Log updates the counters from one event.
func (s *Statistics) Log(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case KindCommand:
		s.Commands++
		s.Polls += uint64(e.Polls)
	case KindPoll:
		s.Polls += uint64(e.Polls)
	case KindBusWrite:
		s.BusWrites++
	case KindBusRead:
		s.BusReads++
	case KindState:
		s.Transitions++
	}

	if e.Failed() && (e.Kind == KindCommand || e.Kind == KindPoll) {
		switch {
		case strings.Contains(e.Err, timeoutMarker):
			s.Timeouts++
		case strings.Contains(e.Err, deviceMarker):
			s.DeviceErrors++
		case strings.Contains(e.Err, pollingMarker):
			s.PollErrors++
		case strings.Contains(e.Err, ioMarker):
			s.IOErrors++
		default:
			s.OtherErrors++
		}
	}

	s.LastUpdateTime = time.Now()
}

// Errors returns the total number of failed transactions.
func (s *Statistics) Errors() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors()
}

func (s *Statistics) errors() uint64 {
	return s.Timeouts + s.DeviceErrors + s.PollErrors + s.IOErrors + s.OtherErrors
}

// CalculateRates calculates command and error rates.
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CommandRate = float64(s.Commands) / elapsed
		s.ErrorRate = float64(s.errors()) / elapsed
	}
}

// String returns a formatted statistics summary.
func (s *Statistics) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	var pollsPerCommand float64
	if s.Commands > 0 {
		pollsPerCommand = float64(s.Polls) / float64(s.Commands)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Commands:        %8d\n", s.Commands)
	result += fmt.Sprintf("CTS Polls:       %8d (%.1f/cmd)\n", s.Polls, pollsPerCommand)
	if s.BusWrites > 0 || s.BusReads > 0 {
		result += fmt.Sprintf("Bus Transfers:   %8d wr / %d rd\n", s.BusWrites, s.BusReads)
	}
	if s.Transitions > 0 {
		result += fmt.Sprintf("Transitions:     %8d\n", s.Transitions)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	if s.DeviceErrors > 0 {
		result += fmt.Sprintf("Device Errors:   %8d\n", s.DeviceErrors)
	}
	if s.PollErrors > 0 {
		result += fmt.Sprintf("Polling Errors:  %8d\n", s.PollErrors)
	}
	if s.IOErrors > 0 {
		result += fmt.Sprintf("I/O Errors:      %8d\n", s.IOErrors)
	}
	if s.OtherErrors > 0 {
		result += fmt.Sprintf("Other Errors:    %8d\n", s.OtherErrors)
	}
	result += fmt.Sprintf("Command Rate:    %8.1f cmds/sec\n", s.CommandRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all counters.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.Commands = 0
	s.Polls = 0
	s.BusWrites = 0
	s.BusReads = 0
	s.Transitions = 0
	s.Timeouts = 0
	s.DeviceErrors = 0
	s.PollErrors = 0
	s.IOErrors = 0
	s.OtherErrors = 0
	s.CommandRate = 0
	s.ErrorRate = 0
}

var _ Logger = (*Statistics)(nil)
