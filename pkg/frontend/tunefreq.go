// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frontend

import (
	"fmt"
	"time"

	"github.com/Thermoquad/tunestat/pkg/engine"
)

// TuneState is a state of the tuner frequency-tune sub-protocol.
type TuneState uint8

const (
	TuneIdle TuneState = iota
	TuneCommandSent
	TuneWaitComplete
	TuneWaitDigitalLock
	TuneDone
	TuneFailed
)

func (s TuneState) String() string {
	switch s {
	case TuneIdle:
		return "Idle"
	case TuneCommandSent:
		return "CommandSent"
	case TuneWaitComplete:
		return "WaitTuneComplete"
	case TuneWaitDigitalLock:
		return "WaitDigitalLock"
	case TuneDone:
		return "Done"
	case TuneFailed:
		return "Failed"
	default:
		return fmt.Sprintf("TuneState(%d)", uint8(s))
	}
}

// TuneObserver is called on every tune sub-protocol state entered.
type TuneObserver func(TuneState)

func (f *Frontend) enterTune(s TuneState) {
	if f.observer != nil {
		f.observer(s)
	}
	f.state(engine.Tuner, s.String())
}

// tuneFreq sends the tune command and waits for the tune-complete and
// digital interrupts. The pass-through must be open.
func (f *Frontend) tuneFreq(freq uint32) error {
	f.enterTune(TuneIdle)

	cmd := []byte{tunerCmdTune, 0, 0, 0, byte(freq), byte(freq >> 8), byte(freq >> 16), byte(freq >> 24)}
	if _, err := f.eng.Execute(engine.Tuner, cmd, tunerRespTune); err != nil {
		f.enterTune(TuneFailed)
		return fmt.Errorf("tune %d Hz: %w", freq, err)
	}
	f.enterTune(TuneCommandSent)

	f.enterTune(TuneWaitComplete)
	err := f.awaitTuner(f.timing.TuneCompleteAttempts, f.timing.TuneCompleteInterval,
		func(fl engine.TunerFlags) bool { return fl.TuneComplete })
	if err != nil {
		f.enterTune(TuneFailed)
		return fmt.Errorf("tune %d Hz: waiting for tune complete: %w", freq, err)
	}

	f.enterTune(TuneWaitDigitalLock)
	err = f.awaitTuner(f.timing.DigitalLockAttempts, f.timing.DigitalLockInterval,
		func(fl engine.TunerFlags) bool { return fl.DigitalInt })
	if err != nil {
		f.enterTune(TuneFailed)
		return fmt.Errorf("tune %d Hz: waiting for digital interrupt: %w", freq, err)
	}

	f.enterTune(TuneDone)
	return nil
}

// awaitTuner polls the tuner status byte until cond holds, at most attempts
// times, interval apart. A poll error ends the wait immediately.
func (f *Frontend) awaitTuner(attempts int, interval time.Duration, cond func(engine.TunerFlags) bool) error {
	for i := 1; i <= attempts; i++ {
		if _, err := f.eng.Poll(engine.Tuner, 1); err != nil {
			return err
		}
		if cond(f.eng.TunerFlags()) {
			return nil
		}
		if i < attempts {
			f.eng.Sleep(interval)
		}
	}
	return fmt.Errorf("interrupt not raised after %d polls: %w", attempts, engine.ErrTimeout)
}
