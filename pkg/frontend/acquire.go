// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frontend

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/tunestat/pkg/engine"
	"github.com/Thermoquad/tunestat/pkg/telemetry"
)

// standardParams are the DD mode fields written on a standard switch.
type standardParams struct {
	mod      uint16
	auto     bool
	spectrum uint16
	bw       uint16
}

var standards = map[DeliverySystem]standardParams{
	DVBT:  {mod: telemetry.StandardDVBT, auto: true, bw: 8},
	DVBT2: {mod: telemetry.StandardDVBT2, auto: true, bw: 8},
	DVBC:  {mod: telemetry.StandardDVBC, auto: false, bw: 8},
}

// lockBudget bounds the lock poll of one delivery system.
type lockBudget struct {
	settle   time.Duration
	max      time.Duration
	interval time.Duration
}

func (b lockBudget) attempts() int {
	if b.interval <= 0 {
		return 1
	}
	n := int(b.max / b.interval)
	if n < 1 {
		n = 1
	}
	return n
}

func (f *Frontend) budget(system DeliverySystem) lockBudget {
	if system == DVBC {
		return lockBudget{f.timing.CableSettle, f.timing.CableMaxLock, f.timing.LockPollInterval}
	}
	return lockBudget{f.timing.TerrestrialSettle, f.timing.TerrestrialMaxLock, f.timing.LockPollInterval}
}

// SetStandard reconfigures both chips for system. It does nothing when
// system is already selected.
func (f *Frontend) SetStandard(system DeliverySystem) error {
	if system == f.current {
		return nil
	}
	p, ok := standards[system]
	if !ok {
		return fmt.Errorf("standard %s: %w", system, ErrUnsupported)
	}

	err := f.withTunerBus(func() error {
		return f.tunerFEFSetup(system == DVBT2)
	})
	if err != nil {
		return fmt.Errorf("standard %s: %w", system, err)
	}
	if err := f.setProperty(engine.Demod, demodPropDDMode, ddMode(p.auto, p.spectrum, p.mod, p.bw)); err != nil {
		return fmt.Errorf("standard %s: %w", system, err)
	}
	if err := f.demodRestart(); err != nil {
		return fmt.Errorf("standard %s: %w", system, err)
	}

	f.log.Debug("standard switched", zap.Stringer("from", f.current), zap.Stringer("to", system))
	f.current = system
	f.state(engine.Demod, "Standard:"+system.String())
	return nil
}

// resolvePLP returns the PLP to select for a stream id, updating the cache
// for explicit ids.
func (f *Frontend) resolvePLP(id uint32) int {
	switch {
	case id == NoStreamFilter:
		return f.plpID
	case id <= 255:
		f.plpID = int(id)
		return f.plpID
	default:
		return 0
	}
}

// terrestrialBandwidth converts a channel bandwidth to the DD mode nibble.
func terrestrialBandwidth(hz uint32) uint8 {
	if hz == 1700000 {
		return 2
	}
	return uint8(hz/1000000) & 0x0F
}

// Tune acquires the channel described by req. Not reaching lock within the
// budget is reported as LockResult{Locked: false} with a nil error; any bus
// or device error aborts the attempt and is returned.
func (f *Frontend) Tune(req TuneRequest) (LockResult, error) {
	if !req.System.Supported() {
		return LockResult{}, fmt.Errorf("tune %s: %w", req.System, ErrUnsupported)
	}

	f.log.Debug("tune",
		zap.Stringer("system", req.System),
		zap.Uint32("frequency", req.Frequency),
		zap.Uint32("bandwidth", req.Bandwidth),
		zap.Stringer("modulation", req.Modulation),
		zap.Uint32("symbol_rate", req.SymbolRate),
		zap.Uint32("stream_id", req.StreamID))

	if err := f.SetStandard(req.System); err != nil {
		return LockResult{}, err
	}

	plp := f.resolvePLP(req.StreamID)

	var bw uint8
	switch req.System {
	case DVBT, DVBT2:
		if err := f.setProperty(engine.Demod, demodPropTHierarchy, f.stream); err != nil {
			return LockResult{}, err
		}
		if err := f.selectCachedPLP(plp); err != nil {
			return LockResult{}, err
		}
		bw = terrestrialBandwidth(req.Bandwidth)
		if err := f.setProperty(engine.Demod, demodPropDDMode, ddMode(true, 0, 15, uint16(bw))); err != nil {
			return LockResult{}, err
		}
	case DVBC:
		bw = 8
		f.dvbcSymbolRate = req.SymbolRate
		if err := f.setProperty(engine.Demod, demodPropDDMode, ddMode(false, 0, 3, uint16(bw))); err != nil {
			return LockResult{}, err
		}
		if err := f.setProperty(engine.Demod, demodPropCSymRate, uint16(req.SymbolRate/1000)); err != nil {
			return LockResult{}, err
		}
		qam := telemetry.ConstellationCode(req.Modulation)
		if err := f.setProperty(engine.Demod, demodPropCQAM, uint16(qam)); err != nil {
			return LockResult{}, err
		}
	}

	err := f.withTunerBus(func() error {
		return f.tunerSetFreq(req.Frequency, req.System, bw)
	})
	if err != nil {
		return LockResult{}, err
	}

	if err := f.demodRestart(); err != nil {
		return LockResult{}, err
	}

	res, err := f.waitLock(req.System, plp)
	if err != nil {
		return res, err
	}

	if res.Locked {
		f.state(engine.Demod, "Locked")
		if f.onLock != nil {
			f.onLock(req, res)
		}
	} else {
		f.state(engine.Demod, "NotLocked")
	}
	f.log.Info("tune finished",
		zap.Stringer("system", req.System),
		zap.Uint32("frequency", req.Frequency),
		zap.Bool("locked", res.Locked),
		zap.Bool("aborted", res.Aborted),
		zap.Int("polls", res.Attempts))
	return res, nil
}

// waitLock polls the demodulator status until lock, abort or budget
// exhaustion.
func (f *Frontend) waitLock(system DeliverySystem, plp int) (LockResult, error) {
	b := f.budget(system)
	attempts := b.attempts()

	f.state(engine.Demod, "LockPoll")
	f.eng.Sleep(b.settle)

	var res LockResult
	for i := 1; i <= attempts; i++ {
		st, err := f.DemodStatus(true)
		if err != nil {
			return res, fmt.Errorf("lock poll %d: %w", i, err)
		}
		res.Attempts = i
		res.Status = st

		if st.DL {
			// A DVB-T request can land on a T2 signal; the PLP must then
			// be selected again.
			if system == DVBT && st.Standard == telemetry.StandardDVBT2 {
				if err := f.selectCachedPLP(plp); err != nil {
					return res, err
				}
				f.eng.Sleep(f.timing.T2ReselectSettle)
			}
			res.Locked = true
			return res, nil
		}
		if system != DVBC && st.RSQIntBit5() {
			res.Aborted = true
			return res, nil
		}

		if i < attempts {
			f.eng.Sleep(b.interval)
		}
	}
	return res, nil
}
