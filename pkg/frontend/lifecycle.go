// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frontend

import (
	"fmt"

	"go.uber.org/zap"
)

// Init powers the pair up. The first call runs the full sequence: tuner
// power-up and default properties, demodulator power-up, ROM id, firmware
// patch, start-up configuration and default properties. Later calls only
// wake both chips.
func (f *Frontend) Init() error {
	cold := !f.initialized

	err := f.withTunerBus(func() error {
		if cold {
			if err := f.tunerInit(); err != nil {
				return err
			}
		} else if err := f.tunerWakeUp(); err != nil {
			return err
		}

		if err := f.tunerXOut(true); err != nil {
			return err
		}

		if cold {
			return f.demodInit()
		}
		return f.demodWakeUp(resetWarm, 1)
	})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	f.initialized = true
	f.log.Info("frontend ready", zap.Bool("cold", cold), zap.Uint8("rom", f.romID))
	return nil
}

// Sleep powers the pair down. The next Tune reconfigures the delivery
// system from scratch.
func (f *Frontend) Sleep() error {
	defer func() { f.current = Undefined }()

	if err := f.demodPowerDown(); err != nil {
		return fmt.Errorf("sleep: %w", err)
	}
	err := f.withTunerBus(func() error {
		if err := f.tunerXOut(false); err != nil {
			return err
		}
		return f.tunerStandby()
	})
	if err != nil {
		return fmt.Errorf("sleep: %w", err)
	}

	f.log.Info("frontend asleep")
	return nil
}
