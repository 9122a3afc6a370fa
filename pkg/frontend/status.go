// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frontend

import (
	"github.com/Thermoquad/tunestat/pkg/telemetry"
)

// ReadStatus returns the lock indications of the demodulator.
func (f *Frontend) ReadStatus() (telemetry.LockStatus, error) {
	st, err := f.DemodStatus(false)
	if err != nil {
		return 0, err
	}
	return st.LockStatus(), nil
}

// ReadSignalStrength returns the tuner RSSI scaled to 0..0xFFFF.
func (f *Frontend) ReadSignalStrength() (uint16, error) {
	var resp []byte
	err := f.withTunerBus(func() error {
		var err error
		resp, err = f.tunerStatus(false)
		return err
	})
	if err != nil {
		return 0, err
	}
	return telemetry.Strength(resp), nil
}

// ReadSNR returns the SNR in dB from the status of the detected standard.
// When no standard is detected the demod status itself is decoded.
func (f *Frontend) ReadSNR() (float64, error) {
	resp, err := f.demodStatusRaw(false)
	if err != nil {
		return 0, err
	}
	st := telemetry.DecodeDemodStatus(resp)
	if sys := st.System(); sys.Supported() {
		if resp, err = f.extendedStatus(sys); err != nil {
			return 0, err
		}
	}
	return telemetry.SNR(resp), nil
}

// ReadBER returns the bit error rate. The second result is false while the
// demodulator has no measurement.
func (f *Frontend) ReadBER() (float64, bool, error) {
	resp, err := f.counter(demodCmdBER, "BER")
	if err != nil {
		return 0, false, err
	}
	ber, ok := telemetry.BER(resp)
	return ber, ok, nil
}

// ReadUncorrectedBlocks returns the uncorrected block counter.
func (f *Frontend) ReadUncorrectedBlocks() (uint32, error) {
	resp, err := f.counter(demodCmdUncorrected, "uncorrected blocks")
	if err != nil {
		return 0, err
	}
	return telemetry.UncorrectedBlocks(resp), nil
}

// GetFrontend re-derives the tuning parameters of the current signal. With
// no detected standard only Params.System (Undefined) is meaningful.
func (f *Frontend) GetFrontend() (telemetry.Params, error) {
	st, err := f.DemodStatus(false)
	if err != nil {
		return telemetry.Params{}, err
	}

	sys := st.System()
	if !sys.Supported() {
		return telemetry.Params{System: Undefined}, nil
	}
	resp, err := f.extendedStatus(sys)
	if err != nil {
		return telemetry.Params{}, err
	}

	switch sys {
	case DVBT:
		return telemetry.DecodeDVBT(resp), nil
	case DVBT2:
		return telemetry.DecodeDVBT2(resp), nil
	default:
		return telemetry.DecodeDVBC(resp, f.dvbcSymbolRate), nil
	}
}
