// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package frontend

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/tunestat/pkg/bus/sim"
	"github.com/Thermoquad/tunestat/pkg/capture"
	"github.com/Thermoquad/tunestat/pkg/config"
	"github.com/Thermoquad/tunestat/pkg/firmware"
	"github.com/Thermoquad/tunestat/pkg/telemetry"
)

const (
	t2Freq    = 474000000
	tFreq     = 506000000
	cableFreq = 346000000
	emptyFreq = 600000000
)

// sleepLog records every wait instead of sleeping.
type sleepLog struct {
	waits []time.Duration
}

func (s *sleepLog) sleep(d time.Duration) {
	s.waits = append(s.waits, d)
}

func (s *sleepLog) count(d time.Duration) int {
	n := 0
	for _, w := range s.waits {
		if w == d {
			n++
		}
	}
	return n
}

type harness struct {
	fe     *Frontend
	dev    *sim.Device
	sleeps *sleepLog
	events []capture.Event
	states []TuneState
}

func newHarness(t *testing.T, simCfg sim.Config, opts Options) *harness {
	t.Helper()
	h := &harness{dev: sim.New(simCfg), sleeps: &sleepLog{}}
	opts.Sleep = h.sleeps.sleep
	opts.Capture = capture.LoggerFunc(func(e capture.Event) { h.events = append(h.events, e) })
	opts.Observer = func(s TuneState) { h.states = append(h.states, s) }
	h.fe = New(h.dev, opts)
	return h
}

// ready returns a harness whose frontend completed Init.
func ready(t *testing.T, simCfg sim.Config, opts Options) *harness {
	t.Helper()
	h := newHarness(t, simCfg, opts)
	require.NoError(t, h.fe.Init())
	h.dev.ResetLog()
	h.events = nil
	h.sleeps.waits = nil
	return h
}

func (h *harness) stateNames() []string {
	var out []string
	for _, e := range h.events {
		if e.Kind == capture.KindState && e.Target == capture.TargetDemod {
			out = append(out, e.State)
		}
	}
	return out
}

// tunerReadsPerState records the tuner read count on entry to every tune
// state.
func (h *harness) tunerReadsPerState() map[TuneState]int {
	reads := map[TuneState]int{}
	h.fe.observer = func(s TuneState) {
		h.states = append(h.states, s)
		reads[s] = h.dev.Reads(capture.TargetTuner)
	}
	return reads
}

func firstOp(cmds [][]byte, prefix ...byte) []byte {
	for _, c := range cmds {
		if bytes.HasPrefix(c, prefix) {
			return c
		}
	}
	return nil
}

func countOp(cmds [][]byte, prefix ...byte) int {
	n := 0
	for _, c := range cmds {
		if bytes.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func t2Request() TuneRequest {
	return TuneRequest{
		System:    DVBT2,
		Frequency: t2Freq,
		Bandwidth: 8000000,
		StreamID:  1,
	}
}

// ============================================================
// Lifecycle
// ============================================================

func TestInit_Cold(t *testing.T) {
	reg := firmware.NewRegistry(8)
	require.NoError(t, reg.Register(3, bytes.Repeat([]byte{0xA5}, 20)))

	h := newHarness(t, sim.DefaultConfig(), Options{Firmware: reg})
	require.NoError(t, h.fe.Init())

	assert.True(t, h.fe.Initialized())
	assert.Equal(t, uint8(3), h.fe.ROMID())
	assert.False(t, h.dev.BridgeOpen(), "pass-through must be closed after init")

	n, lines := h.dev.FirmwareBytes()
	assert.Equal(t, 20, n)
	assert.Equal(t, 3, lines)

	tuner, demod := h.dev.Awake()
	assert.True(t, tuner)
	assert.True(t, demod)

	// tuner defaults and TS configuration were written
	v, ok := h.dev.Property(capture.TargetTuner, 0x0507)
	require.True(t, ok)
	assert.Equal(t, uint16(127), v)
	v, ok = h.dev.Property(capture.TargetDemod, 0x1001)
	require.True(t, ok)
	assert.Equal(t, uint16(1<<4|3), v)

	demodCmds := h.dev.CommandsTo(capture.TargetDemod)
	assert.Equal(t, []byte{0xC0, 0x0D, 0x01}, demodCmds[0])
	assert.Equal(t, []byte{0xC0, 0x0D, 0x00}, demodCmds[len(demodCmds)-1])
	assert.Equal(t, 1, countOp(demodCmds, 0xC0, 0x06, 0x01), "cold power-up uses reset 1")
}

func TestInit_UnknownROMSkipsDownload(t *testing.T) {
	h := newHarness(t, sim.DefaultConfig(), Options{})
	require.NoError(t, h.fe.Init())

	n, lines := h.dev.FirmwareBytes()
	assert.Zero(t, n)
	assert.Zero(t, lines)
	assert.True(t, h.fe.Initialized())
}

func TestInit_Warm(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})
	require.NoError(t, h.fe.Init())

	tunerCmds := h.dev.CommandsTo(capture.TargetTuner)
	assert.Equal(t, [][]byte{{0xC0, 0x00, 0x0C}}, tunerCmds, "warm init only turns on the clock output")

	demodCmds := h.dev.CommandsTo(capture.TargetDemod)
	require.Len(t, demodCmds, 4)
	assert.Equal(t, []byte{0xC0, 0x06, 0x08, 0x0F, 0x00, 0x20, 0x21, 0x01}, demodCmds[2])
	assert.Zero(t, countOp(demodCmds, 0x02), "ROM id is not read again")
}

func TestInit_FailureLeavesUninitialized(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Fault = func(target string, cmd []byte) error {
		if target == capture.TargetTuner && cmd[0] == 0x01 {
			return errors.New("nak")
		}
		return nil
	}
	h := newHarness(t, cfg, Options{})

	err := h.fe.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	assert.False(t, h.fe.Initialized())
	assert.False(t, h.dev.BridgeOpen(), "pass-through closed on error")
}

func TestInit_FirmwareLineFailureAborts(t *testing.T) {
	reg := firmware.NewRegistry(4)
	require.NoError(t, reg.Register(3, bytes.Repeat([]byte{0x5A}, 16)))

	cfg := sim.DefaultConfig()
	lines := 0
	cfg.Fault = func(target string, cmd []byte) error {
		if target == capture.TargetDemod && bytes.Equal(cmd, []byte{0x5A, 0x5A, 0x5A, 0x5A}) {
			lines++
			if lines == 2 {
				return errors.New("nak")
			}
		}
		return nil
	}
	h := newHarness(t, cfg, Options{Firmware: reg})

	err := h.fe.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2/4")
	assert.Zero(t, countOp(h.dev.CommandsTo(capture.TargetDemod), 0x01, 0x01), "firmware not started")
}

func TestSleep(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})
	_, err := h.fe.Tune(t2Request())
	require.NoError(t, err)
	require.Equal(t, DVBT2, h.fe.Current())

	require.NoError(t, h.fe.Sleep())
	assert.Equal(t, Undefined, h.fe.Current())

	tuner, demod := h.dev.Awake()
	assert.False(t, tuner)
	assert.False(t, demod)
	assert.False(t, h.dev.BridgeOpen())
}

func TestSleep_ErrorStillForgetsStandard(t *testing.T) {
	cfg := sim.DefaultConfig()
	failing := false
	cfg.Fault = func(target string, cmd []byte) error {
		if failing && cmd[0] == 0x13 {
			return errors.New("nak")
		}
		return nil
	}
	h := ready(t, cfg, Options{})
	_, err := h.fe.Tune(t2Request())
	require.NoError(t, err)

	failing = true
	assert.ErrorIs(t, h.fe.Sleep(), ErrIO)
	assert.Equal(t, Undefined, h.fe.Current())
}

// ============================================================
// Acquisition
// ============================================================

func TestTune_DVBT2(t *testing.T) {
	var hooked []TuneRequest
	h := ready(t, sim.DefaultConfig(), Options{
		OnLock: func(req TuneRequest, _ LockResult) { hooked = append(hooked, req) },
	})

	res, err := h.fe.Tune(t2Request())
	require.NoError(t, err)
	assert.True(t, res.Locked)
	assert.False(t, res.Aborted)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, res.Status.DL)

	assert.Equal(t, []TuneState{
		TuneIdle, TuneCommandSent, TuneWaitComplete, TuneWaitDigitalLock, TuneDone,
	}, h.states)

	id, mode := h.dev.PLP()
	assert.Equal(t, uint8(1), id)
	assert.Equal(t, uint8(1), mode)
	assert.Equal(t, 1, h.fe.PLP())

	dd, _ := h.dev.Property(capture.TargetDemod, 0x100A)
	assert.Equal(t, uint16(1<<9|15<<4|8), dd)
	fef, _ := h.dev.Property(capture.TargetTuner, 0x0711)
	assert.Equal(t, uint16(3), fef, "FEF enabled after a T2 tune")
	modbw, _ := h.dev.Property(capture.TargetTuner, 0x0703)
	assert.Equal(t, uint16(2<<4|8), modbw)
	assert.Equal(t, uint32(t2Freq), h.dev.Frequency())

	assert.False(t, h.dev.BridgeOpen())
	assert.Equal(t, DVBT2, h.fe.Current())
	assert.Equal(t, []string{"Standard:DVB-T2", "LockPoll", "Locked"}, h.stateNames())
	assert.Len(t, hooked, 1)

	assert.Equal(t, 1, h.sleeps.count(100*time.Millisecond), "terrestrial settle")
	assert.Equal(t, 2, h.sleeps.count(10*time.Millisecond), "two lock poll intervals")
	assert.Equal(t, 1, h.sleeps.count(50*time.Millisecond), "one tune-complete interval")
}

func TestTune_DVBT2CachedPLP(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})
	reads := h.tunerReadsPerState()

	req := t2Request()
	req.StreamID = NoStreamFilter
	res, err := h.fe.Tune(req)
	require.NoError(t, err)
	assert.True(t, res.Locked)

	assert.Equal(t, []byte{0x52, 0x00, 0x01}, firstOp(h.dev.CommandsTo(capture.TargetDemod), 0x52))
	assert.Equal(t, 0, h.fe.PLP())

	// complete on the second status read, digital interrupt on the next
	assert.Equal(t, 2, reads[TuneWaitDigitalLock]-reads[TuneWaitComplete])
	assert.Equal(t, 1, reads[TuneDone]-reads[TuneWaitDigitalLock])
}

func TestTune_ZeroTimingUsesDefaults(t *testing.T) {
	tests := []struct {
		name   string
		timing func(*config.Timing)
	}{
		{"lock poll interval", func(tm *config.Timing) { tm.LockPollInterval = 0 }},
		{"tune sub-protocol budgets", func(tm *config.Timing) {
			tm.TuneCompleteAttempts = 0
			tm.DigitalLockAttempts = 0
		}},
		{"all zero", func(tm *config.Timing) { *tm = config.Timing{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.timing(&cfg.Timing)
			h := ready(t, sim.DefaultConfig(), Options{Config: cfg})

			var res LockResult
			var err error
			require.NotPanics(t, func() { res, err = h.fe.Tune(t2Request()) })
			require.NoError(t, err)
			assert.True(t, res.Locked)
			assert.Equal(t, 3, res.Attempts)
			assert.Equal(t, 2, h.sleeps.count(10*time.Millisecond))
		})
	}
}

func TestTune_DVBTHierarchyStream(t *testing.T) {
	cfg := config.Default()
	cfg.Stream = 1
	h := ready(t, sim.DefaultConfig(), Options{Config: cfg})

	_, err := h.fe.Tune(TuneRequest{System: DVBT, Frequency: tFreq, Bandwidth: 8000000, StreamID: NoStreamFilter})
	require.NoError(t, err)

	v, ok := h.dev.Property(capture.TargetDemod, 0x1201)
	require.True(t, ok)
	assert.Equal(t, uint16(1), v)
}

func TestTune_StandardSwitchSequence(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})

	_, err := h.fe.Tune(t2Request())
	require.NoError(t, err)

	tunerCmds := h.dev.CommandsTo(capture.TargetTuner)
	require.NotEmpty(t, tunerCmds)
	assert.Equal(t, []byte{0x12, 0x01, 0x01, 0x01, 0x01, 0x01}, tunerCmds[0])

	demodCmds := h.dev.CommandsTo(capture.TargetDemod)
	// bridge on, bridge off, DD mode for T2, restart
	require.GreaterOrEqual(t, len(demodCmds), 4)
	assert.Equal(t, []byte{0xC0, 0x0D, 0x01}, demodCmds[0])
	assert.Equal(t, []byte{0xC0, 0x0D, 0x00}, demodCmds[1])
	assert.Equal(t, []byte{0x14, 0x00, 0x0A, 0x10, 0x78, 0x02}, demodCmds[2])
	assert.Equal(t, []byte{0x85}, demodCmds[3])
}

func TestSetStandard_Idempotent(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})
	require.NoError(t, h.fe.SetStandard(DVBT2))
	h.dev.ResetLog()

	require.NoError(t, h.fe.SetStandard(DVBT2))
	assert.Empty(t, h.dev.Commands())
}

func TestSetStandard_Unsupported(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})
	assert.ErrorIs(t, h.fe.SetStandard(DeliverySystem(9)), ErrUnsupported)
	assert.Empty(t, h.dev.Commands())
}

func TestTune_Unsupported(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})

	_, err := h.fe.Tune(TuneRequest{System: Undefined, Frequency: t2Freq})
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Empty(t, h.dev.Commands())
	assert.Empty(t, h.states)
}

func TestTune_PLPSelection(t *testing.T) {
	t.Run("no filter reuses cached id", func(t *testing.T) {
		h := ready(t, sim.DefaultConfig(), Options{})
		_, err := h.fe.Tune(TuneRequest{System: DVBT2, Frequency: t2Freq, Bandwidth: 8000000, StreamID: 5})
		require.NoError(t, err)

		req := t2Request()
		req.StreamID = NoStreamFilter
		_, err = h.fe.Tune(req)
		require.NoError(t, err)

		id, mode := h.dev.PLP()
		assert.Equal(t, uint8(5), id)
		assert.Equal(t, uint8(1), mode)
		assert.Equal(t, 5, h.fe.PLP())
	})

	t.Run("out of range id selects PLP 0 without caching", func(t *testing.T) {
		h := ready(t, sim.DefaultConfig(), Options{})
		req := t2Request()
		req.StreamID = 4
		_, err := h.fe.Tune(req)
		require.NoError(t, err)

		req.StreamID = 300
		_, err = h.fe.Tune(req)
		require.NoError(t, err)

		id, mode := h.dev.PLP()
		assert.Equal(t, uint8(0), id)
		assert.Equal(t, uint8(1), mode)
		assert.Equal(t, 4, h.fe.PLP())
	})

	t.Run("cached -1 disables filtering", func(t *testing.T) {
		cfg := config.Default()
		cfg.PLP = -1
		h := ready(t, sim.DefaultConfig(), Options{Config: cfg})

		req := t2Request()
		req.StreamID = NoStreamFilter
		_, err := h.fe.Tune(req)
		require.NoError(t, err)

		assert.Equal(t, 1, countOp(h.dev.CommandsTo(capture.TargetDemod), 0x52, 0x00, 0x00))
	})
}

func TestTune_DVBTOnT2Signal(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})

	res, err := h.fe.Tune(TuneRequest{System: DVBT, Frequency: t2Freq, Bandwidth: 8000000, StreamID: 2})
	require.NoError(t, err)
	assert.True(t, res.Locked)
	assert.Equal(t, uint8(telemetry.StandardDVBT2), res.Status.Standard)

	assert.Equal(t, 2, countOp(h.dev.CommandsTo(capture.TargetDemod), 0x52, 0x02, 0x01), "PLP selected again")
	assert.Equal(t, 1, h.sleeps.count(340*time.Millisecond))
}

func TestTune_DVBT(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})

	res, err := h.fe.Tune(TuneRequest{System: DVBT, Frequency: tFreq, Bandwidth: 7000000, StreamID: NoStreamFilter})
	require.NoError(t, err)
	assert.True(t, res.Locked)

	dd, _ := h.dev.Property(capture.TargetDemod, 0x100A)
	assert.Equal(t, uint16(1<<9|15<<4|7), dd)
	modbw, _ := h.dev.Property(capture.TargetTuner, 0x0703)
	assert.Equal(t, uint16(2<<4|7), modbw)
	fef, _ := h.dev.Property(capture.TargetTuner, 0x0711)
	assert.Equal(t, uint16(1), fef, "FEF stays off for DVB-T")
	assert.Zero(t, h.sleeps.count(340*time.Millisecond))

	p, err := h.fe.GetFrontend()
	require.NoError(t, err)
	assert.Equal(t, DVBT, p.System)
	assert.Equal(t, telemetry.QAM64, p.Modulation)
}

func TestTune_Bandwidth(t *testing.T) {
	tests := []struct {
		hz    uint32
		dd    uint16
		tuner uint16
	}{
		{1700000, 2, 6},
		{5000000, 5, 6},
		{6000000, 6, 6},
		{8000000, 8, 8},
		{10000000, 10, 8},
	}
	for _, tt := range tests {
		h := ready(t, sim.DefaultConfig(), Options{})
		_, err := h.fe.Tune(TuneRequest{System: DVBT2, Frequency: t2Freq, Bandwidth: tt.hz, StreamID: NoStreamFilter})
		require.NoError(t, err)

		dd, _ := h.dev.Property(capture.TargetDemod, 0x100A)
		assert.Equal(t, uint16(1<<9|15<<4)|tt.dd, dd, "bandwidth %d", tt.hz)
		modbw, _ := h.dev.Property(capture.TargetTuner, 0x0703)
		assert.Equal(t, uint16(2<<4)|tt.tuner, modbw, "bandwidth %d", tt.hz)
	}
}

func TestTune_DVBC(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})

	res, err := h.fe.Tune(TuneRequest{
		System:     DVBC,
		Frequency:  cableFreq,
		Modulation: telemetry.QAM256,
		SymbolRate: 6900000,
	})
	require.NoError(t, err)
	assert.True(t, res.Locked)

	sr, _ := h.dev.Property(capture.TargetDemod, 0x1102)
	assert.Equal(t, uint16(6900), sr)
	qam, _ := h.dev.Property(capture.TargetDemod, 0x1101)
	assert.Equal(t, uint16(11), qam)
	dd, _ := h.dev.Property(capture.TargetDemod, 0x100A)
	assert.Equal(t, uint16(3<<4|8), dd)
	modbw, _ := h.dev.Property(capture.TargetTuner, 0x0703)
	assert.Equal(t, uint16(3<<4|8), modbw)
	assert.Zero(t, countOp(h.dev.CommandsTo(capture.TargetDemod), 0x52), "no PLP for cable")
	assert.Equal(t, 1, h.sleeps.count(80*time.Millisecond), "cable settle")

	p, err := h.fe.GetFrontend()
	require.NoError(t, err)
	assert.Equal(t, DVBC, p.System)
	assert.Equal(t, uint32(6900000), p.SymbolRate)
	assert.Equal(t, telemetry.QAM256, p.Modulation)
	assert.Equal(t, telemetry.InversionOn, p.Inversion)
	assert.Equal(t, uint32(6900000), h.fe.SymbolRate())
}

func TestTune_DVBCNotLocked(t *testing.T) {
	h := ready(t, sim.DefaultConfig(), Options{})

	res, err := h.fe.Tune(TuneRequest{System: DVBC, Frequency: emptyFreq, SymbolRate: 6875000})
	require.NoError(t, err)
	assert.False(t, res.Locked)
	assert.False(t, res.Aborted)
	assert.Equal(t, 200, res.Attempts)
	assert.Equal(t, 200, countOp(h.dev.CommandsTo(capture.TargetDemod), 0x87, 0x01))
	assert.Equal(t, "NotLocked", h.stateNames()[len(h.stateNames())-1])
}

func TestTune_TerrestrialAbort(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.AbortAfter = 2
	h := ready(t, cfg, Options{})

	res, err := h.fe.Tune(TuneRequest{System: DVBT2, Frequency: emptyFreq, Bandwidth: 8000000, StreamID: NoStreamFilter})
	require.NoError(t, err)
	assert.False(t, res.Locked)
	assert.True(t, res.Aborted)
	assert.Equal(t, 2, res.Attempts)
}

func TestTune_TuneCompleteTimeout(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.TuneCompleteDelay = 100
	h := ready(t, cfg, Options{})

	reads := h.tunerReadsPerState()

	_, err := h.fe.Tune(t2Request())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "tune complete")
	assert.Equal(t, 4, reads[TuneFailed]-reads[TuneWaitComplete], "four status reads")

	assert.Equal(t, []TuneState{TuneIdle, TuneCommandSent, TuneWaitComplete, TuneFailed}, h.states)
	assert.Equal(t, 3, h.sleeps.count(50*time.Millisecond), "four polls, three intervals")
	assert.False(t, h.dev.BridgeOpen())
	assert.Zero(t, countOp(h.dev.CommandsTo(capture.TargetDemod), 0x87), "no lock poll after a tuner failure")
}

func TestTune_DigitalInterruptTimeout(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.DigitalDelay = 100
	h := ready(t, cfg, Options{})

	reads := h.tunerReadsPerState()

	_, err := h.fe.Tune(t2Request())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "digital interrupt")
	assert.Equal(t, 3, reads[TuneFailed]-reads[TuneWaitDigitalLock], "three status reads")

	assert.Equal(t, TuneFailed, h.states[len(h.states)-1])
	assert.Equal(t, TuneWaitDigitalLock, h.states[len(h.states)-2])
	assert.Equal(t, 2, h.sleeps.count(10*time.Millisecond), "three polls, two intervals")
	assert.False(t, h.dev.BridgeOpen())
}

func TestTune_DeviceErrorAborts(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.DeviceError = func(target string, cmd []byte) bool {
		return target == capture.TargetDemod && cmd[0] == 0x85
	}
	h := ready(t, cfg, Options{})

	_, err := h.fe.Tune(t2Request())
	assert.ErrorIs(t, err, ErrDevice)
	assert.Equal(t, Undefined, h.fe.Current(), "standard not recorded after a failed switch")
}

func TestTune_PollingFailure(t *testing.T) {
	cfg := sim.DefaultConfig()
	broken := false
	cfg.ReadFault = func(target string) error {
		if broken && target == capture.TargetDemod {
			return errors.New("arbitration lost")
		}
		return nil
	}
	h := ready(t, cfg, Options{})
	broken = true

	_, err := h.fe.Tune(t2Request())
	assert.ErrorIs(t, err, ErrPolling)
}

func TestTune_CTSTimeout(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.CTSDelay = 0
	cfg.Stall = func(target string, cmd []byte) bool {
		return target == capture.TargetTuner && cmd[0] == 0x41
	}
	h := ready(t, cfg, Options{})

	_, err := h.fe.Tune(t2Request())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 49, h.sleeps.count(20*time.Millisecond))
	assert.False(t, h.dev.BridgeOpen())
}

// ============================================================
// Telemetry
// ============================================================

func TestTelemetry_Locked(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Uncorrected = 0x030005
	h := ready(t, cfg, Options{})
	_, err := h.fe.Tune(t2Request())
	require.NoError(t, err)

	status, err := h.fe.ReadStatus()
	require.NoError(t, err)
	assert.True(t, status.Locked())
	assert.Equal(t, "SIGNAL|CARRIER|VITERBI|SYNC|LOCK", status.String())

	strength, err := h.fe.ReadSignalStrength()
	require.NoError(t, err)
	assert.Equal(t, uint16(21331), strength)
	assert.False(t, h.dev.BridgeOpen())

	snr, err := h.fe.ReadSNR()
	require.NoError(t, err)
	assert.InDelta(t, 3.0, snr, 1e-9)

	ber, ok, err := h.fe.ReadBER()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 2.5e-7, ber, 1e-12)

	ucb, err := h.fe.ReadUncorrectedBlocks()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x030005), ucb)

	p, err := h.fe.GetFrontend()
	require.NoError(t, err)
	assert.Equal(t, DVBT2, p.System)
	assert.Equal(t, telemetry.QAM256, p.Modulation)
	assert.Equal(t, telemetry.InversionOff, p.Inversion)
}

func TestTelemetry_NoSignal(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.BERExponent = 0
	h := ready(t, cfg, Options{})

	status, err := h.fe.ReadStatus()
	require.NoError(t, err)
	assert.False(t, status.Locked())

	_, ok, err := h.fe.ReadBER()
	require.NoError(t, err)
	assert.False(t, ok, "exponent 0 means no measurement")

	// the demod reports its configured standard without a signal
	p, err := h.fe.GetFrontend()
	require.NoError(t, err)
	assert.Equal(t, DVBT, p.System)
	assert.Equal(t, telemetry.ModulationAuto, p.Modulation)
}

func TestGetFrontend_NoStandard(t *testing.T) {
	h := newHarness(t, sim.DefaultConfig(), Options{})

	p, err := h.fe.GetFrontend()
	require.NoError(t, err)
	assert.Equal(t, Undefined, p.System)
	assert.Equal(t, 1, countOp(h.dev.CommandsTo(capture.TargetDemod), 0x87, 0x00))
	assert.Len(t, h.dev.CommandsTo(capture.TargetDemod), 1, "no extended status without a standard")
}

func TestInfo(t *testing.T) {
	fe := New(sim.New(sim.DefaultConfig()), Options{})
	info := fe.Info()
	assert.Equal(t, uint32(48000000), info.FrequencyMin)
	assert.Equal(t, uint32(870000000), info.FrequencyMax)
	assert.Equal(t, uint32(62500), info.FrequencyStep)
	assert.Equal(t, []DeliverySystem{DVBT, DVBT2, DVBC}, info.Systems)
	assert.Equal(t, 0, fe.PLP())
	assert.Equal(t, Undefined, fe.Current())
}

func TestTuneState_String(t *testing.T) {
	assert.Equal(t, "WaitTuneComplete", TuneWaitComplete.String())
	assert.Equal(t, "TuneState(42)", TuneState(42).String())
}
