// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tunestat/pkg/frontend"
)

var (
	scanStartMHz float64
	scanStopMHz  float64
	scanStepMHz  float64
	scanTimeout  int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a frequency range for lockable channels",
	Long: `Initialize the pair once, then tune every frequency from --start to --stop in
--step increments and report the channels that lock.

The channel flags (--system, --bw, --mod, --sr, --plp) apply to every step.

Examples:
  # UHF DVB-T2 band, 8 MHz raster
  tunestat scan --sim --system dvbt2 --start 474 --stop 858 --step 8

  # Cable band, 256-QAM
  tunestat scan --port /dev/ttyUSB0 --system dvbc --mod qam256 --start 306 --stop 466 --step 8

Exit codes:
  0 - Scan successful (at least one channel locked)
  1 - Scan finished without a lock, or timed out
  2 - Connection or bus error`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addTuneFlags(scanCmd)
	scanCmd.Flags().Float64Var(&scanStartMHz, "start", 474, "First frequency in MHz")
	scanCmd.Flags().Float64Var(&scanStopMHz, "stop", 858, "Last frequency in MHz")
	scanCmd.Flags().Float64Var(&scanStepMHz, "step", 8, "Step in MHz")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Overall timeout in seconds (0 = none)")
}

type scanHit struct {
	req     frontend.TuneRequest
	reading reading
}

// scanFrequencies lists the raster from start to stop, clamped to the
// frontend range.
func scanFrequencies(info frontend.Info, start, stop, step float64) ([]uint32, error) {
	if step <= 0 {
		return nil, fmt.Errorf("--step must be positive")
	}
	if stop < start {
		return nil, fmt.Errorf("--stop below --start")
	}
	var freqs []uint32
	for mhz := start; mhz <= stop+1e-9; mhz += step {
		hz := mhzToHz(mhz)
		if hz < info.FrequencyMin || hz > info.FrequencyMax {
			continue
		}
		freqs = append(freqs, hz)
	}
	if len(freqs) == 0 {
		return nil, fmt.Errorf("no frequency of %.3f-%.3f MHz is in range", start, stop)
	}
	return freqs, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	freqs, err := scanFrequencies(s.fe.Info(), scanStartMHz, scanStopMHz, scanStepMHz)
	if err != nil {
		return err
	}

	fmt.Printf("Tunestat - Channel Scan\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("System: %s\n", tuneSystem)
	fmt.Printf("Range: %.3f - %.3f MHz (%d steps)\n\n", scanStartMHz, scanStopMHz, len(freqs))

	if err := s.fe.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		s.Close()
		os.Exit(2)
	}

	var deadline time.Time
	if scanTimeout > 0 {
		deadline = time.Now().Add(time.Duration(scanTimeout) * time.Second)
	}

	hits := make([]scanHit, 0)
	timedOut := false
	for i, freq := range freqs {
		if !deadline.IsZero() && time.Now().After(deadline) {
			timedOut = true
			break
		}

		req, err := tuneRequest(freq)
		if err != nil {
			return err
		}
		fmt.Printf("[%3d/%d] %s ... ", i+1, len(freqs), describeRequest(req))

		res, err := s.fe.Tune(req)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			s.Close()
			os.Exit(2)
		}
		if !res.Locked {
			fmt.Printf("no lock\n")
			continue
		}

		r, err := readTelemetry(s.fe)
		if err != nil {
			fmt.Printf("READ FAILED: %v\n", err)
			s.Close()
			os.Exit(2)
		}
		hits = append(hits, scanHit{req: req, reading: r})
		fmt.Printf("LOCKED  %.0f%%  %.1f dB  %s\n", strengthPercent(r.Strength), r.SNR, r.Params)
	}

	// Summary
	fmt.Printf("\n--- Scan summary ---\n")
	if timedOut {
		fmt.Printf("TIMEOUT: scan stopped after %ds\n", scanTimeout)
	}
	fmt.Printf("Channels found: %d\n", len(hits))
	for _, h := range hits {
		fmt.Printf("  %-32s %s\n", describeRequest(h.req), h.reading.Params)
	}

	if len(hits) == 0 {
		fmt.Printf("No channels locked. Check antenna, system and bandwidth.\n")
		s.Close()
		os.Exit(1)
	}
	return nil
}
